package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pilabs/users-api/pkg/apperrors"
)

// NewPool builds a pgx pool and fails fast when the endpoint is unreachable.
func NewPool(ctx context.Context, dsn string, maxConns, minConns int32, maxConnLife time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperrors.Store("parse pool config", nil, err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = maxConnLife
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.Store("create pool", nil, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperrors.Store("ping pool", nil, err)
	}
	return pool, nil
}

// DB routes statements to a primary pool for writes and a replica pool for
// reads. The routing decision is the caller's: every read declares intent via
// useReplica instead of the client inspecting SQL text.
type DB struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

// NewDB wires an already-probed primary/replica pool pair.
func NewDB(primary, replica *pgxpool.Pool) *DB {
	return &DB{primary: primary, replica: replica}
}

func (db *DB) pool(useReplica bool) *pgxpool.Pool {
	if useReplica {
		return db.replica
	}
	return db.primary
}

// Query runs a read statement against the chosen pool.
func (db *DB) Query(ctx context.Context, sql string, args []any, useReplica bool) (pgx.Rows, error) {
	rows, err := db.pool(useReplica).Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.Store(sql, args, err)
	}
	return rows, nil
}

// QueryRow runs a single-row read against the chosen pool. Scan errors are
// the caller's to wrap since pgx defers row errors to Scan.
func (db *DB) QueryRow(ctx context.Context, sql string, args []any, useReplica bool) pgx.Row {
	return db.pool(useReplica).QueryRow(ctx, sql, args...)
}

// Exec runs a write statement. Writes always hit the primary.
func (db *DB) Exec(ctx context.Context, sql string, args []any) (int64, error) {
	tag, err := db.primary.Exec(ctx, sql, args...)
	if err != nil {
		return 0, apperrors.Store(sql, args, err)
	}
	return tag.RowsAffected(), nil
}

// Transaction runs fn inside one primary-pool transaction: commit when fn
// returns nil, rollback on error or panic. The connection goes back to the
// pool on every path.
func (db *DB) Transaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = apperrors.Store("transaction", nil, fmt.Errorf("panic: %v", p))
		}
	}()
	if txErr := pgx.BeginFunc(ctx, db.primary, fn); txErr != nil {
		return apperrors.Store("transaction", nil, txErr)
	}
	return nil
}

// Ping probes both pools; the health endpoint uses it.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.primary.Ping(ctx); err != nil {
		return apperrors.Store("ping primary", nil, err)
	}
	if err := db.replica.Ping(ctx); err != nil {
		return apperrors.Store("ping replica", nil, err)
	}
	return nil
}

// Close drains both pools. Best-effort; pgxpool.Close does not error.
func (db *DB) Close() {
	db.primary.Close()
	if db.replica != db.primary {
		db.replica.Close()
	}
}
