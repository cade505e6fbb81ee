package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pilabs/users-api/internal/domain/entity"
	"github.com/pilabs/users-api/internal/domain/repository"
	"github.com/pilabs/users-api/pkg/apperrors"
)

const userColumns = "id, email, name, age, is_active, created_at, updated_at"

// UserRepository is the SQL implementation of repository.UserRepository.
// Point reads and listings use the replica pool; mutations use the primary.
// Absence is reported as (nil, nil), not as an error.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Age, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	sql := `
		INSERT INTO users (email, name, age, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	args := []any{u.Email, u.Name, u.Age, u.IsActive}
	row := r.db.QueryRow(ctx, sql, args, false)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		// Backstop for the probe-then-insert race: the unique index on email
		// is the real arbiter under concurrent creates.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return apperrors.Store(sql, args, err)
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, field string, value any) (*entity.User, error) {
	sql := fmt.Sprintf("SELECT %s FROM users WHERE %s = $1", userColumns, field)
	args := []any{value}
	u, err := scanUser(r.db.QueryRow(ctx, sql, args, true))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.Store(sql, args, err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getBy(ctx, "email", email)
}

// buildListWhere turns the optional filters into an AND-joined predicate with
// positional args. Values are always bound, never concatenated.
func buildListWhere(f repository.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }
	if f.IsActive != nil {
		conds = append(conds, "is_active = "+next())
		args = append(args, *f.IsActive)
	}
	if f.AgeMin != nil {
		conds = append(conds, "age >= "+next())
		args = append(args, *f.AgeMin)
	}
	if f.AgeMax != nil {
		conds = append(conds, "age <= "+next())
		args = append(args, *f.AgeMax)
	}
	if f.Search != "" {
		p := next()
		conds = append(conds, "(name ILIKE "+p+" OR email ILIKE "+p+")")
		args = append(args, "%"+f.Search+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *UserRepository) List(ctx context.Context, f repository.ListFilter, p repository.Pagination) ([]*entity.User, int64, error) {
	where, args := buildListWhere(f)

	countSQL := "SELECT COUNT(*) FROM users" + where
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, args, true).Scan(&total); err != nil {
		return nil, 0, apperrors.Store(countSQL, args, err)
	}

	// Same predicate and args as the count so the two never disagree.
	pageSQL := fmt.Sprintf(
		"SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)+1, len(args)+2,
	)
	pageArgs := append(append([]any{}, args...), p.Limit, p.Offset())

	rows, err := r.db.Query(ctx, pageSQL, pageArgs, true)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0, p.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, apperrors.Store(pageSQL, pageArgs, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Store(pageSQL, pageArgs, err)
	}
	return users, total, nil
}

// buildUpdateSet turns a patch into a SET clause with positional args.
// An empty patch yields an empty clause; callers must not execute that.
func buildUpdateSet(patch repository.UserPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }
	if patch.Name != nil {
		sets = append(sets, "name = "+next())
		args = append(args, *patch.Name)
	}
	if patch.ClearAge {
		sets = append(sets, "age = NULL")
	} else if patch.Age != nil {
		sets = append(sets, "age = "+next())
		args = append(args, *patch.Age)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = "+next())
		args = append(args, *patch.IsActive)
	}
	if len(sets) == 0 {
		return "", nil
	}
	sets = append(sets, "updated_at = now()")
	return strings.Join(sets, ", "), args
}

func (r *UserRepository) Update(ctx context.Context, id int64, patch repository.UserPatch) error {
	set, args := buildUpdateSet(patch)
	if set == "" {
		return nil
	}
	sql := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", set, len(args)+1)
	args = append(args, id)
	affected, err := r.db.Exec(ctx, sql, args)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	sql := "DELETE FROM users WHERE id = $1"
	args := []any{id}
	affected, err := r.db.Exec(ctx, sql, args)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
