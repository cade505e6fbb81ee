package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/pilabs/users-api/config"
	pginfra "github.com/pilabs/users-api/internal/infrastructure/postgres"
)

type seedUser struct {
	email string
	name  string
	age   *int
}

func intp(v int) *int { return &v }

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PrimaryDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	store := pginfra.NewDB(pool, pool)
	defer store.Close()

	users := []seedUser{
		{email: "alice@example.com", name: "Alice Demo", age: intp(34)},
		{email: "bob@example.com", name: "Bob Demo", age: intp(27)},
		{email: "carol@example.com", name: "Carol Demo", age: nil},
	}

	// All rows land or none do.
	err = store.Transaction(ctx, func(tx pgx.Tx) error {
		for _, u := range users {
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO users (email, name, age, is_active)
				VALUES ($1, $2, $3, TRUE)
				ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
				RETURNING id
			`, u.email, u.name, u.age).Scan(&id)
			if err != nil {
				return err
			}
			fmt.Printf("seeded user: id=%d email=%s name=%s\n", id, u.email, u.name)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}
	fmt.Println("seed complete")
}
