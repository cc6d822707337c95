// Package app wires workspace startup: opening the database, applying
// migrations and seeding the bootstrap admin account.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

// Open opens the workspace database with migrations applied and the
// configured admin account present. The returned admin is the seeded
// or pre-existing account matching cfg.Seed.Admin.Username.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*sql.DB, domain.User, error) {
	database, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, domain.User{}, err
	}
	if err := migrate.Migrate(database); err != nil {
		database.Close()
		return nil, domain.User{}, fmt.Errorf("apply migrations: %w", err)
	}
	admin, err := SeedAdmin(ctx, repo.Repo{DB: database}, cfg)
	if err != nil {
		database.Close()
		return nil, domain.User{}, err
	}
	return database, admin, nil
}

// SeedAdmin ensures the configured bootstrap admin account exists and
// returns it. An existing account with the seed username is reused
// regardless of its email.
func SeedAdmin(ctx context.Context, r repo.Repo, cfg *config.Config) (domain.User, error) {
	username := "admin"
	email := ""
	if cfg != nil {
		if cfg.Seed.Admin.Username != "" {
			username = cfg.Seed.Admin.Username
		}
		email = cfg.Seed.Admin.Email
	}
	u, err := r.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	return r.InsertUser(ctx, domain.User{
		Username:  username,
		Email:     email,
		Role:      "admin",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
