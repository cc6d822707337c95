package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/engine/auth"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// CreateUser adds an account to the directory. Usernames are unique.
func (e Engine) CreateUser(ctx context.Context, adm auth.ActingAdmin, username, email, role string) (domain.User, error) {
	if username == "" {
		return domain.User{}, invalidArgf("username is required")
	}
	switch role {
	case auth.RoleAdmin, auth.RoleManager, auth.RoleFreelancer:
	default:
		return domain.User{}, invalidArgf("unknown role %q", role)
	}
	if _, err := e.Repo.GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, invalidArgf("username %q is taken", username)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	u, err = e.Repo.InsertUserTx(ctx, tx, u)
	if err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.created", 0, "user", idString(u.ID), adm.User.ID, events.EventPayload{
		"username": u.Username,
		"role":     u.Role,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ListUsers returns directory accounts, optionally filtered by role.
func (e Engine) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx, role)
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, NotFoundError{Entity: "User"}
		}
		return domain.User{}, err
	}
	return u, nil
}

// CreateAPIKey mints an API key for a user and returns the plaintext
// once; only the hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID int64, name string) (string, domain.APIKey, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", domain.APIKey{}, NotFoundError{Entity: "User"}
		}
		return "", domain.APIKey{}, err
	}
	plaintext := "gig_" + uuid.NewString()
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plaintext, key, nil
}
