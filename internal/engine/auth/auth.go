// Package auth resolves raw request identities into capability-scoped
// principals. Operations take a typed principal instead of re-deriving
// the role from claims at every call site.
package auth

import (
	"context"
	"fmt"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleFreelancer = "freelancer"
)

// RoleError indicates the caller's role does not grant the operation.
type RoleError struct {
	Need string
	Have string
}

func (e RoleError) Error() string {
	return fmt.Sprintf("role %s required (caller is %s)", e.Need, e.Have)
}

// ActingAdmin is a principal verified to hold the admin role.
type ActingAdmin struct {
	User domain.User
}

// ActingManager is a principal verified to hold the manager role.
type ActingManager struct {
	User domain.User
}

// ActingFreelancer is a principal verified to hold the freelancer role.
type ActingFreelancer struct {
	User domain.User
}

// Gate is the single authorization entry point, backed by the user
// directory.
type Gate struct {
	Repo repo.Repo
}

func (g Gate) lookup(ctx context.Context, userID int64) (domain.User, error) {
	return g.Repo.GetUser(ctx, userID)
}

func (g Gate) Admin(ctx context.Context, userID int64) (ActingAdmin, error) {
	u, err := g.lookup(ctx, userID)
	if err != nil {
		return ActingAdmin{}, err
	}
	if u.Role != RoleAdmin {
		return ActingAdmin{}, RoleError{Need: RoleAdmin, Have: u.Role}
	}
	return ActingAdmin{User: u}, nil
}

func (g Gate) Manager(ctx context.Context, userID int64) (ActingManager, error) {
	u, err := g.lookup(ctx, userID)
	if err != nil {
		return ActingManager{}, err
	}
	if u.Role != RoleManager {
		return ActingManager{}, RoleError{Need: RoleManager, Have: u.Role}
	}
	return ActingManager{User: u}, nil
}

func (g Gate) Freelancer(ctx context.Context, userID int64) (ActingFreelancer, error) {
	u, err := g.lookup(ctx, userID)
	if err != nil {
		return ActingFreelancer{}, err
	}
	if u.Role != RoleFreelancer {
		return ActingFreelancer{}, RoleError{Need: RoleFreelancer, Have: u.Role}
	}
	return ActingFreelancer{User: u}, nil
}

// ManagerByUsername resolves a manager by username, for admin flows
// that assign jobs by name.
func (g Gate) ManagerByUsername(ctx context.Context, username string) (ActingManager, error) {
	u, err := g.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		return ActingManager{}, err
	}
	if u.Role != RoleManager {
		return ActingManager{}, RoleError{Need: RoleManager, Have: u.Role}
	}
	return ActingManager{User: u}, nil
}
