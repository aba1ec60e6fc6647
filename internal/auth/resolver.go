package auth

import (
	"context"
	"errors"
	"fmt"

	"labinventory/internal/repository"
	"labinventory/pkg/rbac"
	"labinventory/pkg/whoami"
)

var (
	// ErrNoRole is returned when the caller exists but holds no usable role.
	ErrNoRole = errors.New("no role")
	// ErrDisabled is returned for an account that has been switched off.
	ErrDisabled = errors.New("account disabled")
)

// Subject is what the guard knows about a caller after verifying the token
type Subject struct {
	UserID string
	Token  string
}

// Identity is the caller with their current role
type Identity struct {
	UserID string
	Role   rbac.Role
}

// RoleResolver fetches a caller's current role from the authoritative user
// store. Implementations must not cache: a role change applies to the next
// request.
type RoleResolver interface {
	ResolveRole(ctx context.Context, subject Subject) (Identity, error)
}

// StoreResolver reads the role straight from the user table
type StoreResolver struct {
	users repository.UserRepository
}

func NewStoreResolver(users repository.UserRepository) *StoreResolver {
	return &StoreResolver{users: users}
}

func (r *StoreResolver) ResolveRole(ctx context.Context, subject Subject) (Identity, error) {
	user, err := r.users.GetByID(ctx, subject.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user %s: %w", subject.UserID, err)
	}
	if user.Disabled() {
		return Identity{}, ErrDisabled
	}
	if user.Role == "" {
		return Identity{}, ErrNoRole
	}
	return Identity{UserID: user.ID.String(), Role: rbac.Role(user.Role)}, nil
}

// HTTPResolver asks a remote identity service's /me endpoint, forwarding the
// caller's own token
type HTTPResolver struct {
	client *whoami.Client
}

func NewHTTPResolver(client *whoami.Client) *HTTPResolver {
	return &HTTPResolver{client: client}
}

func (r *HTTPResolver) ResolveRole(ctx context.Context, subject Subject) (Identity, error) {
	me, err := r.client.Me(ctx, subject.Token)
	if err != nil {
		return Identity{}, err
	}
	if me.User.Role == "" {
		return Identity{}, ErrNoRole
	}
	if me.User.ID != subject.UserID {
		return Identity{}, fmt.Errorf("identity service returned user %s for subject %s", me.User.ID, subject.UserID)
	}
	return Identity{UserID: me.User.ID, Role: rbac.Role(me.User.Role)}, nil
}
