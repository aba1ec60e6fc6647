// Package capability mirrors the server's permission checks for UI processes
// so they can hide controls a user cannot use. It is advisory only: the server
// re-checks every request.
package capability

import (
	"context"
	"errors"
	"sync"
	"time"

	"labinventory/pkg/rbac"
	"labinventory/pkg/whoami"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// IdentitySource answers "who am I" for a token. *whoami.Client implements it.
type IdentitySource interface {
	Me(ctx context.Context, token string) (*whoami.Me, error)
}

// CatalogSource fetches the shared permission catalog.
type CatalogSource interface {
	Catalog(ctx context.Context, token string) (*rbac.Catalog, error)
}

var errNoRole = errors.New("identity has no role")

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Second

	// lookupTimeout bounds a shared lookup, which outlives any single caller's context
	lookupTimeout = 10 * time.Second
)

// Gate resolves roles for sessions. Concurrent lookups for the same token are
// collapsed into one request and the answer is kept for a short TTL.
type Gate struct {
	source  IdentitySource
	catalog *rbac.Catalog
	roles   *lru.LRU[string, rbac.Role]
	group   singleflight.Group
}

func NewGate(source IdentitySource, catalog *rbac.Catalog, cacheSize int, ttl time.Duration) *Gate {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Gate{
		source:  source,
		catalog: catalog,
		roles:   lru.NewLRU[string, rbac.Role](cacheSize, nil, ttl),
	}
}

// NewGateFromServer builds a gate whose catalog is the one the server serves,
// so both sides evaluate the same table.
func NewGateFromServer(ctx context.Context, client *whoami.Client, token string, cacheSize int, ttl time.Duration) (*Gate, error) {
	return newGate(ctx, client, client, token, cacheSize, ttl)
}

func newGate(ctx context.Context, ids IdentitySource, cats CatalogSource, token string, cacheSize int, ttl time.Duration) (*Gate, error) {
	catalog, err := cats.Catalog(ctx, token)
	if err != nil {
		return nil, err
	}
	return NewGate(ids, catalog, cacheSize, ttl), nil
}

// Catalog returns the catalog the gate evaluates against
func (g *Gate) Catalog() *rbac.Catalog {
	return g.catalog
}

// Session returns a fresh, not yet loaded session for token
func (g *Gate) Session(token string) *Session {
	return &Session{gate: g, token: token}
}

// Forget drops the cached role for token, e.g. on logout
func (g *Gate) Forget(token string) {
	g.roles.Remove(token)
}

func (g *Gate) resolve(ctx context.Context, token string) (rbac.Role, error) {
	if role, ok := g.roles.Get(token); ok {
		return role, nil
	}

	// The flight is shared, so one caller giving up must not fail the others.
	ch := g.group.DoChan(token, func() (interface{}, error) {
		// a flight that finished between the cache miss and DoChan already stored it
		if role, ok := g.roles.Get(token); ok {
			return role, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		me, err := g.source.Me(fctx, token)
		if err != nil {
			return rbac.Role(""), err
		}
		if me.User.Role == "" {
			return rbac.Role(""), errNoRole
		}
		role := rbac.Role(me.User.Role)
		g.roles.Add(token, role)
		return role, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(rbac.Role), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Session holds one UI user's resolved role. Every check answers false until
// Refresh succeeds, and again after a failed Refresh.
type Session struct {
	gate  *Gate
	token string

	mu     sync.RWMutex
	role   rbac.Role
	loaded bool
}

// Refresh (re)loads the role for the session's token
func (s *Session) Refresh(ctx context.Context) error {
	role, err := s.gate.resolve(ctx, s.token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.role = ""
		s.loaded = false
		return err
	}
	s.role = role
	s.loaded = true
	return nil
}

// Loaded reports whether a role is currently resolved
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Role returns the resolved role, empty while not loaded
func (s *Session) Role() rbac.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Can(perm rbac.Permission) bool {
	role, ok := s.current()
	return ok && s.gate.catalog.HasPerm(role, perm)
}

func (s *Session) CanAny(perms ...rbac.Permission) bool {
	role, ok := s.current()
	return ok && s.gate.catalog.CanAny(role, perms...)
}

func (s *Session) CanAll(perms ...rbac.Permission) bool {
	role, ok := s.current()
	return ok && s.gate.catalog.CanAll(role, perms...)
}

func (s *Session) current() (rbac.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role, s.loaded
}
