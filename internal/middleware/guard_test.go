package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"labinventory/internal/auth"
	"labinventory/internal/metrics"
	"labinventory/pkg/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver answers with a fixed role per user id
type stubResolver struct {
	roles map[string]rbac.Role
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (r *stubResolver) ResolveRole(ctx context.Context, s auth.Subject) (auth.Identity, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return auth.Identity{}, ctx.Err()
		}
	}
	if r.err != nil {
		return auth.Identity{}, r.err
	}
	role, ok := r.roles[s.UserID]
	if !ok {
		return auth.Identity{}, errors.New("no such user")
	}
	return auth.Identity{UserID: s.UserID, Role: role}, nil
}

type guardFixture struct {
	guard    *Guard
	tokens   *auth.TokenManager
	resolver *stubResolver
	metrics  *metrics.Metrics
	router   *gin.Engine
	handled  *atomic.Int32
}

func newGuardFixture(t *testing.T, timeout time.Duration) *guardFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenManager("guard-secret", "labinventory", time.Hour)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	resolver := &stubResolver{roles: map[string]rbac.Role{
		"viewer-1": rbac.RoleViewer,
		"clerk-1":  rbac.RoleInventoryClerk,
		"admin-1":  rbac.RoleAdmin,
		"ghost-1":  rbac.Role("ghost"),
	}}
	m := metrics.New()
	guard := NewGuard(tokens, resolver, rbac.Default(), timeout, m, log)

	handled := &atomic.Int32{}
	ok := func(c *gin.Context) {
		handled.Add(1)
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "role": c.GetString(ContextUserRole)})
	}

	r := gin.New()
	r.POST("/api/inventory/adjust", guard.RequirePermission(rbac.WriteInventory), ok)
	r.GET("/api/inventory", guard.RequirePermission(rbac.ReadInventory), ok)
	r.GET("/any", guard.RequireAny(rbac.WriteUsers, rbac.ReadInventory), ok)
	r.GET("/all", guard.RequireAll(rbac.ReadInventory, rbac.CountInventory), ok)
	r.GET("/me", guard.Authenticated(), ok)
	r.GET("/ws", WebsocketToken(), guard.RequirePermission(rbac.ReadInventory), ok)
	r.GET("/token", guard.RequirePermission(rbac.ReadInventory), func(c *gin.Context) {
		c.String(http.StatusOK, Token(c))
	})
	r.NoRoute(NotFound())

	return &guardFixture{guard: guard, tokens: tokens, resolver: resolver, metrics: m, router: r, handled: handled}
}

func (f *guardFixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(userID)
	require.NoError(t, err)
	return tok
}

func (f *guardFixture) do(method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestGuardDecisions(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		want   int
	}{
		{"viewer reads inventory", http.MethodGet, "/api/inventory", "viewer-1", http.StatusOK},
		{"viewer cannot adjust", http.MethodPost, "/api/inventory/adjust", "viewer-1", http.StatusNotFound},
		{"clerk adjusts", http.MethodPost, "/api/inventory/adjust", "clerk-1", http.StatusOK},
		{"admin adjusts", http.MethodPost, "/api/inventory/adjust", "admin-1", http.StatusOK},
		{"unknown role denied", http.MethodGet, "/api/inventory", "ghost-1", http.StatusNotFound},
		{"unknown user denied", http.MethodGet, "/api/inventory", "nobody", http.StatusNotFound},
		{"any with one held", http.MethodGet, "/any", "viewer-1", http.StatusOK},
		{"all with one missing", http.MethodGet, "/all", "viewer-1", http.StatusNotFound},
		{"all held", http.MethodGet, "/all", "clerk-1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, bearer(f.token(t, tt.user)))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusNotFound {
				assert.JSONEq(t, `{"status":"error","status_code":404,"error":"Not found"}`, w.Body.String())
			}
		})
	}
}

func TestGuardDeniedRequestNeverReachesHandler(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	w := f.do(http.MethodPost, "/api/inventory/adjust", bearer(f.token(t, "viewer-1")))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 0, f.handled.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GuardDecisionsTotal.WithLabelValues(string(rbac.WriteInventory), metrics.OutcomeDenied)))
}

func TestGuardWithoutCredential(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/inventory", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/inventory", bearer("garbage")).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/inventory", func(r *http.Request) {
		r.Header.Set("Authorization", "Basic abc")
	}).Code)
	assert.EqualValues(t, 0, f.resolver.calls.Load())
}

func TestGuardReadsCookie(t *testing.T) {
	f := newGuardFixture(t, time.Second)
	tok := f.token(t, "clerk-1")

	w := f.do(http.MethodPost, "/api/inventory/adjust", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "access_token", Value: tok})
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"clerk-1"`)
}

func TestGuardLooksUpRoleEveryRequest(t *testing.T) {
	f := newGuardFixture(t, time.Second)
	tok := f.token(t, "viewer-1")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/inventory/adjust", bearer(tok)).Code)

	f.resolver.roles["viewer-1"] = rbac.RoleInventoryClerk
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/inventory/adjust", bearer(tok)).Code)
	assert.EqualValues(t, 2, f.resolver.calls.Load())
}

func TestGuardFailsClosedOnLookupError(t *testing.T) {
	f := newGuardFixture(t, time.Second)
	f.resolver.err = errors.New("user store unavailable")

	w := f.do(http.MethodGet, "/api/inventory", bearer(f.token(t, "admin-1")))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GuardDecisionsTotal.WithLabelValues(string(rbac.ReadInventory), metrics.OutcomeLookupError)))
}

func TestGuardFailsClosedOnLookupTimeout(t *testing.T) {
	f := newGuardFixture(t, 20*time.Millisecond)
	f.resolver.delay = time.Second

	started := time.Now()
	w := f.do(http.MethodGet, "/api/inventory", bearer(f.token(t, "admin-1")))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.EqualValues(t, 0, f.handled.Load())
}

func TestAuthenticatedAnswers401(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", bearer(f.token(t, "viewer-1"))).Code)
}

func TestWebsocketQueryToken(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ws?token="+f.token(t, "viewer-1"), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/inventory?token="+f.token(t, "viewer-1"), nil).Code)
}

func TestTokenCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", nil)

	SetTokenCookie(c, CookieOptions{Secure: true}, "abc", time.Hour)
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "access_token=abc")
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "Secure")
	assert.Contains(t, cookie, "SameSite=None")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/logout", nil)
	ClearTokenCookie(c, CookieOptions{})
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestDeniedLooksLikeMissingRoute(t *testing.T) {
	f := newGuardFixture(t, time.Second)

	denied := f.do(http.MethodPost, "/api/inventory/adjust", bearer(f.token(t, "viewer-1")))
	missing := f.do(http.MethodPost, "/api/inventory/does-not-exist/xyz", bearer(f.token(t, "viewer-1")))
	anonymous := f.do(http.MethodGet, "/nowhere", nil)

	for _, w := range []*httptest.ResponseRecorder{missing, anonymous} {
		assert.Equal(t, denied.Code, w.Code)
		assert.Equal(t, denied.Header().Get("Content-Type"), w.Header().Get("Content-Type"))
		assert.Equal(t, denied.Body.String(), w.Body.String())
	}
}

func TestGuardStoresAcceptedToken(t *testing.T) {
	f := newGuardFixture(t, time.Second)
	tok := f.token(t, "viewer-1")

	w := f.do(http.MethodGet, "/token", bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tok, w.Body.String())
}

func TestRecheck(t *testing.T) {
	f := newGuardFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	assert.NoError(t, f.guard.Recheck(ctx, auth.Subject{UserID: "viewer-1"}, rbac.ReadInventory))

	err := f.guard.Recheck(ctx, auth.Subject{UserID: "viewer-1"}, rbac.WriteInventory)
	assert.ErrorIs(t, err, ErrPermissionLost)

	// role changes between checks are picked up
	f.resolver.roles["viewer-1"] = rbac.Role("ghost")
	assert.ErrorIs(t, f.guard.Recheck(ctx, auth.Subject{UserID: "viewer-1"}, rbac.ReadInventory), ErrPermissionLost)

	f.resolver.delay = time.Second
	assert.Error(t, f.guard.Recheck(ctx, auth.Subject{UserID: "clerk-1"}, rbac.ReadInventory))
}
