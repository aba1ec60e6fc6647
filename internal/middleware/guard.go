package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"labinventory/internal/auth"
	"labinventory/internal/metrics"
	"labinventory/pkg/rbac"
	"labinventory/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by the guard
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextToken    = "accessToken"
)

// ErrPermissionLost is returned by Recheck when the caller's current role no
// longer grants the permission.
var ErrPermissionLost = errors.New("permission no longer granted")

const (
	accessTokenCookie = "access_token"
	wsTokenKey        = "wsToken"
)

// TokenVerifier turns a credential into a user id
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Guard protects routes with catalog permissions. Every failure, whether no
// identity, a failed role lookup or a missing permission, is answered with
// the same 404 so a caller cannot probe which routes exist.
type Guard struct {
	tokens        TokenVerifier
	resolver      auth.RoleResolver
	catalog       *rbac.Catalog
	lookupTimeout time.Duration
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
}

func NewGuard(
	tokens TokenVerifier,
	resolver auth.RoleResolver,
	catalog *rbac.Catalog,
	lookupTimeout time.Duration,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *Guard {
	return &Guard{
		tokens:        tokens,
		resolver:      resolver,
		catalog:       catalog,
		lookupTimeout: lookupTimeout,
		metrics:       m,
		log:           log.WithField("component", "guard"),
	}
}

// RequirePermission allows the request when the caller's current role holds perm
func (g *Guard) RequirePermission(perm rbac.Permission) gin.HandlerFunc {
	return g.require(string(perm), func(role rbac.Role) bool {
		return g.catalog.HasPerm(role, perm)
	})
}

// RequireAny allows the request when the role holds at least one of perms
func (g *Guard) RequireAny(perms ...rbac.Permission) gin.HandlerFunc {
	return g.require(joinPerms("any", perms), func(role rbac.Role) bool {
		return g.catalog.CanAny(role, perms...)
	})
}

// RequireAll allows the request when the role holds every one of perms
func (g *Guard) RequireAll(perms ...rbac.Permission) gin.HandlerFunc {
	return g.require(joinPerms("all", perms), func(role rbac.Role) bool {
		return g.catalog.CanAll(role, perms...)
	})
}

func joinPerms(kind string, perms []rbac.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p))
	}
	return kind + "(" + strings.Join(parts, ",") + ")"
}

func (g *Guard) require(label string, allowed func(rbac.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := g.log.WithFields(logrus.Fields{"permission": label, "path": c.FullPath()})

		identity, outcome := g.identify(c)
		if outcome != "" {
			g.metrics.RecordGuardDecision(label, outcome)
			entry.WithField("outcome", outcome).Debug("request denied")
			notFound(c)
			return
		}

		if !allowed(identity.Role) {
			g.metrics.RecordGuardDecision(label, metrics.OutcomeDenied)
			entry.WithFields(logrus.Fields{"outcome": metrics.OutcomeDenied, "role": identity.Role}).Debug("request denied")
			notFound(c)
			return
		}

		g.metrics.RecordGuardDecision(label, metrics.OutcomeAllowed)
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUserRole, string(identity.Role))
		c.Set(ContextToken, extractToken(c))
		c.Next()
	}
}

// Recheck re-resolves the role of an already admitted caller and reports
// whether it still holds perm. Long-lived connections call it periodically.
func (g *Guard) Recheck(ctx context.Context, subject auth.Subject, perm rbac.Permission) error {
	if g.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.lookupTimeout)
		defer cancel()
	}

	started := time.Now()
	identity, err := g.resolver.ResolveRole(ctx, subject)
	g.metrics.ObserveRoleLookup(time.Since(started))
	if err != nil {
		g.metrics.RecordGuardDecision(string(perm), metrics.OutcomeLookupError)
		return fmt.Errorf("role lookup for %s: %w", subject.UserID, err)
	}
	if !g.catalog.HasPerm(identity.Role, perm) {
		g.metrics.RecordGuardDecision(string(perm), metrics.OutcomeDenied)
		return fmt.Errorf("%w: %s (role %s)", ErrPermissionLost, perm, identity.Role)
	}
	return nil
}

// Authenticated only establishes identity. It is used by /me, which must
// answer 401 to a caller without a valid credential.
func (g *Guard) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, outcome := g.identify(c)
		if outcome != "" {
			g.metrics.RecordGuardDecision("authenticated", outcome)
			response.Abort(c, http.StatusUnauthorized, response.MsgUnauthorized)
			return
		}
		g.metrics.RecordGuardDecision("authenticated", metrics.OutcomeAllowed)
		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUserRole, string(identity.Role))
		c.Next()
	}
}

// identify returns the caller or a non-empty failure outcome
func (g *Guard) identify(c *gin.Context) (auth.Identity, string) {
	token := extractToken(c)
	if token == "" {
		return auth.Identity{}, metrics.OutcomeNoIdentity
	}
	userID, err := g.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, metrics.OutcomeNoIdentity
	}

	ctx := c.Request.Context()
	if g.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.lookupTimeout)
		defer cancel()
	}

	started := time.Now()
	identity, err := g.resolver.ResolveRole(ctx, auth.Subject{UserID: userID, Token: token})
	g.metrics.ObserveRoleLookup(time.Since(started))
	if err != nil {
		g.log.WithError(err).WithField("user_id", userID).Warn("role lookup failed")
		return auth.Identity{}, metrics.OutcomeLookupError
	}
	return identity, ""
}

// extractToken reads the access_token cookie, then the Bearer header, then a
// token lifted from the websocket query string.
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.GetString(wsTokenKey)
}

// WebsocketToken lets browsers, which cannot set headers on a websocket
// handshake, pass the token as ?token=. Mount it only on the /ws route.
func WebsocketToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.Query("token"); token != "" {
			c.Set(wsTokenKey, token)
		}
		c.Next()
	}
}

func notFound(c *gin.Context) {
	response.Abort(c, http.StatusNotFound, response.MsgNotFound)
}

// NotFound answers unknown routes and methods with the body the guard uses for
// denied requests, so the two cannot be told apart.
func NotFound() gin.HandlerFunc {
	return notFound
}

// Token returns the credential the guard accepted for this request
func Token(c *gin.Context) string {
	return c.GetString(ContextToken)
}

// UserID returns the id the guard stored for this request
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
