package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieOptions controls how the access token cookie is written
type CookieOptions struct {
	// Secure is set in release mode, where the UI is served cross-origin
	Secure bool
}

func (o CookieOptions) sameSite() http.SameSite {
	// Cross-origin (release): SameSiteNoneMode + Secure=true
	// Same-site (development): SameSiteLaxMode + Secure=false
	if o.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetTokenCookie sets access_token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, opts CookieOptions, token string, ttl time.Duration) {
	c.SetSameSite(opts.sameSite())
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", opts.Secure, true)
}

// ClearTokenCookie removes the access_token cookie
func ClearTokenCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(opts.sameSite())
	c.SetCookie(accessTokenCookie, "", -1, "/", "", opts.Secure, true)
}
