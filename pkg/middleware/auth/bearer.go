package middleware

import (
	"errors"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_admin/pkg/logging"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
)

const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxPrincipal = "principal"

	// Challenge is sent with every unauthenticated response.
	Challenge = `Bearer realm='sign', error="invalid_request"`
)

// Authenticator turns request headers into a principal. Both the session
// controller and a bare tokens.Verifier satisfy it.
type Authenticator interface {
	RequireAuthenticated(h http.Header) (tokens.Principal, error)
}

// RequireBearer rejects requests without a valid access token: 400 when no
// bearer credential is present, 401 when it does not verify.
func RequireBearer(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := a.RequireAuthenticated(c.Request().Header)
			if err != nil {
				return Reject(c, err)
			}
			c.Set(CtxUserID, p.ID)
			c.Set(CtxRole, p.Role)
			c.Set(CtxPrincipal, p)
			return next(c)
		}
	}
}

// Reject maps a guard error to its HTTP response, attaching the WWW-Authenticate challenge.
func Reject(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context())
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, Challenge)
	if errors.Is(err, tokens.ErrMissingCredential) {
		l.Warn("auth_rejected", "status", http.StatusBadRequest, "reason", "missing bearer credential")
		return echo.NewHTTPError(http.StatusBadRequest, "missing bearer credential")
	}
	l.Warn("auth_rejected", "status", http.StatusUnauthorized, "error", err)
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
}

func RequireRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, Challenge)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !slices.Contains(required, role) {
				return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights to see this page")
			}
			return next(c)
		}
	}
}

func PrincipalFrom(c echo.Context) (tokens.Principal, bool) {
	p, ok := c.Get(CtxPrincipal).(tokens.Principal)
	return p, ok
}
