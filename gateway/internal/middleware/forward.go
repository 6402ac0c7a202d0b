package middleware

import (
	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/school_admin/pkg/middleware/auth"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// StripIdentity drops identity headers a client may have set itself.
func StripIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			h.Del(HeaderUserID)
			h.Del(HeaderRole)
			return next(c)
		}
	}
}

// ForwardPrincipal passes the verified principal upstream. It must run after authmw.RequireBearer.
func ForwardPrincipal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p, ok := authmw.PrincipalFrom(c); ok {
				h := c.Request().Header
				h.Set(HeaderUserID, p.ID)
				h.Set(HeaderRole, p.Role)
			}
			return next(c)
		}
	}
}
