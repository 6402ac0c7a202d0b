package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/school_admin/pkg/middleware/auth"
	"github.com/Skotchmaster/school_admin/services/auth/internal/metrics"
	"github.com/Skotchmaster/school_admin/services/auth/internal/middleware"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	Authenticator authmw.Authenticator
	Metrics       *metrics.Metrics

	LoginLimiter middleware.Limiter
	LoginLimit   int
	LoginWindow  time.Duration

	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	limitFor := func(prefix string) echo.MiddlewareFunc {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: d.LoginLimiter,
			Prefix:  prefix,
			Limit:   d.LoginLimit,
			Window:  d.LoginWindow,
		})
	}

	e.POST("/login", d.AuthHandler.Login, limitFor("login:"))
	e.POST("/register", d.AuthHandler.Register, limitFor("register:"))
	e.PUT("/", d.AuthHandler.Refresh)
	e.DELETE("/", d.AuthHandler.LogOut)

	guard := authmw.RequireBearer(d.Authenticator)
	e.GET("/me", d.AuthHandler.Me, guard)
	e.DELETE("/sessions", d.AuthHandler.LogOutEverywhere, guard)
}
