package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_admin/gateway/internal/middleware"
	authmw "github.com/Skotchmaster/school_admin/pkg/middleware/auth"
)

type Deps struct {
	AuthURL     string
	UpstreamURL string

	Authenticator authmw.Authenticator
	Logger        *slog.Logger
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, m := range middleware.Common(logger) {
		e.Use(m)
	}
	e.Use(middleware.StripIdentity())

	authProxy, err := newProxy(d.AuthURL, "/api/v1/auth")
	if err != nil {
		return err
	}

	upstreamProxy, err := newProxy(d.UpstreamURL, "/api/v1")
	if err != nil {
		return err
	}

	e.Any("/api/v1/auth", authProxy)
	e.Any("/api/v1/auth/*", authProxy)

	api := e.Group("/api/v1", authmw.RequireBearer(d.Authenticator), middleware.ForwardPrincipal())
	for _, resource := range []string{"students", "teachers", "programs", "classrooms", "checkin", "reports"} {
		api.Any("/"+resource, upstreamProxy)
		api.Any("/"+resource+"/*", upstreamProxy)
	}

	return nil
}
