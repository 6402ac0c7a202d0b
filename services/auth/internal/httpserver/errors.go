package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/school_admin/pkg/middleware/auth"
	"github.com/Skotchmaster/school_admin/services/auth/internal/service"
)

// httpError maps a session controller error to its response.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	case errors.Is(err, service.ErrMissingCredential), errors.Is(err, service.ErrUnauthorized):
		return authmw.Reject(c, err)
	case errors.Is(err, service.ErrAuthenticationFailed):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, service.ErrRefreshDenied):
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token is invalid, expired or revoked").SetInternal(err)
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "user already exist")
	case errors.Is(err, service.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusInternalServerError, "session store unavailable").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
