package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_admin/pkg/logging"
	authmw "github.com/Skotchmaster/school_admin/pkg/middleware/auth"
	"github.com/Skotchmaster/school_admin/services/auth/internal/service"
	"github.com/Skotchmaster/school_admin/services/auth/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
	Now func() time.Time
}

func (h *AuthHTTP) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *AuthHTTP) expiresIn(exp time.Time) int64 {
	return max(int64(exp.Sub(h.now())/time.Second), 0)
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	p, err := h.Svc.Register(ctx, service.Credential{Username: req.Username, Password: req.Password}, req.DisplayName)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusCreated, transport.RegisterResponse{
		ID:       p.ID,
		Username: req.Username,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, service.Credential{Username: req.Username, Password: req.Password})
	if err != nil {
		return httpError(c, err)
	}
	c.Set(authmw.CtxUserID, res.Principal.ID)

	return c.JSON(http.StatusCreated, transport.TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.expiresIn(res.AccessExp),
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("refresh_error", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	res, err := h.Svc.RefreshAccessToken(ctx, req.RefreshToken)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, transport.TokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    h.expiresIn(res.AccessExp),
	})
}

// LogOut answers 200 whether or not the token was still live.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("logout_error", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	status, err := h.Svc.Logout(ctx, req.RefreshToken)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, transport.LogoutResponse{
		Message: "logged out",
		Status:  string(status),
	})
}

func (h *AuthHTTP) LogOutEverywhere(c echo.Context) error {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return authmw.Reject(c, service.ErrUnauthorized)
	}
	if err := h.Svc.LogoutAll(c.Request().Context(), p); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, transport.LogoutResponse{
		Message: fmt.Sprintf("all sessions of %s revoked", p.ID),
		Status:  string(service.LogoutRevoked),
	})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return authmw.Reject(c, service.ErrUnauthorized)
	}
	prof, err := h.Svc.Profile(c.Request().Context(), p)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, transport.PrincipalResponse{
		ID:          prof.ID,
		Username:    prof.Username,
		Role:        prof.Role,
		DisplayName: prof.DisplayName,
	})
}
