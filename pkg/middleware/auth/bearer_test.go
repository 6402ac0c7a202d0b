package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
)

func newGuardedEcho(t *testing.T, mws ...echo.MiddlewareFunc) (*echo.Echo, *tokens.Issuer) {
	t.Helper()

	cfg := tokens.Config{AccessSecret: []byte("a-secret"), RefreshSecret: []byte("r-secret")}
	iss, err := tokens.NewIssuer(cfg)
	require.NoError(t, err)
	ver, err := tokens.NewVerifier(cfg)
	require.NoError(t, err)

	e := echo.New()
	chain := append([]echo.MiddlewareFunc{RequireBearer(ver)}, mws...)
	e.GET("/private", func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, p)
	}, chain...)
	return e, iss
}

func TestRequireBearer(t *testing.T) {
	t.Parallel()

	e, iss := newGuardedEcho(t)
	token, _, err := iss.IssueAccessToken(tokens.Principal{ID: "7", Role: "admin"})
	require.NoError(t, err)

	tests := []struct {
		name          string
		header        string
		wantCode      int
		wantChallenge bool
	}{
		{name: "no header", wantCode: http.StatusBadRequest, wantChallenge: true},
		{name: "garbage", header: "Bearer garbage", wantCode: http.StatusUnauthorized, wantChallenge: true},
		{name: "tampered signature", header: "Bearer " + token + "x", wantCode: http.StatusUnauthorized, wantChallenge: true},
		{name: "valid", header: "Bearer " + token, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantChallenge {
				assert.Equal(t, Challenge, rec.Header().Get(echo.HeaderWWWAuthenticate))
			} else {
				assert.Empty(t, rec.Header().Get(echo.HeaderWWWAuthenticate))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	e, iss := newGuardedEcho(t, RequireRole("admin"))
	adminToken, _, err := iss.IssueAccessToken(tokens.Principal{ID: "1", Role: "admin"})
	require.NoError(t, err)
	studentToken, _, err := iss.IssueAccessToken(tokens.Principal{ID: "2", Role: "student"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+studentToken)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
