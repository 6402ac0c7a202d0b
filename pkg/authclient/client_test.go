package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAuth(t *testing.T) *httptest.Server {
	t.Helper()

	live := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			if body["password"] != "correct" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid username or password"}`))
				return
			}
			live["r1"] = true
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","token_type":"Bearer","expires_in":3600}`))
		case r.Method == http.MethodPut && r.URL.Path == "/":
			if !live[body["refresh_token"]] {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"refresh token is invalid, expired or revoked"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"a2","token_type":"Bearer","expires_in":3600}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/":
			status := "already_logged_out"
			if live[body["refresh_token"]] {
				delete(live, body["refresh_token"])
				status = "logged_out"
			}
			_, _ = w.Write([]byte(`{"message":"logged out","status":"` + status + `"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"too many requests"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SessionLifecycle(t *testing.T) {
	c := NewClient(fakeAuth(t).URL + "/")
	ctx := context.Background()

	tok, err := c.Login(ctx, "alice", "correct")
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)

	refreshed, err := c.Refresh(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a2", refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)

	out, err := c.Logout(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "logged_out", out.Status)

	_, err = c.Refresh(ctx, tok.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	out, err = c.Logout(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "already_logged_out", out.Status)
}

func TestClient_Errors(t *testing.T) {
	srv := fakeAuth(t)
	c := NewClient(srv.URL)

	_, err := c.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid username or password")

	c.baseURL = srv.URL + "/nowhere"
	_, err = c.Login(context.Background(), "alice", "correct")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}
