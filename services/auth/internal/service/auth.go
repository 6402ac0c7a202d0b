package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/school_admin/pkg/hash"
	"github.com/Skotchmaster/school_admin/pkg/logging"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/events"
	"github.com/Skotchmaster/school_admin/services/auth/internal/metrics"
	"github.com/Skotchmaster/school_admin/services/auth/internal/models"
	"github.com/Skotchmaster/school_admin/services/auth/internal/repo"
)

// Accounts creates and reads user records.
type Accounts interface {
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// AuthService drives login, refresh and logout. Every HTTP layer talks to it
// with plain values.
type AuthService struct {
	Issuer    *tokens.Issuer
	Verifier  *tokens.Verifier
	Store     repo.RefreshStore
	Directory repo.UserDirectory
	Users     Accounts
	Events    events.Publisher
	Metrics   *metrics.Metrics

	// RotateRefresh swaps the refresh token on every refresh exchange.
	RotateRefresh bool
}

type Credential struct {
	Username string
	Password string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	Principal    tokens.Principal
	State        SessionState
}

type RefreshResult struct {
	AccessToken string
	AccessExp   time.Time
	// RefreshToken is empty unless rotation is enabled.
	RefreshToken string
	RefreshExp   time.Time
	State        SessionState
}

func (h *AuthService) Login(ctx context.Context, cred Credential) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", cred.Username)

	if strings.TrimSpace(cred.Username) == "" || cred.Password == "" {
		h.Metrics.Observe(events.TypeLogin, metrics.OutcomeDenied)
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	l.Debug("session_state", "state", StateAuthenticating)
	p, err := h.Directory.VerifyCredential(ctx, cred.Username, cred.Password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", http.StatusUnauthorized, "reason", "invalid username or password")
			h.Metrics.Observe(events.TypeLogin, metrics.OutcomeDenied)
			return nil, ErrAuthenticationFailed
		}
		l.Error("login_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeLogin, metrics.OutcomeError)
		return nil, err
	}

	pair, err := h.Issuer.IssuePair(p)
	if err != nil {
		l.Error("login_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeLogin, metrics.OutcomeError)
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := h.Store.AddRefreshToken(ctx, repo.RecordFromClaims(pair.RefreshToken, pair.Refresh)); err != nil {
		l.Error("login_failed", "status", http.StatusInternalServerError, "reason", "cannot store refresh token", "error", err)
		h.Metrics.Observe(events.TypeLogin, metrics.OutcomeError)
		return nil, err
	}

	ev := events.New(events.TypeLogin, p.ID, p.Role)
	ev.JTI = pair.Refresh.ID
	h.publish(ctx, ev)
	h.Metrics.Observe(events.TypeLogin, metrics.OutcomeOK)
	l.Info("login_successful", "user_id", p.ID, "state", StateAuthenticated)

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AccessExp:    pair.AccessExp,
		RefreshExp:   pair.Refresh.ExpiresAt.Time,
		Principal:    p,
		State:        StateAuthenticated,
	}, nil
}

// RefreshAccessToken checks refreshToken cryptographically and against the
// store before minting a new access token.
func (h *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	l.Debug("session_state", "state", StateRefreshPending)

	claims, err := h.Verifier.RefreshClaimsFromToken(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", http.StatusUnauthorized, "error", err)
		h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeDenied)
		return nil, fmt.Errorf("%w: %w", ErrRefreshDenied, err)
	}
	l = l.With("user_id", claims.Subject)

	stored, err := h.Store.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, h.refreshStoreError(l, err)
	}
	if stored.ID != claims.Subject {
		l.Warn("refresh_failed", "status", http.StatusUnauthorized, "reason", "subject mismatch")
		h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeDenied)
		return nil, fmt.Errorf("%w: %w", ErrRefreshDenied, tokens.ErrInvalidToken)
	}

	p := claims.Principal()
	access, accessExp, err := h.Issuer.IssueAccessToken(p)
	if err != nil {
		l.Error("refresh_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeError)
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	res := &RefreshResult{AccessToken: access, AccessExp: accessExp, State: StateAuthenticated}

	ev := events.New(events.TypeRefresh, p.ID, p.Role)
	ev.JTI = claims.ID
	if h.RotateRefresh {
		next, nextClaims, err := h.Issuer.IssueRefreshToken(p)
		if err != nil {
			l.Error("refresh_failed", "status", http.StatusInternalServerError, "error", err)
			h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeError)
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		if err := h.Store.RotateRefreshToken(ctx, refreshToken, repo.RecordFromClaims(next, nextClaims)); err != nil {
			return nil, h.refreshStoreError(l, err)
		}
		res.RefreshToken = next
		res.RefreshExp = nextClaims.ExpiresAt.Time
		ev.JTI = nextClaims.ID
	}

	h.publish(ctx, ev)
	h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeOK)
	l.Info("refresh_successful", "rotated", h.RotateRefresh)
	return res, nil
}

func (h *AuthService) refreshStoreError(l *slog.Logger, err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.Error("refresh_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeError)
		return err
	}
	l.Warn("refresh_failed", "status", http.StatusUnauthorized, "error", err)
	h.Metrics.Observe(events.TypeRefresh, metrics.OutcomeDenied)
	return fmt.Errorf("%w: %w", ErrRefreshDenied, err)
}

// Logout revokes refreshToken. A token that is already invalid or unknown is
// reported as LogoutAlreadyLoggedOut without an error.
func (h *AuthService) Logout(ctx context.Context, refreshToken string) (LogoutStatus, error) {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := h.Verifier.RefreshClaimsFromToken(refreshToken)
	if err != nil {
		l.Info("logout_noop", "reason", err.Error())
		h.Metrics.Observe(events.TypeLogout, metrics.OutcomeDenied)
		return LogoutAlreadyLoggedOut, nil
	}
	l = l.With("user_id", claims.Subject)

	if _, err := h.Store.VerifyRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, repo.ErrRefreshTokenNotFound) || errors.Is(err, repo.ErrRefreshTokenExpired) {
			l.Info("logout_noop", "reason", err.Error())
			h.Metrics.Observe(events.TypeLogout, metrics.OutcomeDenied)
			return LogoutAlreadyLoggedOut, nil
		}
		l.Error("logout_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeLogout, metrics.OutcomeError)
		return "", err
	}

	if err := h.Store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		l.Error("logout_failed", "status", http.StatusInternalServerError, "reason", "cannot revoke refresh token", "error", err)
		h.Metrics.Observe(events.TypeLogout, metrics.OutcomeError)
		return "", err
	}

	ev := events.New(events.TypeLogout, claims.Subject, claims.Role)
	ev.JTI = claims.ID
	ev.Status = string(LogoutRevoked)
	h.publish(ctx, ev)
	h.Metrics.Observe(events.TypeLogout, metrics.OutcomeOK)
	l.Info("successful_logout", "state", StateRevoked)
	return LogoutRevoked, nil
}

// LogoutAll revokes every refresh token of p.
func (h *AuthService) LogoutAll(ctx context.Context, p tokens.Principal) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout_all", "user_id", p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: empty principal", ErrValidation)
	}
	if err := h.Store.RevokeAll(ctx, p.ID); err != nil {
		l.Error("logout_all_failed", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeLogoutAll, metrics.OutcomeError)
		return err
	}
	h.publish(ctx, events.New(events.TypeLogoutAll, p.ID, p.Role))
	h.Metrics.Observe(events.TypeLogoutAll, metrics.OutcomeOK)
	l.Info("logout_all_successful", "state", StateRevoked)
	return nil
}

func (h *AuthService) RequireAuthenticated(header http.Header) (tokens.Principal, error) {
	return h.Verifier.RequireAuthenticated(header)
}

func (h *AuthService) Register(ctx context.Context, cred Credential, displayName string) (tokens.Principal, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", cred.Username)

	username := strings.TrimSpace(cred.Username)
	if username == "" || cred.Password == "" {
		h.Metrics.Observe(events.TypeRegister, metrics.OutcomeDenied)
		return tokens.Principal{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if h.Users == nil {
		h.Metrics.Observe(events.TypeRegister, metrics.OutcomeError)
		return tokens.Principal{}, errors.New("registration is not configured")
	}
	if displayName == "" {
		displayName = username
	}

	pwHash, err := hash.HashPassword(cred.Password)
	if err != nil {
		l.Error("register_error", "status", http.StatusInternalServerError, "reason", "cannot hash the password", "error", err)
		h.Metrics.Observe(events.TypeRegister, metrics.OutcomeError)
		return tokens.Principal{}, err
	}
	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         repo.RoleUser,
		DisplayName:  displayName,
	}
	if err := h.Users.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", http.StatusConflict, "reason", "user already exist")
			h.Metrics.Observe(events.TypeRegister, metrics.OutcomeDenied)
			return tokens.Principal{}, ErrConflict
		}
		l.Error("register_error", "status", http.StatusInternalServerError, "error", err)
		h.Metrics.Observe(events.TypeRegister, metrics.OutcomeError)
		return tokens.Principal{}, err
	}

	p := tokens.Principal{ID: user.PrincipalID(), Role: user.Role, DisplayName: user.DisplayName}
	h.publish(ctx, events.New(events.TypeRegister, p.ID, p.Role))
	h.Metrics.Observe(events.TypeRegister, metrics.OutcomeOK)
	l.Info("register_successful", "user_id", p.ID)
	return p, nil
}

type Profile struct {
	ID          string
	Username    string
	Role        string
	DisplayName string
}

// Profile reads the current directory record of an authenticated principal.
// Without an account store the token claims are all there is.
func (h *AuthService) Profile(ctx context.Context, p tokens.Principal) (*Profile, error) {
	if h.Users == nil {
		return &Profile{ID: p.ID, Role: p.Role, DisplayName: p.DisplayName}, nil
	}
	id, err := strconv.ParseUint(p.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: principal id %q", ErrUnauthorized, p.ID)
	}
	u, err := h.Users.GetUserByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			logging.FromContext(ctx).Warn("profile_error", "status", http.StatusUnauthorized, "user_id", p.ID, "reason", "user no longer exists")
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, err
	}
	return &Profile{ID: u.PrincipalID(), Username: u.Username, Role: u.Role, DisplayName: u.DisplayName}, nil
}

// publish never fails the calling operation.
func (h *AuthService) publish(ctx context.Context, ev events.SessionEvent) {
	if h.Events == nil {
		return
	}
	if err := h.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "error", err)
		h.Metrics.EventFailed(ev.Type)
	}
}
