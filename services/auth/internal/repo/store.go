package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/models"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrStoreUnavailable     = errors.New("refresh token store unavailable")
)

// SessionPolicy decides what AddRefreshToken does with a principal's existing tokens.
type SessionPolicy string

const (
	// PolicySingle keeps one live refresh token per principal; a new login replaces older ones.
	PolicySingle SessionPolicy = "single"
	// PolicyMulti keeps every live refresh token, one per client session.
	PolicyMulti SessionPolicy = "multi"
)

func ParsePolicy(s string) SessionPolicy {
	if SessionPolicy(s) == PolicyMulti {
		return PolicyMulti
	}
	return PolicySingle
}

// RefreshStore is the only stateful part of the session core.
type RefreshStore interface {
	// AddRefreshToken persists rec. On error the store is unchanged.
	AddRefreshToken(ctx context.Context, rec Record) error
	// VerifyRefreshToken returns the principal the live token was issued to.
	VerifyRefreshToken(ctx context.Context, token string) (tokens.Principal, error)
	// RevokeRefreshToken deletes the token; revoking an absent token is not an error.
	RevokeRefreshToken(ctx context.Context, token string) error
	// RotateRefreshToken atomically replaces a live token with rec.
	RotateRefreshToken(ctx context.Context, oldToken string, rec Record) error
	// RevokeAll deletes every token of the principal.
	RevokeAll(ctx context.Context, principalID string) error
}

// Record is a refresh token about to be stored.
type Record struct {
	Token     string
	JTI       string
	Principal tokens.Principal
	ExpiresAt time.Time
}

func RecordFromClaims(token string, c tokens.RefreshClaims) Record {
	return Record{
		Token:     token,
		JTI:       c.ID,
		Principal: c.Principal(),
		ExpiresAt: c.ExpiresAt.Time,
	}
}

func (r Record) model(now time.Time) models.RefreshToken {
	return models.RefreshToken{
		TokenHash:   Sha256Hex(r.Token),
		JTI:         r.JTI,
		PrincipalID: r.Principal.ID,
		Role:        r.Principal.Role,
		DisplayName: r.Principal.DisplayName,
		ExpiresAt:   r.ExpiresAt.UTC(),
		CreatedAt:   now.UTC(),
	}
}

func principalOf(m models.RefreshToken) tokens.Principal {
	return tokens.Principal{ID: m.PrincipalID, Role: m.Role, DisplayName: m.DisplayName}
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
