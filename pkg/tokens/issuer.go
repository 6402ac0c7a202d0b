package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Pair is what a successful login hands back to the caller.
type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	Refresh      RefreshClaims
}

type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer fails with ErrSigning when cfg carries no usable secrets; callers treat that as fatal.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg.withDefaults(), now: time.Now}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTTL() time.Duration  { return i.cfg.AccessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

func NewJTI() string { return uuid.NewString() }

func (i *Issuer) registered(p Principal, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		Subject:   p.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

func (i *Issuer) IssueAccessToken(p Principal) (string, time.Time, error) {
	if p.ID == "" {
		return "", time.Time{}, fmt.Errorf("issue access token: empty principal id")
	}
	claims := AccessClaims{
		Role:             p.Role,
		Name:             p.DisplayName,
		Type:             TypeAccess,
		RegisteredClaims: i.registered(p, i.cfg.AccessTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (i *Issuer) IssueRefreshToken(p Principal) (string, RefreshClaims, error) {
	if p.ID == "" {
		return "", RefreshClaims{}, fmt.Errorf("issue refresh token: empty principal id")
	}
	claims := RefreshClaims{
		Role:             p.Role,
		Name:             p.DisplayName,
		Type:             TypeRefresh,
		RegisteredClaims: i.registered(p, i.cfg.RefreshTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.RefreshSecret)
	if err != nil {
		return "", RefreshClaims{}, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return signed, claims, nil
}

func (i *Issuer) IssuePair(p Principal) (Pair, error) {
	access, accessExp, err := i.IssueAccessToken(p)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshClaims, err := i.IssueRefreshToken(p)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		Refresh:      refreshClaims,
	}, nil
}
