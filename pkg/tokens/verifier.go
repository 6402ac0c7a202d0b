package tokens

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type verifyOptions struct {
	now    func() time.Time
	issuer string
}

type Option func(*verifyOptions)

func WithTime(now func() time.Time) Option {
	return func(o *verifyOptions) { o.now = now }
}

func WithIssuer(iss string) Option {
	return func(o *verifyOptions) { o.issuer = iss }
}

// Verify checks signature and expiry of tokenStr under secret and decodes it into claims.
// Only HS256 is accepted.
func Verify(tokenStr string, secret []byte, claims jwt.Claims, opts ...Option) error {
	o := verifyOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(o.now),
		jwt.WithExpirationRequired(),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}

	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if len(secret) == 0 {
			return nil, ErrSigning
		}
		return secret, nil
	}, parserOpts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}

	if tc, ok := claims.(typedClaims); ok {
		sub, _ := tc.GetSubject()
		if sub == "" {
			return fmt.Errorf("%w: token has no subject", ErrInvalidToken)
		}
		return checkType(tc)
	}
	return nil
}

func checkType(tc typedClaims) error {
	want := TypeAccess
	if _, ok := tc.(*RefreshClaims); ok {
		want = TypeRefresh
	}
	if tc.tokenType() != want {
		return fmt.Errorf("%w: expected %s token", ErrInvalidToken, want)
	}
	return nil
}

// Verifier binds Verify to the configured secrets.
type Verifier struct {
	cfg Config
	now func() time.Time
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg.withDefaults(), now: time.Now}, nil
}

func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	cp := *v
	cp.now = now
	return &cp
}

func (v *Verifier) options() []Option {
	return []Option{WithTime(v.now), WithIssuer(v.cfg.Issuer)}
}

func (v *Verifier) AccessClaimsFromToken(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := Verify(tokenStr, v.cfg.AccessSecret, &claims, v.options()...); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (v *Verifier) RefreshClaimsFromToken(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := Verify(tokenStr, v.cfg.RefreshSecret, &claims, v.options()...); err != nil {
		return nil, err
	}
	return &claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(h http.Header) (string, error) {
	raw := strings.TrimSpace(h.Get("Authorization"))
	if raw == "" {
		return "", ErrMissingCredential
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: authorization scheme is not Bearer", ErrMissingCredential)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// RequireAuthenticated resolves the principal behind the request's bearer access token.
func (v *Verifier) RequireAuthenticated(h http.Header) (Principal, error) {
	token, err := BearerToken(h)
	if err != nil {
		return Principal{}, err
	}
	claims, err := v.AccessClaimsFromToken(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims.Principal(), nil
}
