package tokens

import "errors"

var (
	ErrSigning        = errors.New("token signing is not configured")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")

	ErrMissingCredential = errors.New("missing bearer credential")
	ErrUnauthorized      = errors.New("unauthorized")
)
