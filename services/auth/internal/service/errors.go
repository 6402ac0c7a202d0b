package service

import (
	"errors"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/repo"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrRefreshDenied        = errors.New("refresh token denied")
	ErrConflict             = errors.New("user already exist")

	ErrMissingCredential = tokens.ErrMissingCredential
	ErrUnauthorized      = tokens.ErrUnauthorized
	ErrStoreUnavailable  = repo.ErrStoreUnavailable
)
