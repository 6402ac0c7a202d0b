package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/models"
)

// GormRepo stores refresh tokens and user accounts in postgres or sqlite.
type GormRepo struct {
	DB     *gorm.DB
	Policy SessionPolicy
	Now    func() time.Time
}

func NewGormRepo(db *gorm.DB, policy SessionPolicy) *GormRepo {
	return &GormRepo{DB: db, Policy: policy, Now: time.Now}
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(&models.User{}, &models.RefreshToken{})
}

func (r *GormRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// lockPrincipal serialises writers for one principal until the transaction ends.
// sqlite has a single writer already.
func lockPrincipal(tx *gorm.DB, principalID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", principalID).Error
}

func (r *GormRepo) AddRefreshToken(ctx context.Context, rec Record) error {
	m := rec.model(r.now())
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPrincipal(tx, m.PrincipalID); err != nil {
			return err
		}
		if r.Policy != PolicyMulti {
			if err := tx.Where("principal_id = ?", m.PrincipalID).Delete(&models.RefreshToken{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return unavailable("add refresh token", err)
	}
	return nil
}

func (r *GormRepo) findByHash(db *gorm.DB, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := db.Where("token_hash = ?", hash).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, unavailable("find refresh token", err)
	}
	return &token, nil
}

func (r *GormRepo) VerifyRefreshToken(ctx context.Context, token string) (tokens.Principal, error) {
	db := r.DB.WithContext(ctx)
	m, err := r.findByHash(db, Sha256Hex(token))
	if err != nil {
		return tokens.Principal{}, err
	}
	if !m.ExpiresAt.After(r.now()) {
		if err := db.Delete(&models.RefreshToken{}, m.ID).Error; err != nil {
			return tokens.Principal{}, unavailable("purge expired refresh token", err)
		}
		return tokens.Principal{}, ErrRefreshTokenExpired
	}
	return principalOf(*m), nil
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).
		Where("token_hash = ?", Sha256Hex(token)).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return unavailable("revoke refresh token", err)
	}
	return nil
}

func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldToken string, rec Record) error {
	now := r.now()
	m := rec.model(now)
	oldHash := Sha256Hex(oldToken)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token_hash = ? AND expires_at > ?", oldHash, now).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return unavailable("rotate refresh token", res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := r.findByHash(tx, oldHash); err != nil {
				return err
			}
			return ErrRefreshTokenExpired
		}
		if err := tx.Create(&m).Error; err != nil {
			return unavailable("rotate refresh token", err)
		}
		return nil
	})
	return err
}

func (r *GormRepo) RevokeAll(ctx context.Context, principalID string) error {
	err := r.DB.WithContext(ctx).
		Where("principal_id = ?", principalID).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return unavailable("revoke all refresh tokens", err)
	}
	return nil
}

// PurgeExpired removes records past their expiry and reports how many were deleted.
func (r *GormRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, unavailable("purge expired refresh tokens", res.Error)
	}
	return res.RowsAffected, nil
}
