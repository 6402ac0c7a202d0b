package repo

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	pkg_hash "github.com/Skotchmaster/school_admin/pkg/hash"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
	"github.com/Skotchmaster/school_admin/services/auth/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserAlreadyExist = errors.New("user already exist")
var ErrUserNotFound = errors.New("user not found")

// pqUniqueViolation is the SQLSTATE postgres reports for a unique index conflict.
const pqUniqueViolation = "23505"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserDirectory verifies credentials and owns principals.
type UserDirectory interface {
	VerifyCredential(ctx context.Context, username, password string) (tokens.Principal, error)
}

func userPrincipal(u *models.User) tokens.Principal {
	return tokens.Principal{
		ID:          u.PrincipalID(),
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
}

// VerifyCredential never tells an unknown username apart from a wrong password.
func (r *GormRepo) VerifyCredential(ctx context.Context, username, password string) (tokens.Principal, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pkg_hash.BurnCompare(password)
			return tokens.Principal{}, ErrInvalidCredentials
		}
		return tokens.Principal{}, unavailable("find user", err)
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return tokens.Principal{}, ErrInvalidCredentials
	}
	return userPrincipal(&user), nil
}

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("username = ?", u.Username).FirstOrCreate(u)
	if tx.Error != nil {
		// a concurrent insert can win between the lookup and the create
		if isDuplicateKey(tx.Error) {
			return ErrUserAlreadyExist
		}
		return unavailable("create user", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrUserAlreadyExist
	}
	return nil
}

// EnsureUser creates username with password and role unless it already exists.
func (r *GormRepo) EnsureUser(ctx context.Context, username, password, role string) error {
	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		return err
	}
	err = r.CreateUserIfNotExists(ctx, &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         role,
		DisplayName:  username,
	})
	if errors.Is(err, ErrUserAlreadyExist) {
		return nil
	}
	return err
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, unavailable("get user", err)
	}
	return &user, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
