package models

import (
	"strconv"
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null"                 json:"role"`
	DisplayName  string    `                                json:"display_name"`
	CreatedAt    time.Time `                                json:"created_at"`
}

func (u *User) PrincipalID() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}

// RefreshToken is the server-side record of an issued refresh token. Only the
// sha256 of the token string is stored.
type RefreshToken struct {
	ID          uint      `gorm:"primaryKey"           json:"id"`
	TokenHash   string    `gorm:"uniqueIndex;not null" json:"-"`
	JTI         string    `gorm:"uniqueIndex;not null" json:"jti"`
	PrincipalID string    `gorm:"index;not null"       json:"principal_id"`
	Role        string    `gorm:"not null"             json:"role"`
	DisplayName string    `                            json:"display_name"`
	ExpiresAt   time.Time `gorm:"index;not null"       json:"expires_at"`
	CreatedAt   time.Time `                            json:"created_at"`
}
