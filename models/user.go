package models

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an operator account that can sign in and record visits.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:100;not null"`
	FullName     string `gorm:"size:150"`
	IsAdmin      bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (User) TableName() string { return "usuarios" }

// DisplayName prefers the full name over the username, as audit lines do.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Token is the opaque API key issued at login. A user holds at most one.
type Token struct {
	Key       string `gorm:"primaryKey;size:64;column:token_key"`
	UserID    uint   `gorm:"not null;uniqueIndex"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

func (Token) TableName() string { return "tokens" }
