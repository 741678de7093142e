package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepository) CreateUser(ctx context.Context, user *User) error {
	if _, err := r.GetUserByUsername(ctx, user.Username); err == nil {
		return ErrUsernameTaken
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) GetUserByToken(ctx context.Context, key string) (*User, error) {
	var token Token
	err := r.db.WithContext(ctx).Preload("User").Where("token_key = ?", key).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token.User, nil
}

// IssueToken returns the user's token, creating one on first login.
func (r *GormRepository) IssueToken(ctx context.Context, userID uint) (*Token, error) {
	db := r.db.WithContext(ctx)

	var token Token
	err := db.Where("user_id = ?", userID).First(&token).Error
	if err == nil {
		return &token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token = Token{Key: strings.ReplaceAll(uuid.NewString(), "-", ""), UserID: userID}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(&token)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to create token: %w", res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return &token, nil
	}

	var existing Token
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read token: %w", err)
	}
	return &existing, nil
}

func (r *GormRepository) RevokeTokens(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Token{}).Error
}

// UpsertAdmin creates or resets an administrator account.
func (r *GormRepository) UpsertAdmin(ctx context.Context, username, password, fullName string) (*User, bool, error) {
	user, err := r.GetUserByUsername(ctx, username)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{Username: username}
		created = true
	case err != nil:
		return nil, false, err
	}

	user.IsAdmin = true
	if fullName != "" {
		user.FullName = fullName
	}
	if err := user.SetPassword(password); err != nil {
		return nil, false, err
	}

	if created {
		err = r.CreateUser(ctx, user)
	} else {
		err = r.db.WithContext(ctx).Save(user).Error
	}
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}
