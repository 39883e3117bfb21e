package database

import (
	"context"
	"errors"
	"strings"

	"github.com/placementpulse/api/model"
	"gorm.io/gorm"
)

// CreateUser inserts a new account. Emails are stored lowercased.
func (s *GORMStore) CreateUser(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}
