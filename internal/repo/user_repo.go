// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the repository for the User model.
//
// All methods are context-aware and accept a *gorm.DB handle, so they can run
// against the root connection or inside a transaction. They follow the "thin
// repository" approach: no business logic, only persistence and query
// composition.
//
// Error semantics:
//   - Lookups of a missing row return ErrNotFound.
//   - UpdatePassword, UpdateRole and Delete return ErrNotFound when no row
//     matched.
//   - Unique violations are returned raw; use IsDuplicate to detect them.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// UserRepo is the persistence gateway for users.
type UserRepo struct{}

// Create inserts u and fills its ID and timestamps.
func (UserRepo) Create(ctx context.Context, db *gorm.DB, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return db.WithContext(ctx).Create(u).Error
}

// GetByID returns the user with the given id.
func (UserRepo) GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername returns the user with the given login name.
func (UserRepo) GetByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the user registered with email.
func (UserRepo) GetByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListViews returns the password-free projection of every user.
func (UserRepo) ListViews(ctx context.Context, db *gorm.DB) ([]domain.UserView, error) {
	out := []domain.UserView{}
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Select("id, username, email, role, created_at, updated_at").
		Order("id asc").
		Scan(&out).Error
	return out, err
}

// UpdatePassword replaces the stored hash for user id.
func (UserRepo) UpdatePassword(ctx context.Context, db *gorm.DB, id uint, hash string) error {
	return affected(db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()}))
}

// UpdateRole sets the role of user id.
func (UserRepo) UpdateRole(ctx context.Context, db *gorm.DB, id uint, role string) error {
	return affected(db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()}))
}

// Delete removes user id.
func (UserRepo) Delete(ctx context.Context, db *gorm.DB, id uint) error {
	return affected(db.WithContext(ctx).Delete(&domain.User{}, id))
}

// Count returns the number of users.
func (UserRepo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// CountByRole returns the number of users holding role.
func (UserRepo) CountByRole(ctx context.Context, db *gorm.DB, role string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}
