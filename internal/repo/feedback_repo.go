// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the repository for the Feedback model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// FeedbackRepo is the persistence gateway for user feedback.
type FeedbackRepo struct{}

// Create inserts f, defaulting CreatedAt to now.
func (FeedbackRepo) Create(ctx context.Context, db *gorm.DB, f *domain.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(f).Error
}

// List returns all feedback, newest first.
func (FeedbackRepo) List(ctx context.Context, db *gorm.DB) ([]domain.Feedback, error) {
	out := []domain.Feedback{}
	err := db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// ListByUser returns the feedback submitted by userID, newest first.
func (FeedbackRepo) ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Feedback, error) {
	out := []domain.Feedback{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// Delete removes feedback id.
func (FeedbackRepo) Delete(ctx context.Context, db *gorm.DB, id uint) error {
	return affected(db.WithContext(ctx).Delete(&domain.Feedback{}, id))
}

// Count returns the number of feedback rows.
func (FeedbackRepo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Feedback{}).Count(&n).Error
	return n, err
}
