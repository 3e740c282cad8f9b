// Package services – FeedbackService
//
// This file implements FeedbackService: users submit free-text feedback,
// admins list and delete it. Beyond requiring an owning user there is no
// validation.
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// FeedbackRepo defines the repository contract required by FeedbackService.
type FeedbackRepo interface {
	Create(ctx context.Context, db *gorm.DB, f *domain.Feedback) error
	List(ctx context.Context, db *gorm.DB) ([]domain.Feedback, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Feedback, error)
	Delete(ctx context.Context, db *gorm.DB, id uint) error
}

// FeedbackService implements the feedback use-cases.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB   *gorm.DB
	Repo FeedbackRepo
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(db *gorm.DB, r FeedbackRepo) *FeedbackService {
	return &FeedbackService{DB: db, Repo: r}
}

// FindAll lists all feedback, newest first.
func (s *FeedbackService) FindAll(ctx context.Context) ([]domain.Feedback, error) {
	return s.Repo.List(ctx, s.DB)
}

// FindByUserID lists feedback submitted by userID.
func (s *FeedbackService) FindByUserID(ctx context.Context, userID uint) ([]domain.Feedback, error) {
	return s.Repo.ListByUser(ctx, s.DB, userID)
}

// Create stores f; CreatedAt defaults to now.
func (s *FeedbackService) Create(ctx context.Context, f *domain.Feedback) (*domain.Feedback, error) {
	if f == nil || f.UserID == 0 {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	f.ID = 0
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if err := s.Repo.Create(ctx, s.DB, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes feedback id and reports whether a row was deleted.
func (s *FeedbackService) Delete(ctx context.Context, id uint) (bool, error) {
	return found(s.Repo.Delete(ctx, s.DB, id))
}
