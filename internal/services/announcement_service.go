// Package services – AnnouncementService
//
// This file implements AnnouncementService: admins publish, edit and retire
// announcements; users list the active ones and track what they have read.
// Deleting an announcement only deactivates it so read-state history stays
// intact.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/repo"
)

// AnnouncementRepo defines the repository contract required by
// AnnouncementService.
type AnnouncementRepo interface {
	Create(ctx context.Context, db *gorm.DB, a *domain.Announcement) error
	Update(ctx context.Context, db *gorm.DB, a *domain.Announcement, active *bool) error
	GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Announcement, error)
	Deactivate(ctx context.Context, db *gorm.DB, id uint) error
	ListActive(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Announcement, error)
	ListUnreadByUser(ctx context.Context, db *gorm.DB, userID uint, now time.Time) ([]domain.Announcement, error)
	UpsertRead(ctx context.Context, db *gorm.DB, announcementID, userID uint, now time.Time) error
}

// AnnouncementService implements the announcement use-cases.
type AnnouncementService struct {
	DB   *gorm.DB
	Repo AnnouncementRepo

	// Now is the clock; tests may override it.
	Now func() time.Time
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(db *gorm.DB, r AnnouncementRepo) *AnnouncementService {
	return &AnnouncementService{DB: db, Repo: r, Now: func() time.Time { return time.Now().UTC() }}
}

func validateAnnouncement(a *domain.Announcement) error {
	if a == nil {
		return fmt.Errorf("%w: announcement is required", ErrValidation)
	}
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	switch a.Priority {
	case domain.PriorityNormal, domain.PriorityImportant, domain.PriorityUrgent:
	default:
		return fmt.Errorf("%w: priority must be 0, 1 or 2", ErrValidation)
	}
	return nil
}

// Create publishes a. The announcement starts active with createTime now
// when unset; priority defaults to normal (zero value).
func (s *AnnouncementService) Create(ctx context.Context, a *domain.Announcement) (bool, error) {
	if err := validateAnnouncement(a); err != nil {
		return false, err
	}
	a.ID = 0
	a.IsActive = true
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.Now()
	}
	if err := s.Repo.Create(ctx, s.DB, a); err != nil {
		return false, err
	}
	return true, nil
}

// Update overwrites the editable fields of announcement a.ID. The active flag
// changes only when active is non-nil, so editing a retired announcement
// keeps it retired. It returns false when no such announcement exists.
func (s *AnnouncementService) Update(ctx context.Context, a *domain.Announcement, active *bool) (bool, error) {
	if err := validateAnnouncement(a); err != nil {
		return false, err
	}
	return found(s.Repo.Update(ctx, s.DB, a, active))
}

// Delete deactivates announcement id. It returns false when no such
// announcement exists.
func (s *AnnouncementService) Delete(ctx context.Context, id uint) (bool, error) {
	return found(s.Repo.Deactivate(ctx, s.DB, id))
}

// GetAllActive lists active, unexpired announcements, most urgent first.
func (s *AnnouncementService) GetAllActive(ctx context.Context) ([]domain.Announcement, error) {
	return s.Repo.ListActive(ctx, s.DB, s.Now())
}

// GetUnreadByUser lists the active announcements userID has not read.
func (s *AnnouncementService) GetUnreadByUser(ctx context.Context, userID uint) ([]domain.Announcement, error) {
	return s.Repo.ListUnreadByUser(ctx, s.DB, userID, s.Now())
}

// MarkRead records that userID read announcementID. Marking twice is a
// successful no-op. It returns false when the announcement does not exist.
func (s *AnnouncementService) MarkRead(ctx context.Context, announcementID, userID uint) (bool, error) {
	if _, err := s.Repo.GetByID(ctx, s.DB, announcementID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.Repo.UpsertRead(ctx, s.DB, announcementID, userID, s.Now()); err != nil {
		return false, err
	}
	return true, nil
}

// MarkMultipleRead applies MarkRead to every id. Individual ids that do not
// exist are skipped; the batch still succeeds. Storage errors abort.
func (s *AnnouncementService) MarkMultipleRead(ctx context.Context, ids []uint, userID uint) (bool, error) {
	for _, id := range ids {
		if _, err := s.MarkRead(ctx, id, userID); err != nil {
			return false, err
		}
	}
	return true, nil
}
