// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the repository for announcements and the
// per-user read state kept in user_announcement_status.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// AnnouncementRepo is the persistence gateway for announcements and their
// read-status rows.
type AnnouncementRepo struct{}

// Create inserts a and fills its ID.
func (AnnouncementRepo) Create(ctx context.Context, db *gorm.DB, a *domain.Announcement) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

// Update overwrites the editable columns of announcement a.ID. A map is used
// so that zero values (priority 0, no expiry) are written too. is_active is
// only touched when active is non-nil.
func (AnnouncementRepo) Update(ctx context.Context, db *gorm.DB, a *domain.Announcement, active *bool) error {
	cols := map[string]any{
		"title":       a.Title,
		"content":     a.Content,
		"priority":    a.Priority,
		"expire_time": a.ExpireTime,
	}
	if active != nil {
		cols["is_active"] = *active
	}
	return affected(db.WithContext(ctx).
		Model(&domain.Announcement{}).
		Where("id = ?", a.ID).
		Updates(cols))
}

// GetByID returns announcement id regardless of its active flag.
func (AnnouncementRepo) GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Announcement, error) {
	var a domain.Announcement
	if err := db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Deactivate soft-deletes announcement id.
func (AnnouncementRepo) Deactivate(ctx context.Context, db *gorm.DB, id uint) error {
	return affected(db.WithContext(ctx).
		Model(&domain.Announcement{}).
		Where("id = ?", id).
		Update("is_active", false))
}

// ListActive returns announcements that are active and not expired at now,
// most urgent first and newest first within a priority.
func (AnnouncementRepo) ListActive(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Announcement, error) {
	out := []domain.Announcement{}
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expire_time IS NULL OR expire_time > ?", now.UTC()).
		Order("priority DESC, created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// ListUnreadByUser returns the active announcements userID has no read-status
// row for, or whose row is still unread.
func (AnnouncementRepo) ListUnreadByUser(ctx context.Context, db *gorm.DB, userID uint, now time.Time) ([]domain.Announcement, error) {
	out := []domain.Announcement{}
	err := db.WithContext(ctx).
		Model(&domain.Announcement{}).
		Select("announcements.*").
		Joins("LEFT JOIN user_announcement_status s ON s.announcement_id = announcements.id AND s.user_id = ?", userID).
		Where("announcements.is_active = ?", true).
		Where("announcements.expire_time IS NULL OR announcements.expire_time > ?", now.UTC()).
		Where("s.id IS NULL OR s.is_read = ?", false).
		Order("announcements.priority DESC, announcements.created_at DESC, announcements.id DESC").
		Find(&out).Error
	return out, err
}

// UpsertRead marks announcementID read for userID. Repeating the call keeps a
// single row and refreshes its read time.
func (AnnouncementRepo) UpsertRead(ctx context.Context, db *gorm.DB, announcementID, userID uint, now time.Time) error {
	readAt := now.UTC()
	row := &domain.UserAnnouncementStatus{
		AnnouncementID: announcementID,
		UserID:         userID,
		IsRead:         true,
		ReadTime:       &readAt,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "announcement_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_read", "read_time"}),
		}).
		Create(row).Error
}

// GetStatus returns the read-status row for (announcementID, userID).
func (AnnouncementRepo) GetStatus(ctx context.Context, db *gorm.DB, announcementID, userID uint) (*domain.UserAnnouncementStatus, error) {
	var s domain.UserAnnouncementStatus
	err := db.WithContext(ctx).
		Where("announcement_id = ? AND user_id = ?", announcementID, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountActive returns the number of active, unexpired announcements.
func (AnnouncementRepo) CountActive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Announcement{}).
		Where("is_active = ?", true).
		Where("expire_time IS NULL OR expire_time > ?", now.UTC()).
		Count(&n).Error
	return n, err
}
