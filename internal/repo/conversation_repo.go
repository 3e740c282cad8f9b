// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the repository for conversations and
// their user-joined read projection.
//
// Write paths operate on the conversations table directly. Read paths used by
// list endpoints go through joinedQuery, which LEFT JOINs users so every row
// carries the owner's username and email without a lookup per row.
//
// Ordering is always created_at DESC, id DESC so that consecutive pages
// partition the full result set without gaps or repeats.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// ConversationRepo is the persistence gateway for conversations.
type ConversationRepo struct{}

// Create inserts c and fills its ID.
func (ConversationRepo) Create(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetByID returns conversation id.
func (ConversationRepo) GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListViewsPage returns one page of the user-joined projection.
func (ConversationRepo) ListViewsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ConversationView, error) {
	out := []domain.ConversationView{}
	err := joinedQuery(ctx, db).
		Select(viewColumns).
		Order("c.created_at DESC, c.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// SearchViewsPage returns one page of conversations whose title, content or
// owner username contains keyword.
func (ConversationRepo) SearchViewsPage(ctx context.Context, db *gorm.DB, keyword string, offset, limit int) ([]domain.ConversationView, error) {
	out := []domain.ConversationView{}
	err := matchKeyword(joinedQuery(ctx, db), keyword).
		Select(viewColumns).
		Order("c.created_at DESC, c.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// Count returns the number of conversations.
func (ConversationRepo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Conversation{}).Count(&n).Error
	return n, err
}

// CountSearch returns the number of rows SearchViewsPage would page over.
func (ConversationRepo) CountSearch(ctx context.Context, db *gorm.DB, keyword string) (int64, error) {
	var n int64
	err := matchKeyword(joinedQuery(ctx, db), keyword).Count(&n).Error
	return n, err
}

// ListByUser returns every conversation owned by userID, newest first.
func (ConversationRepo) ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Conversation, error) {
	out := []domain.Conversation{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// Delete removes conversation id.
func (ConversationRepo) Delete(ctx context.Context, db *gorm.DB, id uint) error {
	return affected(db.WithContext(ctx).Delete(&domain.Conversation{}, id))
}

// CountSince returns the number of conversations created at or after t.
func (ConversationRepo) CountSince(ctx context.Context, db *gorm.DB, t time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("created_at >= ?", t.UTC()).
		Count(&n).Error
	return n, err
}

const viewColumns = "c.id, c.user_id, COALESCE(u.username, '') AS username, u.email, c.title, c.content, c.created_at"

// joinedQuery is conversations LEFT JOIN users without a projection, so the
// same builder serves both page and count queries.
func joinedQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Table("conversations AS c").
		Joins("LEFT JOIN users u ON u.id = c.user_id")
}

func matchKeyword(q *gorm.DB, keyword string) *gorm.DB {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return q
	}
	like := "%" + escapeLike(keyword) + "%"
	return q.Where("c.title LIKE ? ESCAPE '\\' OR c.content LIKE ? ESCAPE '\\' OR u.username LIKE ? ESCAPE '\\'", like, like, like)
}

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
