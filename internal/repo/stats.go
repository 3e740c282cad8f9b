// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) and the admin dashboard.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// ListStamp summarizes the rows behind the conversation list: the
// conversations themselves and the users joined into each row. Any insert,
// delete or user update changes at least one field.
type ListStamp struct {
	Conversations int64
	MaxID         int64
	IDSum         int64
	Newest        *time.Time

	Users        int64
	UserIDSum    int64
	UsersUpdated *time.Time
}

// String renders s as a compact token for ETags.
func (s ListStamp) String() string {
	return fmt.Sprintf("%d.%d.%d.%d-%d.%d.%d",
		s.Conversations, s.MaxID, s.IDSum, unixNano(s.Newest),
		s.Users, s.UserIDSum, unixNano(s.UsersUpdated))
}

func unixNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UTC().UnixNano()
}

type idAggregate struct {
	N     int64
	MaxID int64
	IDSum int64
}

// aggregateIDs counts the rows of model together with MAX(id) and SUM(id).
// The casts keep SUM an integer on Postgres.
func aggregateIDs(ctx context.Context, db *gorm.DB, model any) (idAggregate, error) {
	var a idAggregate
	err := db.WithContext(ctx).Model(model).
		Select("COUNT(*) AS n, CAST(COALESCE(MAX(id), 0) AS BIGINT) AS max_id, CAST(COALESCE(SUM(id), 0) AS BIGINT) AS id_sum").
		Scan(&a).Error
	return a, err
}

// latest returns the greatest value of column in model, or nil when empty.
// ORDER BY is used instead of MAX() so SQLite returns a typed timestamp.
func latest(ctx context.Context, db *gorm.DB, model any, column string) (*time.Time, error) {
	var rows []struct{ T time.Time }
	err := db.WithContext(ctx).Model(model).
		Select(column + " AS t").Order(column + " DESC").Limit(1).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0].T, nil
}

// ConversationListStamp loads the ListStamp of the conversation list.
func ConversationListStamp(ctx context.Context, db *gorm.DB) (ListStamp, error) {
	var s ListStamp
	conv, err := aggregateIDs(ctx, db, &domain.Conversation{})
	if err != nil {
		return s, err
	}
	s.Conversations, s.MaxID, s.IDSum = conv.N, conv.MaxID, conv.IDSum
	if s.Newest, err = latest(ctx, db, &domain.Conversation{}, "created_at"); err != nil {
		return s, err
	}

	users, err := aggregateIDs(ctx, db, &domain.User{})
	if err != nil {
		return s, err
	}
	s.Users, s.UserIDSum = users.N, users.IDSum
	if s.UsersUpdated, err = latest(ctx, db, &domain.User{}, "updated_at"); err != nil {
		return s, err
	}
	return s, nil
}

// Overview is the admin dashboard summary.
type Overview struct {
	Users               int64 `json:"users"`
	Admins              int64 `json:"admins"`
	Conversations       int64 `json:"conversations"`
	TodayConversations  int64 `json:"todayConversations"`
	ActiveAnnouncements int64 `json:"activeAnnouncements"`
	Feedback            int64 `json:"feedback"`
}

// LoadOverview gathers the dashboard counters. "Today" starts at midnight UTC
// of now. Each counter is an independent query.
func LoadOverview(ctx context.Context, db *gorm.DB, now time.Time) (Overview, error) {
	var (
		o   Overview
		err error
	)
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if o.Users, err = (UserRepo{}).Count(ctx, db); err != nil {
		return o, err
	}
	if o.Admins, err = (UserRepo{}).CountByRole(ctx, db, domain.RoleAdmin); err != nil {
		return o, err
	}
	if o.Conversations, err = (ConversationRepo{}).Count(ctx, db); err != nil {
		return o, err
	}
	if o.TodayConversations, err = (ConversationRepo{}).CountSince(ctx, db, midnight); err != nil {
		return o, err
	}
	if o.ActiveAnnouncements, err = (AnnouncementRepo{}).CountActive(ctx, db, now); err != nil {
		return o, err
	}
	if o.Feedback, err = (FeedbackRepo{}).Count(ctx, db); err != nil {
		return o, err
	}
	return o, nil
}
