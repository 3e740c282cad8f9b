package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/repo"
)

// StatsService computes the admin dashboard overview.
type StatsService struct {
	DB *gorm.DB

	// Now is the clock; tests may override it.
	Now func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Overview returns user, conversation, announcement and feedback totals.
func (s *StatsService) Overview(ctx context.Context) (repo.Overview, error) {
	return repo.LoadOverview(ctx, s.DB, s.Now())
}
