package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

func TestFeedbackRepo_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if err := (FeedbackRepo{}).Create(context.Background(), db, &domain.Feedback{UserID: 1, Context: "x"}); err == nil {
		t.Fatalf("expected error when feedback table is missing")
	}
}

func TestFeedbackRepo_CreateListDelete(t *testing.T) {
	db := newTestDB(t, &domain.Feedback{})
	ctx := context.Background()
	r := FeedbackRepo{}

	start := time.Now().UTC().Add(-time.Second)
	f1 := &domain.Feedback{UserID: 1, Context: "great"}
	if err := r.Create(ctx, db, f1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f1.ID == 0 || f1.CreatedAt.Before(start) {
		t.Fatalf("expected id and CreatedAt default, got %+v", f1)
	}
	f2 := &domain.Feedback{UserID: 2, Context: "meh", CreatedAt: time.Now().UTC().Add(time.Minute)}
	if err := r.Create(ctx, db, f2); err != nil {
		t.Fatalf("Create f2: %v", err)
	}

	all, err := r.List(ctx, db)
	if err != nil || len(all) != 2 || all[0].ID != f2.ID {
		t.Fatalf("List newest-first failed: %v %+v", err, all)
	}
	mine, err := r.ListByUser(ctx, db, 1)
	if err != nil || len(mine) != 1 || mine[0].Context != "great" {
		t.Fatalf("ListByUser: %v %+v", err, mine)
	}
	if n, _ := r.Count(ctx, db); n != 2 {
		t.Fatalf("Count = %d; want 2", n)
	}

	if err := r.Delete(ctx, db, f1.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete(ctx, db, f1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
}
