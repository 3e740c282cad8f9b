package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/repo"
)

func newAnnSvc(t *testing.T) *AnnouncementService {
	t.Helper()
	s := NewAnnouncementService(newServiceDB(t), repo.AnnouncementRepo{})
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	return s
}

func mustCreateAnn(t *testing.T, s *AnnouncementService, title string, prio int) *domain.Announcement {
	t.Helper()
	a := &domain.Announcement{AdminUserID: 1, Title: title, Content: "body of " + title, Priority: prio}
	ok, err := s.Create(context.Background(), a)
	if err != nil || !ok {
		t.Fatalf("create %q: ok=%v err=%v", title, ok, err)
	}
	return a
}

func TestAnnouncementService_Create_Validation(t *testing.T) {
	s := newAnnSvc(t)
	tests := []struct {
		name string
		a    *domain.Announcement
	}{
		{"nil", nil},
		{"no title", &domain.Announcement{Content: "c"}},
		{"blank title", &domain.Announcement{Title: "  ", Content: "c"}},
		{"no content", &domain.Announcement{Title: "t"}},
		{"bad priority", &domain.Announcement{Title: "t", Content: "c", Priority: 3}},
		{"negative priority", &domain.Announcement{Title: "t", Content: "c", Priority: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := s.Create(context.Background(), tc.a)
			if ok || !errors.Is(err, ErrValidation) {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestAnnouncementService_Create_Defaults(t *testing.T) {
	s := newAnnSvc(t)
	a := &domain.Announcement{Title: "t", Content: "c", IsActive: false}
	if ok, err := s.Create(context.Background(), a); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}
	if !a.IsActive || a.ID == 0 || !a.CreatedAt.Equal(s.Now()) || a.Priority != domain.PriorityNormal {
		t.Fatalf("defaults not applied: %+v", a)
	}
}

func TestAnnouncementService_ActiveOrdering_And_Expiry(t *testing.T) {
	s := newAnnSvc(t)
	ctx := context.Background()

	low := mustCreateAnn(t, s, "low", domain.PriorityNormal)
	urgent := mustCreateAnn(t, s, "urgent", domain.PriorityUrgent)
	mid := mustCreateAnn(t, s, "mid", domain.PriorityImportant)

	past := s.Now().Add(-time.Hour)
	expired := &domain.Announcement{Title: "expired", Content: "c", ExpireTime: &past}
	if _, err := s.Create(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}

	list, err := s.GetAllActive(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	want := []uint{urgent.ID, mid.ID, low.ID}
	if len(list) != len(want) {
		t.Fatalf("got %d announcements, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d = %d, want %d", i, list[i].ID, id)
		}
	}
}

func TestAnnouncementService_UpdateKeepsRetiredAnnouncementRetired(t *testing.T) {
	s := newAnnSvc(t)
	ctx := context.Background()
	a := mustCreateAnn(t, s, "v1", domain.PriorityNormal)

	if ok, err := s.Delete(ctx, a.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Update(ctx, &domain.Announcement{ID: a.ID, Title: "v2", Content: "c"}, nil); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	active, err := s.GetAllActive(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("edit revived a retired announcement: %+v %v", active, err)
	}
	got, _ := (repo.AnnouncementRepo{}).GetByID(ctx, s.DB, a.ID)
	if got.Title != "v2" || got.IsActive {
		t.Fatalf("after edit: %+v", got)
	}

	on := true
	if ok, err := s.Update(ctx, &domain.Announcement{ID: a.ID, Title: "v3", Content: "c"}, &on); err != nil || !ok {
		t.Fatalf("reactivate: ok=%v err=%v", ok, err)
	}
	if active, _ := s.GetAllActive(ctx); len(active) != 1 {
		t.Fatalf("explicit isActive=true should reactivate, got %d active", len(active))
	}
}

func TestAnnouncementService_Update_Delete(t *testing.T) {
	s := newAnnSvc(t)
	ctx := context.Background()
	a := mustCreateAnn(t, s, "v1", domain.PriorityUrgent)

	upd := &domain.Announcement{ID: a.ID, Title: "v2", Content: "new", Priority: domain.PriorityNormal, IsActive: true}
	if ok, err := s.Update(ctx, upd, nil); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, err := (repo.AnnouncementRepo{}).GetByID(ctx, s.DB, a.ID)
	if err != nil || got.Title != "v2" || got.Priority != domain.PriorityNormal {
		t.Fatalf("after update: %+v %v", got, err)
	}
	if ok, err := s.Update(ctx, &domain.Announcement{ID: 999, Title: "x", Content: "y"}, nil); err != nil || ok {
		t.Fatalf("update missing: ok=%v err=%v", ok, err)
	}

	if ok, err := s.Delete(ctx, a.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	active, _ := s.GetAllActive(ctx)
	if len(active) != 0 {
		t.Fatalf("deleted announcement still active")
	}
	// soft delete keeps the row
	if got, err := (repo.AnnouncementRepo{}).GetByID(ctx, s.DB, a.ID); err != nil || got.IsActive {
		t.Fatalf("row should remain inactive: %+v %v", got, err)
	}
	if ok, err := s.Delete(ctx, 999); err != nil || ok {
		t.Fatalf("delete missing: ok=%v err=%v", ok, err)
	}
}

func TestAnnouncementService_MarkRead_Idempotent(t *testing.T) {
	s := newAnnSvc(t)
	ctx := context.Background()
	a := mustCreateAnn(t, s, "hello", domain.PriorityNormal)

	for i := 0; i < 2; i++ {
		ok, err := s.MarkRead(ctx, a.ID, 42)
		if err != nil || !ok {
			t.Fatalf("mark %d: ok=%v err=%v", i, ok, err)
		}
	}
	var n int64
	if err := s.DB.Model(&domain.UserAnnouncementStatus{}).
		Where("announcement_id = ? AND user_id = ?", a.ID, 42).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("want exactly one status row, got %d", n)
	}
	st, err := (repo.AnnouncementRepo{}).GetStatus(ctx, s.DB, a.ID, 42)
	if err != nil || !st.IsRead || st.ReadTime == nil {
		t.Fatalf("status: %+v %v", st, err)
	}

	if ok, err := s.MarkRead(ctx, 999, 42); err != nil || ok {
		t.Fatalf("missing announcement: ok=%v err=%v", ok, err)
	}
}

func TestAnnouncementService_Unread(t *testing.T) {
	s := newAnnSvc(t)
	ctx := context.Background()
	a1 := mustCreateAnn(t, s, "a1", domain.PriorityNormal)
	a2 := mustCreateAnn(t, s, "a2", domain.PriorityNormal)
	a3 := mustCreateAnn(t, s, "a3", domain.PriorityNormal)

	ok, err := s.MarkMultipleRead(ctx, []uint{a1.ID, 999, a3.ID}, 7)
	if err != nil || !ok {
		t.Fatalf("batch: ok=%v err=%v", ok, err)
	}
	unread, err := s.GetUnreadByUser(ctx, 7)
	if err != nil || len(unread) != 1 || unread[0].ID != a2.ID {
		t.Fatalf("unread for 7: %+v %v", unread, err)
	}
	// another user still sees everything
	unread, _ = s.GetUnreadByUser(ctx, 8)
	if len(unread) != 3 {
		t.Fatalf("unread for 8: %d", len(unread))
	}

	if ok, err := s.MarkMultipleRead(ctx, nil, 7); err != nil || !ok {
		t.Fatalf("empty batch: ok=%v err=%v", ok, err)
	}
}
