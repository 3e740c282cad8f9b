package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/repo"
)

func newConvSvc(t *testing.T) *ConversationService {
	t.Helper()
	return NewConversationService(newServiceDB(t), repo.ConversationRepo{}, time.Hour)
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", 51)
	exact := strings.Repeat("b", 50)
	greek := strings.Repeat("λ", 60)
	// e + combining acute composes into one rune under NFC
	decomposed := strings.Repeat("e\u0301", 50)

	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"short", "hello?", "hello?"},
		{"exactly fifty", exact, exact},
		{"fifty one", long, strings.Repeat("a", 50) + TitleEllipsis},
		{"multibyte", greek, strings.Repeat("λ", 50) + TitleEllipsis},
		{"composed to fifty", decomposed, strings.Repeat("é", 50)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTitle(tc.in)
			if got != tc.want {
				t.Fatalf("DeriveTitle(%q) = %q; want %q", tc.in, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("invalid utf8 in %q", got)
			}
		})
	}
}

func TestEncodeContent(t *testing.T) {
	tests := []struct {
		name                   string
		q, a, share, app, want string
	}{
		{"plain", "hi", "hello", "", "", `{"question":"hi","answer":"hello"}`},
		{"optional ids", "q", "a", "s1", "app", `{"question":"q","answer":"a","shareId":"s1","appId":"app"}`},
		{"only app", "q", "a", "", "app", `{"question":"q","answer":"a","appId":"app"}`},
		{"escapes", "say \"hi\"\n", "c:\\tmp\t\r", "", "", `{"question":"say \"hi\"\n","answer":"c:\\tmp\t\r"}`},
		{"control", "\x01", "<b>&</b>", "", "", `{"question":"\u0001","answer":"<b>&</b>"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EncodeContent(tc.q, tc.a, tc.share, tc.app)
			if got != tc.want {
				t.Fatalf("got  %s\nwant %s", got, tc.want)
			}
			var m map[string]string
			if err := json.Unmarshal([]byte(got), &m); err != nil {
				t.Fatalf("not valid json: %v", err)
			}
			if m["question"] != tc.q || m["answer"] != tc.a {
				t.Fatalf("round trip mismatch: %+v", m)
			}
		})
	}
}

func TestConversationService_Save(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, ConversationInput{Question: "q", Answer: "a"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("nil user: want ErrValidation, got %v", err)
	}

	q := strings.Repeat("x", 80)
	c, err := s.Save(ctx, ConversationInput{UserID: uintPtr(7), Question: q, Answer: "ans", ShareID: "sh"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.ID == 0 || c.UserID != 7 || c.CreatedAt.IsZero() {
		t.Fatalf("unexpected row %+v", c)
	}
	if c.Title != strings.Repeat("x", 50)+"..." {
		t.Fatalf("title=%q", c.Title)
	}
	stored, err := (repo.ConversationRepo{}).GetByID(ctx, s.DB, c.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Content != EncodeContent(q, "ans", "sh", "") {
		t.Fatalf("content=%s", stored.Content)
	}

	short, err := s.Save(ctx, ConversationInput{UserID: uintPtr(7), Question: "short one", Answer: "a"})
	if err != nil || short.Title != "short one" {
		t.Fatalf("short title: %+v %v", short, err)
	}
}

func TestConversationService_Save_Idempotent(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()

	in := ConversationInput{UserID: uintPtr(3), Question: "q", Answer: "a", IdempotencyKey: "k-1"}
	first, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry created a new row: %d vs %d", first.ID, second.ID)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("want 1 row, got %d", n)
	}

	// same key, different user is independent
	other := in
	other.UserID = uintPtr(4)
	third, err := s.Save(ctx, other)
	if err != nil || third.ID == first.ID {
		t.Fatalf("other user: %+v %v", third, err)
	}

	// deleting the original frees the key
	if ok, err := s.Delete(ctx, first.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	fresh, err := s.Save(ctx, in)
	if err != nil || fresh.ID == first.ID {
		t.Fatalf("after delete: %+v %v", fresh, err)
	}
	again, err := s.Save(ctx, in)
	if err != nil || again.ID != fresh.ID {
		t.Fatalf("replay after re-use: %+v %v", again, err)
	}
}

func seedConv(t *testing.T, s *ConversationService, n int) {
	t.Helper()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, err := s.Save(context.Background(), ConversationInput{
			UserID:    uintPtr(uint(1 + i%3)),
			Question:  fmt.Sprintf("question %02d", i),
			Answer:    fmt.Sprintf("answer %02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func TestConversationService_FindAll_PagesConcatenate(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()
	seedConv(t, s, 23)

	full, err := s.FindAll(ctx, 0, MaxPageSize)
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	if full.Total != 23 || len(full.List) != 23 {
		t.Fatalf("full: total=%d len=%d", full.Total, len(full.List))
	}

	for _, size := range []int{1, 5, 7, 23, 50} {
		var ids []uint
		pages := int((full.Total + int64(size) - 1) / int64(size))
		for p := 0; p < pages; p++ {
			page, err := s.FindAll(ctx, p, size)
			if err != nil {
				t.Fatalf("size %d page %d: %v", size, p, err)
			}
			if len(page.List) > size || page.Total != full.Total || page.Page != p || page.PageSize != size {
				t.Fatalf("size %d page %d: %+v", size, p, page)
			}
			for _, v := range page.List {
				ids = append(ids, v.ID)
			}
		}
		if len(ids) != len(full.List) {
			t.Fatalf("size %d: got %d ids, want %d", size, len(ids), len(full.List))
		}
		for i := range ids {
			if ids[i] != full.List[i].ID {
				t.Fatalf("size %d: position %d = %d, want %d", size, i, ids[i], full.List[i].ID)
			}
		}
	}

	// newest first
	if full.List[0].Title != "question 22" {
		t.Fatalf("first=%q", full.List[0].Title)
	}
	past, err := s.FindAll(ctx, 10, 5)
	if err != nil || len(past.List) != 0 || past.Total != 23 {
		t.Fatalf("past end: %+v %v", past, err)
	}
}

func TestConversationService_FindAll_NormalizesPaging(t *testing.T) {
	s := newConvSvc(t)
	page, err := s.FindAll(context.Background(), -3, 0)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if page.Page != 0 || page.PageSize != DefaultPageSize || page.List == nil {
		t.Fatalf("unexpected %+v", page)
	}
	page, _ = s.FindAll(context.Background(), 0, MaxPageSize+1)
	if page.PageSize != MaxPageSize {
		t.Fatalf("pageSize=%d", page.PageSize)
	}
}

func TestConversationService_Search(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()
	seedConv(t, s, 12)

	res, err := s.Search(ctx, "question 1", 0, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// question 10, 11
	if res.Total != 2 || len(res.List) != 2 || res.Keyword != "question 1" {
		t.Fatalf("unexpected %+v", res)
	}
	none, err := s.Search(ctx, "zzz", 0, 5)
	if err != nil || none.Total != 0 || len(none.List) != 0 {
		t.Fatalf("no match: %+v %v", none, err)
	}
	pct, err := s.Search(ctx, "%", 0, 5)
	if err != nil || pct.Total != 0 {
		t.Fatalf("wildcard must be literal: %+v %v", pct, err)
	}
}

func TestConversationService_FindByUserID_Delete_Count(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()
	seedConv(t, s, 9)

	mine, err := s.FindByUserID(ctx, 2)
	if err != nil || len(mine) != 3 {
		t.Fatalf("by user: %d %v", len(mine), err)
	}
	for _, c := range mine {
		if c.UserID != 2 {
			t.Fatalf("foreign row %+v", c)
		}
	}
	if ok, err := s.Delete(ctx, mine[0].ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Delete(ctx, mine[0].ID); err != nil || ok {
		t.Fatalf("delete again: ok=%v err=%v", ok, err)
	}
	if n, err := s.Count(ctx); err != nil || n != 8 {
		t.Fatalf("count=%d err=%v", n, err)
	}
}

func TestConversationService_Version(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()

	v0, err := s.Version(ctx)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	seedConv(t, s, 1)
	v1, _ := s.Version(ctx)
	if v1 == v0 {
		t.Fatalf("version did not change after insert")
	}
	v1b, _ := s.Version(ctx)
	if v1 != v1b {
		t.Fatalf("version not stable: %q vs %q", v1, v1b)
	}

	c2, err := s.Save(ctx, ConversationInput{UserID: uintPtr(2), Question: "late", Answer: "a"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	v2, _ := s.Version(ctx)
	if ok, err := s.Delete(ctx, c2.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if v3, _ := s.Version(ctx); v3 == v2 {
		t.Fatalf("version did not change after delete")
	}
}

func TestConversationView_JoinsUsername(t *testing.T) {
	s := newConvSvc(t)
	ctx := context.Background()
	u := &domain.User{Username: "alice", Password: "x", Role: domain.RoleUser}
	if err := (repo.UserRepo{}).Create(ctx, s.DB, u); err != nil {
		t.Fatalf("user: %v", err)
	}
	if _, err := s.Save(ctx, ConversationInput{UserID: &u.ID, Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	page, err := s.FindAll(ctx, 0, 10)
	if err != nil || len(page.List) != 1 || page.List[0].Username != "alice" {
		t.Fatalf("joined view: %+v %v", page, err)
	}
}
