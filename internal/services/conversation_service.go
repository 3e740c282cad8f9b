// Package services – ConversationService
//
// This file implements ConversationService, which logs question/answer
// exchanges and serves the admin read paths (paginated list, keyword search,
// per-user history). Titles are derived from the question; content is stored
// as a compact JSON object.
//
// Pagination is zero-based. The total is computed by a separate count query
// that is not transactionally linked to the page query, so under concurrent
// writes total and list may disagree slightly.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/repo"
)

const (
	// TitleMaxRunes is the number of question runes kept in a title.
	TitleMaxRunes = 50
	// TitleEllipsis marks a truncated title.
	TitleEllipsis = "..."

	// DefaultPageSize applies when the caller passes pageSize <= 0.
	DefaultPageSize = 20
	// MaxPageSize caps a single page.
	MaxPageSize = 1000

	// IdempotencyScopeConversationLog scopes Idempotency-Key values sent to
	// the conversation log endpoint.
	IdempotencyScopeConversationLog = "conversation.log"
)

// ConversationRepo defines the repository contract required by
// ConversationService.
type ConversationRepo interface {
	Create(ctx context.Context, db *gorm.DB, c *domain.Conversation) error
	GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Conversation, error)
	ListViewsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ConversationView, error)
	SearchViewsPage(ctx context.Context, db *gorm.DB, keyword string, offset, limit int) ([]domain.ConversationView, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountSearch(ctx context.Context, db *gorm.DB, keyword string) (int64, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Conversation, error)
	Delete(ctx context.Context, db *gorm.DB, id uint) error
}

// ConversationInput is one exchange to log.
type ConversationInput struct {
	UserID    *uint
	Question  string
	Answer    string
	ShareID   string
	AppID     string
	CreatedAt time.Time

	// IdempotencyKey, when set, makes retries return the first stored row.
	IdempotencyKey string
}

// ConversationPage is one page of the user-joined projection.
type ConversationPage struct {
	List     []domain.ConversationView `json:"list"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
	Keyword  string                    `json:"keyword,omitempty"`
}

// ConversationService implements the conversation use-cases.
type ConversationService struct {
	DB   *gorm.DB
	Repo ConversationRepo

	// IdempotencyTTL bounds how long an Idempotency-Key is honored.
	IdempotencyTTL time.Duration
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, r ConversationRepo, idemTTL time.Duration) *ConversationService {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &ConversationService{DB: db, Repo: r, IdempotencyTTL: idemTTL}
}

var convTracer = otel.Tracer("services/ConversationService")

// Save logs one exchange. A nil owner is rejected with ErrValidation.
func (s *ConversationService) Save(ctx context.Context, in ConversationInput) (*domain.Conversation, error) {
	if in.UserID == nil || *in.UserID == 0 {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	userID := *in.UserID

	ctx, span := convTracer.Start(ctx, "Save", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Bool("idempotent", in.IdempotencyKey != ""),
	))
	defer span.End()

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if c, err := s.replay(ctx, userID, key); err != nil || c != nil {
			return c, err
		}
	}

	c := &domain.Conversation{
		UserID:    userID,
		Title:     DeriveTitle(in.Question),
		Content:   EncodeContent(in.Question, in.Answer, in.ShareID, in.AppID),
		CreatedAt: in.CreatedAt.UTC(),
	}
	if in.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if key == "" {
		if err := s.Repo.Create(ctx, s.DB, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.PurgeExpiredIdempotency(ctx, tx, userID, IdempotencyScopeConversationLog, key, time.Now()); err != nil {
			return err
		}
		if err := s.Repo.Create(ctx, tx, c); err != nil {
			return err
		}
		_, err := repo.CreateIdempotency(ctx, tx, userID, IdempotencyScopeConversationLog, key, c.ID, 200, s.IdempotencyTTL)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent retry won; hand back its row.
		if prev, rerr := s.replay(ctx, userID, key); rerr != nil || prev != nil {
			return prev, rerr
		}
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("conversation.id", int64(c.ID)))
	return c, nil
}

func (s *ConversationService) replay(ctx context.Context, userID uint, key string) (*domain.Conversation, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, IdempotencyScopeConversationLog, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := s.Repo.GetByID(ctx, s.DB, rec.ResourceID)
	if errors.Is(err, repo.ErrNotFound) {
		// The original row was deleted; release the key.
		return nil, repo.DeleteIdempotency(ctx, s.DB, rec.ID)
	}
	return c, err
}

// FindAll returns page (zero-based) of the user-joined projection.
func (s *ConversationService) FindAll(ctx context.Context, page, pageSize int) (*ConversationPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	ctx, span := convTracer.Start(ctx, "FindAll", trace.WithAttributes(
		attribute.Int("page", page), attribute.Int("page_size", pageSize),
	))
	defer span.End()

	total, err := s.Repo.Count(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := &ConversationPage{List: []domain.ConversationView{}, Total: total, Page: page, PageSize: pageSize}
	if total == 0 {
		return out, nil
	}
	items, err := s.Repo.ListViewsPage(ctx, s.DB, page*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	out.List = items
	return out, nil
}

// Search is FindAll restricted to rows whose title, content or owner
// username contains keyword. The keyword is echoed back.
func (s *ConversationService) Search(ctx context.Context, keyword string, page, pageSize int) (*ConversationPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	ctx, span := convTracer.Start(ctx, "Search", trace.WithAttributes(
		attribute.Int("page", page), attribute.Int("page_size", pageSize),
	))
	defer span.End()

	total, err := s.Repo.CountSearch(ctx, s.DB, keyword)
	if err != nil {
		return nil, err
	}
	out := &ConversationPage{List: []domain.ConversationView{}, Total: total, Page: page, PageSize: pageSize, Keyword: keyword}
	if total == 0 {
		return out, nil
	}
	items, err := s.Repo.SearchViewsPage(ctx, s.DB, keyword, page*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	out.List = items
	return out, nil
}

// FindByUserID returns every conversation of userID, newest first.
func (s *ConversationService) FindByUserID(ctx context.Context, userID uint) ([]domain.Conversation, error) {
	return s.Repo.ListByUser(ctx, s.DB, userID)
}

// Delete removes conversation id and reports whether a row was deleted.
func (s *ConversationService) Delete(ctx context.Context, id uint) (bool, error) {
	return found(s.Repo.Delete(ctx, s.DB, id))
}

// Count returns the number of logged conversations.
func (s *ConversationService) Count(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx, s.DB)
}

// Version returns a value that changes whenever the conversation list does,
// suitable for a weak ETag.
func (s *ConversationService) Version(ctx context.Context) (string, error) {
	stamp, err := repo.ConversationListStamp(ctx, s.DB)
	if err != nil {
		return "", err
	}
	return stamp.String(), nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// DeriveTitle returns the question itself when it is at most TitleMaxRunes
// long, otherwise its first TitleMaxRunes runes followed by TitleEllipsis.
// The question is NFC-normalized first so composed characters count once.
func DeriveTitle(question string) string {
	q := norm.NFC.String(question)
	if utf8.RuneCountInString(q) <= TitleMaxRunes {
		return q
	}
	return string([]rune(q)[:TitleMaxRunes]) + TitleEllipsis
}

// EncodeContent renders {question, answer, shareId?, appId?} as a compact JSON
// object. Optional fields are omitted when empty.
func EncodeContent(question, answer, shareID, appID string) string {
	var b strings.Builder
	b.WriteString(`{"question":`)
	writeJSONString(&b, question)
	b.WriteString(`,"answer":`)
	writeJSONString(&b, answer)
	if shareID != "" {
		b.WriteString(`,"shareId":`)
		writeJSONString(&b, shareID)
	}
	if appID != "" {
		b.WriteString(`,"appId":`)
		writeJSONString(&b, appID)
	}
	b.WriteByte('}')
	return b.String()
}

const hexDigits = "0123456789abcdef"

// writeJSONString quotes s, escaping backslash, quote, newline, carriage
// return and tab by name and any other control character as \u00XX. Other
// characters, including '<', '>' and '&', are written as-is.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[r>>4])
				b.WriteByte(hexDigits[r&0xF])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
