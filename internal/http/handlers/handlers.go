// Package handlers provides the HTTP handlers of the admin API.
//
// Handlers are transport-thin: they bind and validate input, call a service
// and translate the outcome into the response envelope. Services are
// consumed through the narrow interfaces below so tests can stub them.
package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
	"github.com/tbourn/chat-admin-backend/internal/repo"
	"github.com/tbourn/chat-admin-backend/internal/services"
)

// UserService is the account surface used by the auth and user handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) (bool, error)
	ResetPassword(ctx context.Context, userID uint, newPassword string) (bool, error)
	ResetPasswordByEmail(ctx context.Context, email, newPassword string) error
	PromoteToAdmin(ctx context.Context, userID uint) (bool, error)
	DemoteAdmin(ctx context.Context, userID uint) (bool, error)
	FindAllUsers(ctx context.Context) ([]domain.UserView, error)
	FindByID(ctx context.Context, userID uint) (*domain.User, error)
	DeleteUser(ctx context.Context, userID uint) (bool, error)
}

// TokenService issues and verifies access tokens.
type TokenService interface {
	Issue(u *domain.User) (string, time.Time, error)
	Parse(token string) (*services.Claims, error)
}

// VerificationService sends and checks password-reset codes.
type VerificationService interface {
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) error
}

// ConversationService is the conversation log surface.
type ConversationService interface {
	Save(ctx context.Context, in services.ConversationInput) (*domain.Conversation, error)
	FindAll(ctx context.Context, page, pageSize int) (*services.ConversationPage, error)
	Search(ctx context.Context, keyword string, page, pageSize int) (*services.ConversationPage, error)
	FindByUserID(ctx context.Context, userID uint) ([]domain.Conversation, error)
	Delete(ctx context.Context, id uint) (bool, error)
	Count(ctx context.Context) (int64, error)
	Version(ctx context.Context) (string, error)
}

// AnnouncementService is the announcement surface.
type AnnouncementService interface {
	Create(ctx context.Context, a *domain.Announcement) (bool, error)
	Update(ctx context.Context, a *domain.Announcement, active *bool) (bool, error)
	Delete(ctx context.Context, id uint) (bool, error)
	GetAllActive(ctx context.Context) ([]domain.Announcement, error)
	GetUnreadByUser(ctx context.Context, userID uint) ([]domain.Announcement, error)
	MarkRead(ctx context.Context, announcementID, userID uint) (bool, error)
	MarkMultipleRead(ctx context.Context, ids []uint, userID uint) (bool, error)
}

// FeedbackService is the feedback surface.
type FeedbackService interface {
	FindAll(ctx context.Context) ([]domain.Feedback, error)
	FindByUserID(ctx context.Context, userID uint) ([]domain.Feedback, error)
	Create(ctx context.Context, f *domain.Feedback) (*domain.Feedback, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

// StatsService produces the dashboard overview.
type StatsService interface {
	Overview(ctx context.Context) (repo.Overview, error)
}

// Services bundles the dependencies of Handlers.
type Services struct {
	Users         UserService
	Tokens        TokenService
	Verification  VerificationService
	Conversations ConversationService
	Announcements AnnouncementService
	Feedback      FeedbackService
	Stats         StatsService
}

// Handlers groups every endpoint of the API.
type Handlers struct {
	users    UserService
	tokens   TokenService
	verify   VerificationService
	convs    ConversationService
	anns     AnnouncementService
	feedback FeedbackService
	stats    StatsService

	// started is reported by the status probe.
	started time.Time
}

// New constructs Handlers bound to s.
func New(s Services) *Handlers {
	return &Handlers{
		users:    s.Users,
		tokens:   s.Tokens,
		verify:   s.Verification,
		convs:    s.Conversations,
		anns:     s.Announcements,
		feedback: s.Feedback,
		stats:    s.Stats,
		started:  time.Now().UTC(),
	}
}

// pathID parses a positive numeric path parameter. On failure it writes a
// 400 envelope and returns false.
func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		domainFail(c, CodeBadRequest, MsgInvalidID)
		return 0, false
	}
	return uint(v), true
}

// selfOrAdmin allows the caller to act on userID when it is their own id or
// they currently hold the admin role; otherwise it writes a 403 envelope.
func (h *Handlers) selfOrAdmin(c *gin.Context, userID uint) bool {
	uid := callerID(c)
	if uid == userID {
		return true
	}
	u, err := h.users.FindByID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return false
	}
	if u.IsAdmin() {
		return true
	}
	domainFail(c, CodeForbidden, MsgForbidden)
	return false
}

// callerID returns the authenticated user id; routes using it sit behind
// RequireAuth.
func callerID(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}
