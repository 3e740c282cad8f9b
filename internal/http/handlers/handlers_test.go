package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
	"github.com/tbourn/chat-admin-backend/internal/repo"
	"github.com/tbourn/chat-admin-backend/internal/services"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// ---- stubs ----

type stubUsers struct {
	byID      map[uint]*domain.User
	passwords map[string]string
	resetTo   map[string]string
}

func newStubUsers() *stubUsers {
	return &stubUsers{
		byID: map[uint]*domain.User{
			1: {ID: 1, Username: "admin", Role: domain.RoleAdmin},
			2: {ID: 2, Username: "alice", Role: domain.RoleUser},
			3: {ID: 3, Username: "bob", Role: domain.RoleUser},
		},
		passwords: map[string]string{"admin": "admin123", "alice": "secret1", "bob": "secret2"},
		resetTo:   map[string]string{},
	}
}

func (s *stubUsers) byName(name string) *domain.User {
	for _, u := range s.byID {
		if u.Username == name {
			return u
		}
	}
	return nil
}

func (s *stubUsers) Register(_ context.Context, username, email, password string) (*domain.User, error) {
	if s.byName(username) != nil {
		return nil, fmt.Errorf("%w: username already exists", services.ErrConflict)
	}
	u := &domain.User{ID: uint(len(s.byID) + 1), Username: username, Role: domain.RoleUser}
	s.byID[u.ID] = u
	s.passwords[username] = password
	return u, nil
}

func (s *stubUsers) CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	u, err := s.Register(ctx, username, email, password)
	if err == nil {
		u.Role = domain.RoleAdmin
	}
	return u, err
}

func (s *stubUsers) Login(_ context.Context, username, password string) (*domain.User, error) {
	u := s.byName(username)
	if u == nil {
		return nil, fmt.Errorf("%w: user does not exist", services.ErrNotFound)
	}
	if s.passwords[username] != password {
		return nil, fmt.Errorf("%w: incorrect password", services.ErrUnauthorized)
	}
	return u, nil
}

func (s *stubUsers) ChangePassword(_ context.Context, id uint, oldPassword, newPassword string) (bool, error) {
	u := s.byID[id]
	if u == nil || s.passwords[u.Username] != oldPassword {
		return false, nil
	}
	s.passwords[u.Username] = newPassword
	return true, nil
}

func (s *stubUsers) ResetPassword(_ context.Context, id uint, newPassword string) (bool, error) {
	u := s.byID[id]
	if u == nil {
		return false, nil
	}
	s.passwords[u.Username] = newPassword
	return true, nil
}

func (s *stubUsers) ResetPasswordByEmail(_ context.Context, email, newPassword string) error {
	s.resetTo[email] = newPassword
	return nil
}

func (s *stubUsers) PromoteToAdmin(_ context.Context, id uint) (bool, error) {
	u := s.byID[id]
	if u == nil {
		return false, nil
	}
	u.Role = domain.RoleAdmin
	return true, nil
}

func (s *stubUsers) DemoteAdmin(_ context.Context, id uint) (bool, error) {
	u := s.byID[id]
	if u == nil {
		return false, nil
	}
	if u.Username == domain.SuperAdminUsername {
		return false, fmt.Errorf("%w: the default admin cannot be demoted", services.ErrForbidden)
	}
	u.Role = domain.RoleUser
	return true, nil
}

func (s *stubUsers) FindAllUsers(context.Context) ([]domain.UserView, error) {
	out := make([]domain.UserView, 0, len(s.byID))
	for i := uint(1); i <= uint(len(s.byID)); i++ {
		if u := s.byID[i]; u != nil {
			out = append(out, u.View())
		}
	}
	return out, nil
}

func (s *stubUsers) FindByID(_ context.Context, id uint) (*domain.User, error) {
	return s.byID[id], nil
}

func (s *stubUsers) DeleteUser(_ context.Context, id uint) (bool, error) {
	if s.byID[id] == nil {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

type stubVerify struct {
	sendErr   error
	verifyErr error
	sentTo    []string
}

func (s *stubVerify) SendCode(_ context.Context, email string) error {
	s.sentTo = append(s.sentTo, email)
	return s.sendErr
}

func (s *stubVerify) VerifyCode(context.Context, string, string) error { return s.verifyErr }

type stubConvs struct {
	saved   []services.ConversationInput
	deleted map[uint]bool
	version string
	calls   int
}

func (s *stubConvs) Save(_ context.Context, in services.ConversationInput) (*domain.Conversation, error) {
	s.saved = append(s.saved, in)
	return &domain.Conversation{ID: uint(len(s.saved)), UserID: *in.UserID, Title: services.DeriveTitle(in.Question)}, nil
}

func (s *stubConvs) FindAll(_ context.Context, page, pageSize int) (*services.ConversationPage, error) {
	s.calls++
	return &services.ConversationPage{List: []domain.ConversationView{{ID: 1, Username: "alice"}}, Total: 1, Page: page, PageSize: pageSize}, nil
}

func (s *stubConvs) Search(_ context.Context, keyword string, page, pageSize int) (*services.ConversationPage, error) {
	s.calls++
	return &services.ConversationPage{List: []domain.ConversationView{}, Page: page, PageSize: pageSize, Keyword: keyword}, nil
}

func (s *stubConvs) FindByUserID(_ context.Context, userID uint) ([]domain.Conversation, error) {
	return []domain.Conversation{{ID: 9, UserID: userID}}, nil
}

func (s *stubConvs) Delete(_ context.Context, id uint) (bool, error) { return s.deleted[id], nil }
func (s *stubConvs) Count(context.Context) (int64, error)             { return 42, nil }
func (s *stubConvs) Version(context.Context) (string, error)          { return s.version, nil }

type stubAnns struct {
	created    []*domain.Announcement
	reads      map[uint]uint
	lastActive *bool
}

func (s *stubAnns) Create(_ context.Context, a *domain.Announcement) (bool, error) {
	a.ID = uint(len(s.created) + 1)
	s.created = append(s.created, a)
	return true, nil
}

func (s *stubAnns) Update(_ context.Context, a *domain.Announcement, active *bool) (bool, error) {
	s.lastActive = active
	return a.ID <= uint(len(s.created)), nil
}

func (s *stubAnns) Delete(_ context.Context, id uint) (bool, error) {
	return id <= uint(len(s.created)), nil
}

func (s *stubAnns) GetAllActive(context.Context) ([]domain.Announcement, error) {
	return []domain.Announcement{}, nil
}

func (s *stubAnns) GetUnreadByUser(_ context.Context, userID uint) ([]domain.Announcement, error) {
	return []domain.Announcement{{ID: 5, Title: fmt.Sprintf("for %d", userID)}}, nil
}

func (s *stubAnns) MarkRead(_ context.Context, id, userID uint) (bool, error) {
	if id > 10 {
		return false, nil
	}
	s.reads[id] = userID
	return true, nil
}

func (s *stubAnns) MarkMultipleRead(ctx context.Context, ids []uint, userID uint) (bool, error) {
	for _, id := range ids {
		_, _ = s.MarkRead(ctx, id, userID)
	}
	return true, nil
}

type stubFeedback struct{ items []domain.Feedback }

func (s *stubFeedback) FindAll(context.Context) ([]domain.Feedback, error) { return s.items, nil }

func (s *stubFeedback) FindByUserID(_ context.Context, userID uint) ([]domain.Feedback, error) {
	var out []domain.Feedback
	for _, f := range s.items {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *stubFeedback) Create(_ context.Context, f *domain.Feedback) (*domain.Feedback, error) {
	f.ID = uint(len(s.items) + 1)
	s.items = append(s.items, *f)
	return f, nil
}

func (s *stubFeedback) Delete(_ context.Context, id uint) (bool, error) {
	return id <= uint(len(s.items)), nil
}

type stubStats struct{}

func (stubStats) Overview(context.Context) (repo.Overview, error) {
	return repo.Overview{Users: 3, Admins: 1, Conversations: 10, TodayConversations: 2}, nil
}

// ---- harness ----

type harness struct {
	r      *gin.Engine
	tokens *services.TokenIssuer
	users  *stubUsers
	verify *stubVerify
	convs  *stubConvs
	anns   *stubAnns
	fb     *stubFeedback
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		tokens: services.NewTokenIssuer(testSecret, time.Hour, "test"),
		users:  newStubUsers(),
		verify: &stubVerify{},
		convs:  &stubConvs{deleted: map[uint]bool{7: true}, version: "1-100"},
		anns:   &stubAnns{reads: map[uint]uint{}},
		fb:     &stubFeedback{},
	}
	hs := New(Services{
		Users:         h.users,
		Tokens:        h.tokens,
		Verification:  h.verify,
		Conversations: h.convs,
		Announcements: h.anns,
		Feedback:      h.fb,
		Stats:         stubStats{},
	})

	r := gin.New()
	r.Use(middleware.Authenticate(h.tokens))
	r.POST("/auth/login", hs.Login)
	r.POST("/auth/register", hs.Register)
	r.GET("/auth/verify-token", hs.VerifyToken)
	r.POST("/auth/verify-token", hs.VerifyToken)
	r.POST("/auth/send-verification-code", hs.SendVerificationCode)
	r.POST("/auth/reset-password", hs.ResetPassword)
	r.GET("/admin/status", hs.AdminStatus)

	authed := r.Group("", middleware.RequireAuth())
	authed.PUT("/users/:id/change-password", hs.ChangePassword)
	authed.PUT("/users/:id/demote", hs.DemoteUser)
	authed.GET("/users/:id", hs.GetUser)
	authed.POST("/conversation/log",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: services.IdempotencyScopeConversationLog}, nil),
		hs.LogConversation)
	authed.GET("/conversation/logs", hs.ListConversations)
	authed.GET("/conversation/user/:userId", hs.UserConversations)
	authed.DELETE("/conversation/:id", hs.DeleteConversation)
	authed.GET("/conversation/stats", hs.ConversationStatsHandler)
	authed.GET("/announcements/unread/:userId", hs.UnreadAnnouncements)
	authed.POST("/announcements/create", hs.CreateAnnouncement)
	authed.PUT("/announcements/:id", hs.UpdateAnnouncement)
	authed.POST("/announcements/:id/read", hs.MarkAnnouncementRead)
	authed.POST("/announcements/read-batch", hs.MarkAnnouncementsRead)
	authed.POST("/feedbacks/create", hs.CreateFeedback)
	authed.GET("/feedbacks/user/:userId", hs.UserFeedback)
	h.r = r
	return h
}

func (h *harness) token(t *testing.T, id uint) string {
	t.Helper()
	tok, _, err := h.tokens.Issue(h.users.byID[id])
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path, tok, body string, hdr map[string]string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	var env Envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: bad json %q", method, path, w.Body.String())
		}
	}
	return w, env
}

func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want object", env.Data)
	}
	return m
}

// ---- auth ----

func TestLogin(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/auth/login", "", `{"username":"alice","password":"secret1"}`, nil)
	if w.Code != http.StatusOK || env.Code != CodeSuccess {
		t.Fatalf("login: status=%d env=%+v", w.Code, env)
	}
	d := dataMap(t, env)
	if d["tokenType"] != "Bearer" {
		t.Fatalf("tokenType = %v", d["tokenType"])
	}
	claims, err := h.tokens.Parse(d["token"].(string))
	if err != nil || claims.Username != "alice" || claims.Role != domain.RoleUser {
		t.Fatalf("token claims = %+v, err=%v", claims, err)
	}
	if _, leaked := dataMap(t, Envelope{Data: d["user"]})["password"]; leaked {
		t.Fatalf("password serialized")
	}

	cases := []struct {
		body string
		code int
	}{
		{`{"username":"alice","password":"wrong!"}`, CodeUnauthorized},
		{`{"username":"nobody","password":"secret1"}`, CodeNotFound},
		{`{"username":"alice"}`, CodeBadRequest},
	}
	for _, tc := range cases {
		w, env := h.do(t, http.MethodPost, "/auth/login", "", tc.body, nil)
		if w.Code != http.StatusOK || env.Code != tc.code {
			t.Fatalf("%s: status=%d code=%d; want 200/%d", tc.body, w.Code, env.Code, tc.code)
		}
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	_, env := h.do(t, http.MethodPost, "/auth/register", "", `{"username":"carol","password":"secret3"}`, nil)
	if env.Code != CodeSuccess || dataMap(t, env)["username"] != "carol" {
		t.Fatalf("register: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/auth/register", "", `{"username":"carol","password":"secret3"}`, nil)
	if env.Code != CodeConflict {
		t.Fatalf("duplicate: code=%d", env.Code)
	}
	_, env = h.do(t, http.MethodPost, "/auth/register", "", `{"username":"dave","password":"12345"}`, nil)
	if env.Code != CodeBadRequest || !strings.Contains(env.Message, "at least 6") {
		t.Fatalf("short password: %+v", env)
	}
}

func TestVerifyToken_Sources(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, 2)

	_, env := h.do(t, http.MethodGet, "/auth/verify-token", tok, "", nil)
	if env.Code != CodeSuccess || dataMap(t, env)["userId"] != float64(2) {
		t.Fatalf("header: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/auth/verify-token?token="+tok, "", "", nil)
	if env.Code != CodeSuccess {
		t.Fatalf("query: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/auth/verify-token", "", `{"token":"`+tok+`"}`, nil)
	if env.Code != CodeSuccess || dataMap(t, env)["username"] != "alice" {
		t.Fatalf("body: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/auth/verify-token", "", `{"token":"jwt_token_2"}`, nil)
	if env.Code != CodeUnauthorized {
		t.Fatalf("legacy token accepted: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/auth/verify-token", "", "", nil)
	if env.Code != CodeUnauthorized {
		t.Fatalf("missing token: %+v", env)
	}
}

func TestSendVerificationCode_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{nil, CodeSuccess},
		{fmt.Errorf("%w: email is not registered", services.ErrNotFound), CodeNotFound},
		{services.ErrRateLimited, CodeTooManyRequests},
		{fmt.Errorf("%w: connection refused", services.ErrTransport), CodeBadGateway},
		{services.ErrUnavailable, CodeUnavailable},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.verify.sendErr = tc.err
		w, env := h.do(t, http.MethodPost, "/auth/send-verification-code", "", `{"email":"a@x.com"}`, nil)
		if w.Code != http.StatusOK || env.Code != tc.code {
			t.Fatalf("err=%v: status=%d code=%d; want %d", tc.err, w.Code, env.Code, tc.code)
		}
	}

	h := newHarness(t)
	_, env := h.do(t, http.MethodPost, "/auth/send-verification-code", "", `{"email":"not-an-email"}`, nil)
	if env.Code != CodeBadRequest || len(h.verify.sentTo) != 0 {
		t.Fatalf("invalid email: %+v sent=%v", env, h.verify.sentTo)
	}
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	body := `{"email":"a@x.com","code":"123456","newPassword":"n3wpass"}`

	h.verify.verifyErr = services.ErrInvalidCode
	_, env := h.do(t, http.MethodPost, "/auth/reset-password", "", body, nil)
	if env.Code != CodeBadRequest || len(h.users.resetTo) != 0 {
		t.Fatalf("bad code: %+v reset=%v", env, h.users.resetTo)
	}

	h.verify.verifyErr = nil
	_, env = h.do(t, http.MethodPost, "/auth/reset-password", "", body, nil)
	if env.Code != CodeSuccess || h.users.resetTo["a@x.com"] != "n3wpass" {
		t.Fatalf("reset: %+v reset=%v", env, h.users.resetTo)
	}

	_, env = h.do(t, http.MethodPost, "/auth/reset-password", "", `{"email":"a@x.com","code":"12ab56","newPassword":"n3wpass"}`, nil)
	if env.Code != CodeBadRequest {
		t.Fatalf("non-numeric code: %+v", env)
	}
}

// ---- users ----

func TestChangePassword_SelfOrAdmin(t *testing.T) {
	h := newHarness(t)
	body := `{"oldPassword":"secret1","newPassword":"changed1"}`

	_, env := h.do(t, http.MethodPut, "/users/2/change-password", h.token(t, 3), body, nil)
	if env.Code != CodeForbidden {
		t.Fatalf("other user: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/users/2/change-password", h.token(t, 2), `{"oldPassword":"nope","newPassword":"changed1"}`, nil)
	if env.Code != CodeUnauthorized {
		t.Fatalf("wrong old password: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/users/2/change-password", h.token(t, 2), body, nil)
	if env.Code != CodeSuccess || h.users.passwords["alice"] != "changed1" {
		t.Fatalf("self: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/users/3/change-password", h.token(t, 1), `{"oldPassword":"secret2","newPassword":"changed2"}`, nil)
	if env.Code != CodeSuccess {
		t.Fatalf("admin: %+v", env)
	}

	w, env := h.do(t, http.MethodPut, "/users/2/change-password", "", body, nil)
	if w.Code != http.StatusUnauthorized || env.Code != CodeUnauthorized {
		t.Fatalf("anonymous: status=%d env=%+v", w.Code, env)
	}
}

func TestDemote_SentinelForbidden(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, 1)

	_, env := h.do(t, http.MethodPut, "/users/1/demote", admin, "", nil)
	if env.Code != CodeForbidden {
		t.Fatalf("sentinel: %+v", env)
	}
	h.users.byID[3].Role = domain.RoleAdmin
	_, env = h.do(t, http.MethodPut, "/users/3/demote", admin, "", nil)
	if env.Code != CodeSuccess || h.users.byID[3].IsAdmin() {
		t.Fatalf("demote: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/users/99/demote", admin, "", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("missing: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/users/abc/demote", admin, "", nil)
	if env.Code != CodeBadRequest || env.Message != MsgInvalidID {
		t.Fatalf("bad id: %+v", env)
	}
}

func TestGetUser_UsesSafeView(t *testing.T) {
	h := newHarness(t)
	_, env := h.do(t, http.MethodGet, "/users/2", h.token(t, 1), "", nil)
	d := dataMap(t, env)
	if d["username"] != "alice" {
		t.Fatalf("user: %+v", d)
	}
	if _, leaked := d["password"]; leaked {
		t.Fatalf("password serialized")
	}
	_, env = h.do(t, http.MethodGet, "/users/77", h.token(t, 1), "", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("missing: %+v", env)
	}
}

// ---- conversations ----

func TestLogConversation(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, 2)

	_, env := h.do(t, http.MethodPost, "/conversation/log", alice,
		`{"question":"hi","answer":"hello"}`, map[string]string{"Idempotency-Key": "req-1"})
	if env.Code != CodeSuccess {
		t.Fatalf("log: %+v", env)
	}
	in := h.convs.saved[0]
	if *in.UserID != 2 || in.IdempotencyKey != "req-1" || in.Question != "hi" {
		t.Fatalf("input = %+v", in)
	}

	_, env = h.do(t, http.MethodPost, "/conversation/log", alice, `{"userId":3,"question":"hi"}`, nil)
	if env.Code != CodeForbidden {
		t.Fatalf("log for other user: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/conversation/log", h.token(t, 1), `{"userId":3,"question":"hi"}`, nil)
	if env.Code != CodeSuccess || *h.convs.saved[1].UserID != 3 {
		t.Fatalf("admin logs for user: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/conversation/log", alice, `{"answer":"no question"}`, nil)
	if env.Code != CodeBadRequest {
		t.Fatalf("missing question: %+v", env)
	}
}

func TestListConversations_ETagAndSearch(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, 1)

	w, env := h.do(t, http.MethodGet, "/conversation/logs?page=0&pageSize=10", admin, "", nil)
	etag := w.Header().Get("ETag")
	if env.Code != CodeSuccess || !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("list: etag=%q env=%+v", etag, env)
	}
	if d := dataMap(t, env); d["pageSize"] != float64(10) || d["total"] != float64(1) {
		t.Fatalf("page = %+v", d)
	}

	w, _ = h.do(t, http.MethodGet, "/conversation/logs?page=0&pageSize=10", admin, "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified || h.convs.calls != 1 {
		t.Fatalf("conditional: status=%d calls=%d", w.Code, h.convs.calls)
	}

	h.convs.version = "2-200"
	w, _ = h.do(t, http.MethodGet, "/conversation/logs?page=0&pageSize=10", admin, "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("changed list still 304")
	}

	_, env = h.do(t, http.MethodGet, "/conversation/logs?keyword=refund", admin, "", nil)
	if dataMap(t, env)["keyword"] != "refund" {
		t.Fatalf("search: %+v", env)
	}
}

func TestConversationReads(t *testing.T) {
	h := newHarness(t)

	_, env := h.do(t, http.MethodGet, "/conversation/user/3", h.token(t, 2), "", nil)
	if env.Code != CodeForbidden {
		t.Fatalf("other user's history: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/conversation/user/2", h.token(t, 2), "", nil)
	if env.Code != CodeSuccess {
		t.Fatalf("own history: %+v", env)
	}
	_, env = h.do(t, http.MethodDelete, "/conversation/7", h.token(t, 1), "", nil)
	if env.Code != CodeSuccess {
		t.Fatalf("delete: %+v", env)
	}
	_, env = h.do(t, http.MethodDelete, "/conversation/8", h.token(t, 1), "", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("delete missing: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/conversation/stats", h.token(t, 1), "", nil)
	if d := dataMap(t, env); d["total"] != float64(10) || d["today"] != float64(2) {
		t.Fatalf("stats: %+v", d)
	}
}

// ---- announcements / feedback ----

func TestAnnouncements(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, 1)
	alice := h.token(t, 2)

	_, env := h.do(t, http.MethodPost, "/announcements/create", admin, `{"title":"t","content":"c","priority":2}`, nil)
	if env.Code != CodeSuccess || h.anns.created[0].AdminUserID != 1 {
		t.Fatalf("create: %+v", env)
	}
	_, env = h.do(t, http.MethodPut, "/announcements/1", admin, `{"title":"t2","content":"c"}`, nil)
	if env.Code != CodeSuccess || h.anns.lastActive != nil {
		t.Fatalf("update without isActive: %+v active=%v", env, h.anns.lastActive)
	}
	_, env = h.do(t, http.MethodPut, "/announcements/1", admin, `{"title":"t2","content":"c","isActive":false}`, nil)
	if env.Code != CodeSuccess || h.anns.lastActive == nil || *h.anns.lastActive {
		t.Fatalf("update with isActive=false: %+v active=%v", env, h.anns.lastActive)
	}
	_, env = h.do(t, http.MethodPost, "/announcements/create", admin, `{"title":"t","content":"c","priority":5}`, nil)
	if env.Code != CodeBadRequest {
		t.Fatalf("bad priority: %+v", env)
	}

	_, env = h.do(t, http.MethodPost, "/announcements/3/read", alice, "", nil)
	if env.Code != CodeSuccess || h.anns.reads[3] != 2 {
		t.Fatalf("read: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/announcements/30/read", alice, "", nil)
	if env.Code != CodeNotFound {
		t.Fatalf("read missing: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/announcements/read-batch", alice, `{"ids":[4,40]}`, nil)
	if env.Code != CodeSuccess || h.anns.reads[4] != 2 {
		t.Fatalf("batch: %+v", env)
	}
	_, env = h.do(t, http.MethodPost, "/announcements/read-batch", alice, `{"ids":[]}`, nil)
	if env.Code != CodeBadRequest {
		t.Fatalf("empty batch: %+v", env)
	}

	_, env = h.do(t, http.MethodGet, "/announcements/unread/3", alice, "", nil)
	if env.Code != CodeForbidden {
		t.Fatalf("unread other: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/announcements/unread/3", admin, "", nil)
	if env.Code != CodeSuccess {
		t.Fatalf("unread admin: %+v", env)
	}
}

func TestFeedback(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, 2)

	_, env := h.do(t, http.MethodPost, "/feedbacks/create", alice, `{"context":"great answers"}`, nil)
	if env.Code != CodeSuccess || h.fb.items[0].UserID != 2 {
		t.Fatalf("create: %+v items=%+v", env, h.fb.items)
	}
	_, env = h.do(t, http.MethodPost, "/feedbacks/create", alice, `{}`, nil)
	if env.Code != CodeBadRequest {
		t.Fatalf("empty: %+v", env)
	}
	_, env = h.do(t, http.MethodGet, "/feedbacks/user/2", alice, "", nil)
	if list, _ := env.Data.([]any); env.Code != CodeSuccess || len(list) != 1 {
		t.Fatalf("list: %+v", env)
	}
}

func TestAdminStatus(t *testing.T) {
	h := newHarness(t)
	_, env := h.do(t, http.MethodGet, "/admin/status", "", "", nil)
	if d := dataMap(t, env); d["status"] != "running" || d["uptime"] == "" {
		t.Fatalf("status: %+v", d)
	}
}

func TestListETag_HashesKeyword(t *testing.T) {
	plain := listETag("v1", 0, 20, "")
	if plain != `W/"conversations:v1:0:20:-"` {
		t.Fatalf("no keyword: %q", plain)
	}
	quoted := listETag("v1", 0, 20, `re"funds`)
	if strings.Count(quoted, `"`) != 2 || strings.Contains(quoted, "funds") {
		t.Fatalf("keyword leaked into ETag: %q", quoted)
	}
	if quoted == listETag("v1", 0, 20, "refunds") {
		t.Fatalf("different keywords share an ETag")
	}
	if quoted != listETag("v1", 0, 20, `re"funds`) {
		t.Fatalf("ETag not deterministic")
	}
}
