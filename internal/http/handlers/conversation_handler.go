// Conversation HTTP handlers.
//
// This file exposes the conversation log endpoints:
//   - POST   /conversation/log            (append one exchange; Idempotency-Key honored)
//   - GET    /conversation/logs           (paginated list or keyword search, weak ETag)
//   - GET    /conversation/user/{userId}  (one user's history)
//   - DELETE /conversation/{id}
//   - GET    /conversation/stats
//   - GET    /conversations/count
//
// The /conversations group aliases the read endpoints.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
	"github.com/tbourn/chat-admin-backend/internal/services"
	"github.com/tbourn/chat-admin-backend/internal/utils"
)

// LogConversationRequest is one question/answer exchange to record.
type LogConversationRequest struct {
	// UserID defaults to the caller. Only admins may log for someone else.
	UserID    *uint      `json:"userId" example:"7"`
	Question  string     `json:"question" binding:"required" example:"What is the refund policy?"`
	Answer    string     `json:"answer" example:"Refunds are accepted within 30 days."`
	ShareID   string     `json:"shareId" example:"s-81f2"`
	AppID     string     `json:"appId" example:"app-01"`
	CreatedAt *time.Time `json:"createTime"`
}

// ConversationStats is the /stats payload.
type ConversationStats struct {
	Total int64 `json:"total" example:"1024"`
	Today int64 `json:"today" example:"17"`
}

// LogConversation godoc
// @ID          logConversation
// @Summary     Log a conversation
// @Description Records one exchange for the caller. A repeated Idempotency-Key returns the first stored row.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                            false  "Idempotency key"
// @Param       body             body      handlers.LogConversationRequest   true   "Exchange"
// @Success     200              {object}  handlers.Envelope{data=domain.Conversation}
// @Failure     200              {object}  handlers.Envelope  "code 400/403"
// @Failure     400              {object}  handlers.Envelope  "Invalid Idempotency-Key"
// @Failure     401              {object}  handlers.Envelope
// @Router      /conversation/log [post]
func (h *Handlers) LogConversation(c *gin.Context) {
	var req LogConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	uid := callerID(c)
	if req.UserID == nil || *req.UserID == 0 {
		req.UserID = &uid
	} else if *req.UserID != uid && !h.selfOrAdmin(c, *req.UserID) {
		return
	}

	in := services.ConversationInput{
		UserID:   req.UserID,
		Question: req.Question,
		Answer:   req.Answer,
		ShareID:  req.ShareID,
		AppID:    req.AppID,
	}
	if req.CreatedAt != nil {
		in.CreatedAt = *req.CreatedAt
	}
	if key, found := middleware.GetIdempotencyKey(c); found {
		in.IdempotencyKey = key
	}

	conv, err := h.convs.Save(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	okMsg(c, "conversation saved", conv)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns a zero-based page of conversations joined with their owner. With keyword, only rows whose title, content or username contain it. Supports a weak ETag via If-None-Match.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header    string  false  "Return 304 if ETag matches"
// @Param       page           query     int     false  "Zero-based page"  default(0)
// @Param       pageSize       query     int     false  "Items per page"   default(20)  maximum(1000)
// @Param       keyword        query     string  false  "Search term"
// @Success     200            {object}  handlers.Envelope{data=services.ConversationPage}
// @Header      200            {string}  ETag  "Weak ETag for current result"
// @Success     304            {string}  string  "Not Modified"
// @Router      /conversation/logs [get]
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	page, size := utils.Page(c.Query("page"), c.Query("pageSize"), services.DefaultPageSize, services.MaxPageSize)
	keyword := strings.TrimSpace(c.Query("keyword"))

	// Best effort: a failed version lookup only disables the ETag.
	if v, err := h.convs.Version(ctx); err == nil {
		etag := listETag(v, page, size, keyword)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	var (
		res *services.ConversationPage
		err error
	)
	if keyword != "" {
		res, err = h.convs.Search(ctx, keyword, page, size)
	} else {
		res, err = h.convs.FindAll(ctx, page, size)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, res)
}

// UserConversations godoc
// @ID          userConversations
// @Summary     List a user's conversations
// @Description Newest first. Users may read their own history; admins anyone's.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       userId  path      int  true  "User ID"
// @Success     200     {object}  handlers.Envelope{data=[]domain.Conversation}
// @Failure     200     {object}  handlers.Envelope  "code 400/403"
// @Router      /conversation/user/{userId} [get]
// @Router      /conversations/user/{userId} [get]
func (h *Handlers) UserConversations(c *gin.Context) {
	uid, okID := pathID(c, "userId")
	if !okID || !h.selfOrAdmin(c, uid) {
		return
	}
	list, err := h.convs.FindByUserID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, list)
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Conversation ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /conversation/{id} [delete]
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.convs.Delete(c.Request.Context(), id)
	h.boolResult(c, done, err, "conversation deleted", "conversation not found")
}

// ConversationStatsHandler godoc
// @ID          conversationStats
// @Summary     Conversation counters
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=handlers.ConversationStats}
// @Router      /conversation/stats [get]
func (h *Handlers) ConversationStatsHandler(c *gin.Context) {
	o, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, ConversationStats{Total: o.Conversations, Today: o.TodayConversations})
}

// CountConversations godoc
// @ID          countConversations
// @Summary     Count conversations
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=int}
// @Router      /conversations/count [get]
func (h *Handlers) CountConversations(c *gin.Context) {
	n, err := h.convs.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, n)
}

// listETag builds the weak ETag of one list page. The keyword is hashed so
// quotes or non-ASCII input cannot break the header.
func listETag(version string, page, size int, keyword string) string {
	kw := "-"
	if keyword != "" {
		sum := sha256.Sum256([]byte(keyword))
		kw = hex.EncodeToString(sum[:8])
	}
	return `W/"conversations:` + version + `:` + strconv.Itoa(page) + `:` + strconv.Itoa(size) + `:` + kw + `"`
}
