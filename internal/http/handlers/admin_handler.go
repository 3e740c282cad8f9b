// Admin HTTP handlers: liveness probes and the read-only dashboard views.
//
//   - GET /admin/status               (public)
//   - GET /admin/test                 (public)
//   - GET /admin/view/users           (admin; password-free projection)
//   - GET /admin/view/conversations   (admin; user-joined projection)
//   - GET /admin/view/stats           (admin; dashboard counters)
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/services"
	"github.com/tbourn/chat-admin-backend/internal/utils"
)

// StatusResponse is the /admin/status payload.
type StatusResponse struct {
	Status    string    `json:"status" example:"running"`
	StartedAt time.Time `json:"startedAt"`
	Uptime    string    `json:"uptime" example:"3h12m5s"`
	Time      time.Time `json:"time"`
}

// AdminStatus godoc
// @ID          adminStatus
// @Summary     Service status
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.Envelope{data=handlers.StatusResponse}
// @Router      /admin/status [get]
func (h *Handlers) AdminStatus(c *gin.Context) {
	now := time.Now().UTC()
	ok(c, StatusResponse{
		Status:    "running",
		StartedAt: h.started,
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
		Time:      now,
	})
}

// AdminTest godoc
// @ID          adminTest
// @Summary     Connectivity probe
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.Envelope
// @Router      /admin/test [get]
func (h *Handlers) AdminTest(c *gin.Context) {
	okMsg(c, "admin api is reachable", nil)
}

// ViewUsers godoc
// @ID          viewUsers
// @Summary     Users view
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.UserView}
// @Router      /admin/view/users [get]
func (h *Handlers) ViewUsers(c *gin.Context) {
	h.ListUsers(c)
}

// ViewConversations godoc
// @ID          viewConversations
// @Summary     Conversations view
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       page      query     int  false  "Zero-based page"  default(0)
// @Param       pageSize  query     int  false  "Items per page"   default(20)
// @Success     200       {object}  handlers.Envelope{data=services.ConversationPage}
// @Router      /admin/view/conversations [get]
func (h *Handlers) ViewConversations(c *gin.Context) {
	page, size := utils.Page(c.Query("page"), c.Query("pageSize"), services.DefaultPageSize, services.MaxPageSize)
	res, err := h.convs.FindAll(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, res)
}

// ViewStats godoc
// @ID          viewStats
// @Summary     Dashboard counters
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=repo.Overview}
// @Router      /admin/view/stats [get]
func (h *Handlers) ViewStats(c *gin.Context) {
	o, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, o)
}
