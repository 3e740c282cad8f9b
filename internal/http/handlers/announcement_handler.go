// Announcement HTTP handlers.
//
// Admins publish, edit and retire announcements; any authenticated user can
// list the active ones and mark them read:
//   - POST   /announcements/create
//   - PUT    /announcements/{id}
//   - DELETE /announcements/{id}        (deactivates)
//   - GET    /announcements/active
//   - GET    /announcements/unread/{userId}
//   - POST   /announcements/{id}/read
//   - POST   /announcements/read-batch
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// AnnouncementRequest is the create/update payload.
type AnnouncementRequest struct {
	Title    string `json:"title" binding:"required,max=255" example:"Maintenance tonight"`
	Content  string `json:"content" binding:"required" example:"The service is down 22:00-23:00 UTC."`
	Priority int    `json:"priority" binding:"oneof=0 1 2" example:"1"`
	// IsActive applies to updates only; omitted leaves the flag unchanged.
	IsActive   *bool      `json:"isActive" example:"true"`
	ExpireTime *time.Time `json:"expireTime"`
}

func (r AnnouncementRequest) model() *domain.Announcement {
	return &domain.Announcement{
		Title:      r.Title,
		Content:    r.Content,
		Priority:   r.Priority,
		ExpireTime: r.ExpireTime,
	}
}

// ReadBatchRequest lists announcements to mark read.
type ReadBatchRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1" example:"1,2,3"`
}

// CreateAnnouncement godoc
// @ID          createAnnouncement
// @Summary     Publish an announcement
// @Tags        Announcements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.AnnouncementRequest  true  "Announcement"
// @Success     200   {object}  handlers.Envelope{data=domain.Announcement}
// @Failure     200   {object}  handlers.Envelope  "code 400"
// @Router      /announcements/create [post]
func (h *Handlers) CreateAnnouncement(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	a := req.model()
	a.AdminUserID = callerID(c)
	if _, err := h.anns.Create(c.Request.Context(), a); err != nil {
		respondError(c, err)
		return
	}
	okMsg(c, "announcement published", a)
}

// UpdateAnnouncement godoc
// @ID          updateAnnouncement
// @Summary     Edit an announcement
// @Tags        Announcements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                           true  "Announcement ID"
// @Param       body  body      handlers.AnnouncementRequest  true  "Announcement"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400/404"
// @Router      /announcements/{id} [put]
func (h *Handlers) UpdateAnnouncement(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	a := req.model()
	a.ID = id
	done, err := h.anns.Update(c.Request.Context(), a, req.IsActive)
	h.boolResult(c, done, err, "announcement updated", "announcement not found")
}

// DeleteAnnouncement godoc
// @ID          deleteAnnouncement
// @Summary     Retire an announcement
// @Description Deactivates the announcement; read history is kept.
// @Tags        Announcements
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Announcement ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /announcements/{id} [delete]
func (h *Handlers) DeleteAnnouncement(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.anns.Delete(c.Request.Context(), id)
	h.boolResult(c, done, err, "announcement deleted", "announcement not found")
}

// ActiveAnnouncements godoc
// @ID          activeAnnouncements
// @Summary     List active announcements
// @Description Unexpired active announcements, most urgent first.
// @Tags        Announcements
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.Announcement}
// @Router      /announcements/active [get]
func (h *Handlers) ActiveAnnouncements(c *gin.Context) {
	list, err := h.anns.GetAllActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, list)
}

// UnreadAnnouncements godoc
// @ID          unreadAnnouncements
// @Summary     List unread announcements
// @Tags        Announcements
// @Produce     json
// @Security    BearerAuth
// @Param       userId  path      int  true  "User ID"
// @Success     200     {object}  handlers.Envelope{data=[]domain.Announcement}
// @Failure     200     {object}  handlers.Envelope  "code 400/403"
// @Router      /announcements/unread/{userId} [get]
func (h *Handlers) UnreadAnnouncements(c *gin.Context) {
	uid, okID := pathID(c, "userId")
	if !okID || !h.selfOrAdmin(c, uid) {
		return
	}
	list, err := h.anns.GetUnreadByUser(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, list)
}

// MarkAnnouncementRead godoc
// @ID          markAnnouncementRead
// @Summary     Mark an announcement read
// @Description Idempotent; marking twice succeeds.
// @Tags        Announcements
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Announcement ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /announcements/{id}/read [post]
func (h *Handlers) MarkAnnouncementRead(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.anns.MarkRead(c.Request.Context(), id, callerID(c))
	h.boolResult(c, done, err, "marked as read", "announcement not found")
}

// MarkAnnouncementsRead godoc
// @ID          markAnnouncementsRead
// @Summary     Mark several announcements read
// @Description Unknown ids are skipped.
// @Tags        Announcements
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ReadBatchRequest  true  "Announcement IDs"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400"
// @Router      /announcements/read-batch [post]
func (h *Handlers) MarkAnnouncementsRead(c *gin.Context) {
	var req ReadBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	done, err := h.anns.MarkMultipleRead(c.Request.Context(), req.IDs, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !done {
		domainFail(c, CodeInternal, MsgInternal)
		return
	}
	okMsg(c, "marked as read", nil)
}
