// Feedback HTTP handlers.
//
//   - GET    /feedbacks/all           (admin)
//   - GET    /feedbacks/user/{userId} (self or admin)
//   - POST   /feedbacks/create        (caller is the author)
//   - DELETE /feedbacks/delete/{id}   (admin)
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
)

// FeedbackRequest is the JSON payload for submitting feedback.
type FeedbackRequest struct {
	Context string `json:"context" binding:"required,max=5000" example:"The answer about refunds was outdated."`
}

// ListFeedback godoc
// @ID          listFeedback
// @Summary     List all feedback
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.Feedback}
// @Router      /feedbacks/all [get]
func (h *Handlers) ListFeedback(c *gin.Context) {
	list, err := h.feedback.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, list)
}

// UserFeedback godoc
// @ID          userFeedback
// @Summary     List a user's feedback
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
// @Param       userId  path      int  true  "User ID"
// @Success     200     {object}  handlers.Envelope{data=[]domain.Feedback}
// @Failure     200     {object}  handlers.Envelope  "code 400/403"
// @Router      /feedbacks/user/{userId} [get]
func (h *Handlers) UserFeedback(c *gin.Context) {
	uid, okID := pathID(c, "userId")
	if !okID || !h.selfOrAdmin(c, uid) {
		return
	}
	list, err := h.feedback.FindByUserID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, list)
}

// CreateFeedback godoc
// @ID          createFeedback
// @Summary     Submit feedback
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.FeedbackRequest  true  "Feedback"
// @Success     200   {object}  handlers.Envelope{data=domain.Feedback}
// @Failure     200   {object}  handlers.Envelope  "code 400"
// @Router      /feedbacks/create [post]
func (h *Handlers) CreateFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	f, err := h.feedback.Create(c.Request.Context(), &domain.Feedback{UserID: callerID(c), Context: req.Context})
	if err != nil {
		respondError(c, err)
		return
	}
	okMsg(c, "feedback submitted", f)
}

// DeleteFeedback godoc
// @ID          deleteFeedback
// @Summary     Delete feedback
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Feedback ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /feedbacks/delete/{id} [delete]
func (h *Handlers) DeleteFeedback(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.feedback.Delete(c.Request.Context(), id)
	h.boolResult(c, done, err, "feedback deleted", "feedback not found")
}
