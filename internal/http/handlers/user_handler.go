package handlers

import (
	"github.com/gin-gonic/gin"
)

// CreateAdminRequest provisions an admin account.
type CreateAdminRequest struct {
	Username string `json:"username" binding:"required,max=64" example:"ops"`
	Email    string `json:"email" binding:"omitempty,email,max=255" example:"ops@x.com"`
	Password string `json:"password" binding:"required,min=6" example:"secret1"`
}

// SetPasswordRequest is the admin reset payload.
type SetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=6" example:"n3wpass"`
}

// ChangePasswordRequest is the self-service password change payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required" example:"secret1"`
	NewPassword string `json:"newPassword" binding:"required,min=6" example:"n3wpass"`
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.UserView}
// @Failure     401  {object}  handlers.Envelope
// @Failure     403  {object}  handlers.Envelope
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.FindAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, users)
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "User ID"
// @Success     200  {object}  handlers.Envelope{data=domain.UserView}
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	u, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if u == nil {
		domainFail(c, CodeNotFound, "user not found")
		return
	}
	ok(c, u.View())
}

// DeleteUser godoc
// @ID          deleteUser
// @Summary     Delete a user
// @Description The reserved "admin" account cannot be deleted (code 403).
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "User ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/403/404"
// @Router      /users/{id} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.users.DeleteUser(c.Request.Context(), id)
	h.boolResult(c, done, err, "user deleted", "user not found")
}

// PromoteUser godoc
// @ID          promoteUser
// @Summary     Grant the admin role
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "User ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/404"
// @Router      /users/{id}/promote [put]
func (h *Handlers) PromoteUser(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.users.PromoteToAdmin(c.Request.Context(), id)
	h.boolResult(c, done, err, "user promoted to admin", "user not found")
}

// DemoteUser godoc
// @ID          demoteUser
// @Summary     Revoke the admin role
// @Description The reserved "admin" account can never be demoted.
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "User ID"
// @Success     200  {object}  handlers.Envelope
// @Failure     200  {object}  handlers.Envelope  "code 400/403/404"
// @Router      /users/{id}/demote [put]
func (h *Handlers) DemoteUser(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	done, err := h.users.DemoteAdmin(c.Request.Context(), id)
	h.boolResult(c, done, err, "admin demoted", "user not found")
}

// CreateAdmin godoc
// @ID          createAdmin
// @Summary     Create an admin account
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateAdminRequest  true  "New admin"
// @Success     200   {object}  handlers.Envelope{data=domain.User}
// @Failure     200   {object}  handlers.Envelope  "code 400/409"
// @Router      /users/create-admin [post]
func (h *Handlers) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	u, err := h.users.CreateAdmin(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	okMsg(c, "admin created", u)
}

// ResetUserPassword godoc
// @ID          resetUserPassword
// @Summary     Set a user's password
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                          true  "User ID"
// @Param       body  body      handlers.SetPasswordRequest  true  "New password"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400/404"
// @Router      /users/{id}/reset-password [put]
func (h *Handlers) ResetUserPassword(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	done, err := h.users.ResetPassword(c.Request.Context(), id, req.NewPassword)
	h.boolResult(c, done, err, "password reset", "user not found")
}

// ChangePassword godoc
// @ID          changePassword
// @Summary     Change a password
// @Description Users may change their own password; admins may change anyone's.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                             true  "User ID"
// @Param       body  body      handlers.ChangePasswordRequest  true  "Old and new password"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400/401/403"
// @Router      /users/{id}/change-password [put]
func (h *Handlers) ChangePassword(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID || !h.selfOrAdmin(c, id) {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	done, err := h.users.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	if !done {
		domainFail(c, CodeUnauthorized, "old password is incorrect")
		return
	}
	okMsg(c, "password changed", nil)
}

// boolResult maps a (bool, error) service outcome onto the envelope.
func (h *Handlers) boolResult(c *gin.Context, done bool, err error, okText, missText string) {
	switch {
	case err != nil:
		respondError(c, err)
	case !done:
		domainFail(c, CodeNotFound, missText)
	default:
		okMsg(c, okText, nil)
	}
}
