// Auth HTTP handlers.
//
// This file exposes the public authentication endpoints:
//   - POST /auth/login                   (credentials → signed token)
//   - POST /auth/register                (self-service account creation)
//   - GET|POST /auth/verify-token        (introspect a token)
//   - POST /auth/send-verification-code  (email a password-reset code)
//   - POST /auth/reset-password          (code + new password)
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"secret1"`
}

// LoginResponse carries the access token and the logged-in user.
type LoginResponse struct {
	Token     string      `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	TokenType string      `json:"tokenType" example:"Bearer"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// RegisterRequest is the registration payload. Email is optional.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=64" example:"alice"`
	Email    string `json:"email" binding:"omitempty,email,max=255" example:"a@x.com"`
	Password string `json:"password" binding:"required,min=6" example:"secret1"`
}

// VerifyTokenRequest carries a token in the body; the Authorization header
// and the "token" query parameter are accepted too.
type VerifyTokenRequest struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
}

// TokenInfo describes a valid token.
type TokenInfo struct {
	Valid     bool      `json:"valid" example:"true"`
	UserID    uint      `json:"userId" example:"1"`
	Username  string    `json:"username" example:"alice"`
	Role      string    `json:"role" example:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendCodeRequest asks for a reset code.
type SendCodeRequest struct {
	Email string `json:"email" binding:"required,email" example:"a@x.com"`
}

// ResetPasswordRequest completes a reset with the emailed code.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email" example:"a@x.com"`
	Code        string `json:"code" binding:"required,len=6,numeric" example:"042917"`
	NewPassword string `json:"newPassword" binding:"required,min=6" example:"n3wpass"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a signed bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.Envelope{data=handlers.LoginResponse}
// @Failure     200   {object}  handlers.Envelope  "code 400/401/404"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	u, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.RecordAuth("login", "failure")
		respondError(c, err)
		return
	}
	tok, exp, err := h.tokens.Issue(u)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.RecordAuth("login", "success")
	okMsg(c, "login successful", LoginResponse{Token: tok, TokenType: "Bearer", ExpiresAt: exp, User: *u})
}

// Register godoc
// @ID          register
// @Summary     Register
// @Description Creates a regular user account.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "New account"
// @Success     200   {object}  handlers.Envelope{data=domain.User}
// @Failure     200   {object}  handlers.Envelope  "code 400/409"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		middleware.RecordAuth("register", "failure")
		respondError(c, err)
		return
	}
	middleware.RecordAuth("register", "success")
	okMsg(c, "registration successful", u)
}

// VerifyToken godoc
// @ID          verifyToken
// @Summary     Verify a token
// @Description Validates a bearer token from the body, the Authorization header or the "token" query parameter.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       token  query     string                         false  "Token"
// @Param       body   body      handlers.VerifyTokenRequest    false  "Token"
// @Success     200    {object}  handlers.Envelope{data=handlers.TokenInfo}
// @Failure     200    {object}  handlers.Envelope  "code 401"
// @Router      /auth/verify-token [get]
// @Router      /auth/verify-token [post]
func (h *Handlers) VerifyToken(c *gin.Context) {
	tok := middleware.BearerToken(c)
	if tok == "" {
		tok = c.Query("token")
	}
	if tok == "" && c.Request.ContentLength != 0 {
		var req VerifyTokenRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			tok = req.Token
		}
	}
	claims, err := h.tokens.Parse(tok)
	if err != nil {
		respondError(c, err)
		return
	}
	id, _ := claims.UserID()
	info := TokenInfo{Valid: true, UserID: id, Username: claims.Username, Role: claims.Role}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	ok(c, info)
}

// SendVerificationCode godoc
// @ID          sendVerificationCode
// @Summary     Send a password-reset code
// @Description Emails a six-digit code to a registered address. Requests are throttled per email.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.SendCodeRequest  true  "Email"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400/404/429/502/503"
// @Router      /auth/send-verification-code [post]
func (h *Handlers) SendVerificationCode(c *gin.Context) {
	var req SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	if err := h.verify.SendCode(c.Request.Context(), req.Email); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).
			Str("email", middleware.Redact(req.Email)).
			Msg("verification code not sent")
		respondError(c, err)
		return
	}
	okMsg(c, "verification code sent", nil)
}

// ResetPassword godoc
// @ID          resetPassword
// @Summary     Reset a forgotten password
// @Description Checks the emailed code and sets a new password.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ResetPasswordRequest  true  "Reset payload"
// @Success     200   {object}  handlers.Envelope
// @Failure     200   {object}  handlers.Envelope  "code 400/404"
// @Router      /auth/reset-password [post]
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		domainFail(c, CodeBadRequest, formatValidationError(err))
		return
	}
	ctx := c.Request.Context()
	if err := h.verify.VerifyCode(ctx, req.Email, req.Code); err != nil {
		middleware.RecordAuth("reset_password", "failure")
		respondError(c, err)
		return
	}
	if err := h.users.ResetPasswordByEmail(ctx, req.Email, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	middleware.RecordAuth("reset_password", "success")
	okMsg(c, "password has been reset", nil)
}
