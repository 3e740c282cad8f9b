// Package handlers provides the HTTP handlers of the admin API.
//
// This file defines the response envelope shared by every endpoint and the
// helpers that write it:
//
//	{ "code": 200, "message": "success", "data": {...}, "request_id": "..." }
//
// The envelope code carries the outcome. Domain failures (bad credentials,
// duplicate username, unknown id) are written with HTTP 200 and a non-200
// code so clients branch on the body alone. Transport rejections (bad JSON,
// missing token, rate limit, unknown route) use the matching HTTP status.
//
// respondError is the single place where service errors become envelope
// codes; 5xx outcomes are logged with the request-scoped logger.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
	"github.com/tbourn/chat-admin-backend/internal/services"
)

// Envelope is the body of every API response.
type Envelope struct {
	// Outcome code; 200 is success, otherwise an HTTP-like error code.
	Code int `json:"code" example:"200"`
	// Human-readable message (safe to show to users).
	Message string `json:"message" example:"success"`
	// Payload of successful calls.
	Data any `json:"data,omitempty"`
	// Correlates server logs and client errors.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// ok writes a success envelope with data.
func ok(c *gin.Context, data any) {
	okMsg(c, MsgSuccess, data)
}

func okMsg(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Envelope{
		Code:      CodeSuccess,
		Message:   msg,
		Data:      data,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	})
}

// fail aborts with an error envelope. status is the HTTP status and code the
// envelope code; 5xx codes are logged.
func fail(c *gin.Context, status, code int, msg string) {
	if code >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Int("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, Envelope{
		Code:      code,
		Message:   msg,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	})
}

// Fail is the exported transport-level variant used by the router: the
// HTTP status and the envelope code are the same.
func Fail(c *gin.Context, status int, msg string) { fail(c, status, status, msg) }

// reject writes a transport-level rejection (HTTP status == envelope code).
func reject(c *gin.Context, status int, msg string) { fail(c, status, status, msg) }

// domainFail writes a domain failure: HTTP 200, error code in the body.
func domainFail(c *gin.Context, code int, msg string) { fail(c, http.StatusOK, code, msg) }

// respondError maps a service error to a domain failure envelope.
func respondError(c *gin.Context, err error) {
	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Err(err).Int("code", code).Msg("service error")
	}
	domainFail(c, code, msg)
}

// classify returns the envelope code and client message for err. Messages of
// typed errors are passed through; anything else is reported generically.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidCode),
		errors.Is(err, services.ErrCodeExpired):
		return CodeBadRequest, err.Error()
	case errors.Is(err, services.ErrUnauthorized):
		return CodeUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return CodeForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return CodeNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		return CodeConflict, err.Error()
	case errors.Is(err, services.ErrRateLimited):
		return CodeTooManyRequests, err.Error()
	case errors.Is(err, services.ErrTransport):
		return CodeBadGateway, MsgDeliveryFailed
	case errors.Is(err, services.ErrUnavailable):
		return CodeUnavailable, MsgUnavailable
	default:
		return CodeInternal, MsgInternal
	}
}
