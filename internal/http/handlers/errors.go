// Package handlers defines the envelope codes and stock messages returned by
// the admin API. Codes deliberately mirror HTTP status numbers so clients can
// reuse their status handling for the body code.
package handlers

const (
	CodeSuccess         = 200
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeInternal        = 500
	CodeBadGateway      = 502
	CodeUnavailable     = 503
)

const (
	MsgSuccess        = "success"
	MsgInvalidBody    = "invalid request body"
	MsgInvalidID      = "invalid id"
	MsgInternal       = "internal server error"
	MsgDeliveryFailed = "failed to send email, please try again later"
	MsgUnavailable    = "service temporarily unavailable"
	MsgForbidden      = "not allowed to access this resource"
)
