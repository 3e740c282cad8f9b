// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file covers request correlation and panic handling. RequestID runs
// first so every log line and error envelope carries X-Request-ID;
// Recovery runs after RedactingLogger so a panic is logged with the
// request-scoped logger before the 500 envelope is written.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	maxRequestIDLength = 128
	maxQueryLogLength  = 2048
)

// RequestID propagates the caller's X-Request-ID or mints a UUID when the
// header is absent or unusable. The id is echoed on the response and stored
// in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// validRequestID accepts short printable ASCII ids so client-supplied values
// cannot smuggle control characters into logs.
func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Recovery converts a panic into the 500 envelope. If the handler already
// started writing, only the status is set.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			abortJSON(c, http.StatusInternalServerError, "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger RedactingLogger attached to the request, or
// the global logger when none is present.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString renders a context value for logging. User ids are stored as uint.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case uint:
		if x == 0 {
			return ""
		}
		return strconv.FormatUint(uint64(x), 10)
	default:
		return ""
	}
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
