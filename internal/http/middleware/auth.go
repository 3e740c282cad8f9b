// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and role gates:
//
//   - Authenticate() resolves the caller from "Authorization: Bearer <jwt>"
//     when present and stores the user id, username and token role in the Gin
//     context. Requests without a token pass through anonymously.
//   - RequireAuth() rejects anonymous or badly authenticated requests with 401.
//   - RequireAdmin() re-reads the caller's role from the store so a demotion
//     takes effect before the token expires; non-admins get 403.
//
// Identity is read downstream with UserID(c) and Role(c).
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/services"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUsername = "username"
	ctxKeyRole     = "role"
	ctxKeyAuthErr  = "auth.err"
)

// TokenParser verifies an access token.
type TokenParser interface {
	Parse(token string) (*services.Claims, error)
}

// RoleLookup returns the current role of a user.
type RoleLookup func(ctx context.Context, userID uint) (string, error)

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate populates the caller identity from a bearer token. Invalid
// tokens are remembered so RequireAuth can report them; they never abort here.
func Authenticate(tp TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			c.Next()
			return
		}
		claims, err := tp.Parse(tok)
		if err != nil {
			c.Set(ctxKeyAuthErr, err.Error())
			c.Next()
			return
		}
		id, _ := claims.UserID()
		c.Set(ctxKeyUserID, id)
		c.Set(ctxKeyUsername, claims.Username)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// RequireAuth aborts with 401 unless Authenticate resolved a caller.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); ok {
			c.Next()
			return
		}
		msg := "authorization required"
		if v, ok := c.Get(ctxKeyAuthErr); ok {
			msg = asString(v)
		}
		abortJSON(c, http.StatusUnauthorized, msg)
	}
}

// RequireAdmin aborts with 403 unless the caller currently holds the admin
// role. It must run after RequireAuth.
func RequireAdmin(lookup RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "authorization required")
			return
		}
		role, err := lookup(c.Request.Context(), uid)
		if errors.Is(err, services.ErrNotFound) {
			abortJSON(c, http.StatusUnauthorized, "user no longer exists")
			return
		}
		if err != nil {
			LoggerFrom(c).Error().Err(err).Uint("user_id", uid).Msg("role lookup failed")
			abortJSON(c, http.StatusInternalServerError, "internal server error")
			return
		}
		if role != domain.RoleAdmin {
			abortJSON(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, _ := v.(uint)
	return id, id != 0
}

// Role returns the caller's role, or "" when anonymous.
func Role(c *gin.Context) string {
	v, _ := c.Get(ctxKeyRole)
	return asString(v)
}

// IsAdmin reports whether the caller's role is admin.
func IsAdmin(c *gin.Context) bool { return Role(c) == domain.RoleAdmin }

// abortJSON writes the error envelope used by every middleware rejection.
func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       status,
		"message":    msg,
	})
}
