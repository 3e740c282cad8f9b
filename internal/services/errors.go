// Package services defines the business logic for users, conversations,
// announcements, feedback, tokens and verification codes. This file
// centralizes the service-level error values so that they can be returned
// consistently by service methods and checked by callers with errors.Is.
//
// Translation into envelope codes and HTTP statuses happens in the handler
// layer (see handlers.respondError).
package services

import "errors"

var (
	// ErrValidation marks a missing or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")

	// ErrUnauthorized is returned for bad credentials and invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned by the operations that must fail loudly when
	// their subject is absent (login, reset by email, verification codes).
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the reserved admin account is demoted.
	ErrForbidden = errors.New("forbidden")

	// ErrTransport is returned when outbound email delivery fails.
	ErrTransport = errors.New("delivery failed")

	// ErrRateLimited is returned when a verification code was requested too
	// soon after the previous one.
	ErrRateLimited = errors.New("too many requests")

	// ErrInvalidCode is returned for a wrong or unknown verification code.
	ErrInvalidCode = errors.New("incorrect verification code")

	// ErrCodeExpired is returned when the verification code is past its TTL.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrUnavailable is returned when an optional backend (Redis, SMTP) is
	// not configured.
	ErrUnavailable = errors.New("service unavailable")
)
