// Package services – VerificationService
//
// This file implements the one-time code flow behind password recovery. A
// six-digit code is generated server side, stored bcrypt-hashed in Redis
// under the account email and delivered by email. Requests are throttled per
// email and each code tolerates a bounded number of wrong guesses.
package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/notify"
)

const (
	// CodeLength is the number of digits in a verification code.
	CodeLength = 6

	verifyKeyPrefix     = "chatadmin:verify"
	defaultRedisTimeout = 2 * time.Second
)

// EmailLookup resolves an account by email; nil means no such account.
type EmailLookup interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// VerificationService issues and checks password-reset codes.
type VerificationService struct {
	Redis       redis.Cmdable
	Users       EmailLookup
	Mailer      notify.Mailer
	Product     string
	CodeTTL     time.Duration
	ResendAfter time.Duration
	MaxAttempts int
	// RedisTimeout bounds each group of Redis calls.
	RedisTimeout time.Duration

	// Now is the clock; tests may override it.
	Now func() time.Time
}

type storedCode struct {
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

// NewVerificationService constructs a VerificationService. rdb may be nil, in
// which case every call fails with ErrUnavailable.
func NewVerificationService(rdb redis.Cmdable, users EmailLookup, m notify.Mailer, codeTTL, resendAfter time.Duration, maxAttempts int) *VerificationService {
	return &VerificationService{
		Redis:        rdb,
		Users:        users,
		Mailer:       m,
		Product:      "Chat Admin",
		CodeTTL:      codeTTL,
		ResendAfter:  resendAfter,
		MaxAttempts:  maxAttempts,
		RedisTimeout: defaultRedisTimeout,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// SendCode generates a fresh code for the account registered with email and
// mails it. Unknown emails fail with ErrNotFound; a request inside the
// resend window fails with ErrRateLimited. When delivery fails the stored
// code is discarded and ErrTransport is returned.
func (s *VerificationService) SendCode(ctx context.Context, email string) error {
	if s.Redis == nil {
		return fmt.Errorf("%w: verification store is not configured", ErrUnavailable)
	}
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	u, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: email is not registered", ErrNotFound)
	}

	rctx, cancel := context.WithTimeout(ctx, s.RedisTimeout)
	defer cancel()

	resendKey := s.resendKey(email)
	if s.ResendAfter > 0 {
		allowed, err := s.Redis.SetNX(rctx, resendKey, "1", s.ResendAfter).Result()
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: wait before requesting another code", ErrRateLimited)
		}
	}
	// discard gets its own deadline: the send may outlive rctx.
	discard := func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.RedisTimeout)
		defer cancel()
		_ = s.Redis.Del(dctx, resendKey, s.codeKey(email)).Err()
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		discard()
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		discard()
		return fmt.Errorf("hash code: %w", err)
	}
	raw, err := json.Marshal(storedCode{
		CodeHash:  string(hash),
		ExpiresAt: s.Now().Add(s.CodeTTL),
	})
	if err != nil {
		discard()
		return err
	}
	// The key outlives the code so an expired code is reported as expired
	// rather than unknown.
	if err := s.Redis.Set(rctx, s.codeKey(email), raw, s.CodeTTL+time.Minute).Err(); err != nil {
		discard()
		return err
	}

	msg, err := notify.VerificationEmail(email, s.Product, code, s.CodeTTL)
	if err != nil {
		discard()
		return err
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		discard()
		if errors.Is(err, notify.ErrNotConfigured) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// VerifyCode checks code against the one issued for email and consumes it
// on success. Wrong or unknown codes fail with ErrInvalidCode, stale ones
// with ErrCodeExpired. After MaxAttempts wrong guesses the code is dropped.
func (s *VerificationService) VerifyCode(ctx context.Context, email, code string) error {
	if s.Redis == nil {
		return fmt.Errorf("%w: verification store is not configured", ErrUnavailable)
	}
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return fmt.Errorf("%w: email and code are required", ErrValidation)
	}

	rctx, cancel := context.WithTimeout(ctx, s.RedisTimeout)
	defer cancel()

	key := s.codeKey(email)
	raw, err := s.Redis.Get(rctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	var sc storedCode
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("decode stored code: %w", err)
	}
	if s.Now().After(sc.ExpiresAt) {
		_ = s.Redis.Del(rctx, key).Err()
		return ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(sc.CodeHash), []byte(code)) != nil {
		sc.Attempts++
		if sc.Attempts >= s.MaxAttempts {
			_ = s.Redis.Del(rctx, key).Err()
			return ErrInvalidCode
		}
		if raw, err := json.Marshal(sc); err == nil {
			if ttl, err := s.Redis.TTL(rctx, key).Result(); err == nil && ttl > 0 {
				_ = s.Redis.Set(rctx, key, raw, ttl).Err()
			}
		}
		return ErrInvalidCode
	}
	return s.Redis.Del(rctx, key).Err()
}

func (s *VerificationService) codeKey(email string) string {
	return fmt.Sprintf("%s:code:%s", verifyKeyPrefix, strings.ToLower(email))
}

func (s *VerificationService) resendKey(email string) string {
	return fmt.Sprintf("%s:resend:%s", verifyKeyPrefix, strings.ToLower(email))
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func generateCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
