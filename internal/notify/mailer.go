// Package notify delivers outbound email. The SMTP transport is built on
// github.com/wneessen/go-mail; when SMTP is not configured a disabled mailer
// is used that fails every send with ErrNotConfigured so callers never treat
// an undelivered message as sent.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/tbourn/chat-admin-backend/internal/config"
)

// ErrNotConfigured is returned by the disabled mailer.
var ErrNotConfigured = errors.New("notify: smtp is not configured")

// Message is one email. At least one of Text or HTML must be set.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a Message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// NewMailer returns an SMTP mailer for cfg, or a disabled mailer when
// cfg.Host is empty.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return disabled{}
	}
	return NewSMTPMailer(cfg)
}

type disabled struct{}

func (disabled) Send(context.Context, Message) error { return ErrNotConfigured }

//go:embed templates/verification.html templates/verification.txt
var templateFS embed.FS

var (
	verificationHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/verification.html"))
	verificationText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/verification.txt"))
)

// VerificationEmail renders the password-reset code email.
func VerificationEmail(to, product, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Product string
		Code    string
		Minutes int
	}{product, code, int(ttl.Round(time.Minute) / time.Minute)}
	if data.Minutes < 1 {
		data.Minutes = 1
	}

	var h, t bytes.Buffer
	if err := verificationHTML.Execute(&h, data); err != nil {
		return Message{}, err
	}
	if err := verificationText.Execute(&t, data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: product + " verification code",
		Text:    t.String(),
		HTML:    h.String(),
	}, nil
}
