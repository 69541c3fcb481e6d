// internal/app/system/mailer/mailer.go

// Package mailer builds account email and hands it to waffle's email
// package for delivery.
package mailer

import (
	"regexp"
	"strings"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// Email is a single outbound message to one recipient. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

func (e Email) message() email.Message {
	return email.Message{
		To:       []string{e.To},
		Subject:  e.Subject,
		TextBody: e.TextBody,
		HTMLBody: e.HTMLBody,
	}
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// NewSender returns an SMTP sender for cfg. Authentication is used only when
// a username is configured.
func NewSender(cfg Config) *email.Sender {
	return email.NewSender(email.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FromAddress: cfg.From,
		FromName:    cfg.FromName,
	})
}

// Dispatcher hands email off for delivery without waiting for it.
type Dispatcher interface {
	Dispatch(Email)
}

// LogOnly is a Dispatcher that logs instead of delivering; used when SMTP is
// not configured. Bodies are never logged.
type LogOnly struct {
	Log *zap.Logger
}

// Dispatch implements Dispatcher.
func (l LogOnly) Dispatch(e Email) {
	l.Log.Info("email not sent (SMTP disabled)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
}

var secretParam = regexp.MustCompile(`(?i)\b(token|code)=[^&\s"'<>]+`)

// Redact masks token and code query values in s so links can be logged.
func Redact(s string) string {
	if !strings.Contains(s, "=") {
		return s
	}
	return secretParam.ReplaceAllString(s, "${1}=[redacted]")
}
