package service

import (
	"context"
	"log/slog"
)

// Mailer delivers account email.
type Mailer interface {
	SendVerification(ctx context.Context, to, link string) error
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that logs each message at info level.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogMailer{logger: logger}
}

// SendVerification logs the verification link for to.
func (m *LogMailer) SendVerification(ctx context.Context, to, link string) error {
	m.logger.InfoContext(ctx, "verification email", "to", to, "link", link)
	return nil
}
