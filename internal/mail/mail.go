// Package mail delivers transactional email.
package mail

import (
	"context"
	"log/slog"
)

// Address is an email recipient or sender.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is a single email with text and HTML bodies.
type Message struct {
	To       Address
	Subject  string
	Text     string
	HTML     string
	Category string
}

// Sender delivers a message. Implementations must respect ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not delivered (log backend)",
		"to", msg.To.Email, "subject", msg.Subject, "category", msg.Category, "body", msg.Text)
	return nil
}
