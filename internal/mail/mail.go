// Package mail sends transactional email for notifications.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/hackgods/gov-appointments/internal/observability"
)

var ErrNoRecipient = errors.New("mail: recipient address required")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}
	return nil
}

// LogSender only logs. It is used when no API key is configured.
type LogSender struct {
	Logger *observability.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.Logger.WithContext(ctx).Info("email delivery disabled, message logged", "to", msg.To, "subject", msg.Subject)
	return nil
}

// New picks the Resend sender when apiKey is set.
func New(apiKey, from string, logger *observability.Logger) Sender {
	if apiKey == "" {
		return LogSender{Logger: logger}
	}
	return NewResendSender(apiKey, from)
}
