package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// sendTimeout bounds a single Mailgun round trip so a slow API cannot
// stall the worker's consume loop.
const sendTimeout = 15 * time.Second

// Mailgun delivers the plain-text mail this service sends. The welcome
// flow has no HTML variant, so neither does this wrapper.
type Mailgun struct {
	client *mg.MailgunImpl
	sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender}
}

// Send delivers one plain-text message.
func (m *Mailgun) Send(ctx context.Context, to, subject, body string) error {
	msg := m.client.NewMessage(m.sender, subject, body, to)
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, _, err := m.client.Send(ctx, msg)
	return err
}
