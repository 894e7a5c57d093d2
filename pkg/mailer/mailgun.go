package mailer

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun sends through one Mailgun domain.
type Mailgun struct {
	client  *mg.MailgunImpl
	sender  string
	timeout time.Duration
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender, timeout: 10 * time.Second}
}

// Send sends an email via Mailgun. html is optional; if provided it will be used as HTML body.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	c, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, _, err := m.client.Send(c, msg)
	return err
}

// Deliver renders job and hands it to s. retry reports whether the failure
// could go away on redelivery: render failures never do.
func Deliver(ctx context.Context, s Sender, job *EmailJob) (retry bool, err error) {
	subject, text, html, err := job.Render()
	if err != nil {
		return false, err
	}
	if err := s.Send(ctx, job.To, subject, text, html); err != nil {
		return true, fmt.Errorf("send to %s: %w", job.To, err)
	}
	return false, nil
}
