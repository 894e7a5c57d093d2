// Package messaging publishes session events on RabbitMQ.
package messaging

import (
	"context"
	"time"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

const EventEmailVerified = "session.email_verified"

// Publisher sends a JSON body to a queue; *helpers.RabbitPublisher satisfies it.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Event is the message body put on the events queue.
type Event struct {
	Type      string    `json:"type"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// VerifiedForwarder announces confirmed emails to other services.
type VerifiedForwarder struct {
	pub     Publisher
	timeout time.Duration
}

func NewVerifiedForwarder(pub Publisher) *VerifiedForwarder {
	return &VerifiedForwarder{pub: pub, timeout: 5 * time.Second}
}

func (f *VerifiedForwarder) ForwardVerified(ctx context.Context, ev entity.VerificationCheckEvent) error {
	if f == nil || f.pub == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.pub.PublishJSON(c, Event{
		Type:      EventEmailVerified,
		UID:       ev.UID,
		Email:     ev.Email,
		Verified:  ev.Verified,
		Message:   ev.Message,
		Timestamp: ev.Timestamp.UTC(),
	})
}

var _ application.Forwarder = (*VerifiedForwarder)(nil)
