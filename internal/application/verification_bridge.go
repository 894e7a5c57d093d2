package application

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// Forwarder relays a verification event beyond this process, e.g. onto a
// message bus for other services.
type Forwarder interface {
	ForwardVerified(ctx context.Context, ev entity.VerificationCheckEvent) error
}

// VerificationBridge holds at most one pending verification event for the
// presentation layer. An event is published once per UID; after Clear the same
// UID is not raised again.
type VerificationBridge struct {
	forwarder Forwarder
	logger    *logrus.Logger

	mu      sync.Mutex
	pending *entity.VerificationCheckEvent
	seen    map[string]struct{}
}

func NewVerificationBridge(forwarder Forwarder, logger *logrus.Logger) *VerificationBridge {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &VerificationBridge{
		forwarder: forwarder,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
}

// Publish records ev as pending and forwards it. It reports false when an
// event for the same UID was already published.
func (b *VerificationBridge) Publish(ctx context.Context, ev entity.VerificationCheckEvent) bool {
	b.mu.Lock()
	if _, dup := b.seen[ev.UID]; dup && ev.UID != "" {
		b.mu.Unlock()
		return false
	}
	if ev.UID != "" {
		b.seen[ev.UID] = struct{}{}
	}
	e := ev
	b.pending = &e
	b.mu.Unlock()

	if b.forwarder != nil {
		if err := b.forwarder.ForwardVerified(context.WithoutCancel(ctx), ev); err != nil {
			b.logger.WithError(err).WithField("uid", ev.UID).Warn("forward verification event failed")
		}
	}
	return true
}

// Pending returns a copy of the pending event, or nil.
func (b *VerificationBridge) Pending() *entity.VerificationCheckEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	e := *b.pending
	return &e
}

func (b *VerificationBridge) Clear() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}
