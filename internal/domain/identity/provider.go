// Package identity describes the identity provider collaborator consumed by the
// session layer, and the shared plumbing its adapters use.
package identity

import (
	"context"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

// SessionListener receives the provider's current identity whenever the
// signed-in principal changes. A nil identity means signed out.
type SessionListener func(ctx context.Context, id *entity.Identity)

// Provider is one device's view of the identity provider. Implementations hold
// the signed-in principal for that device, like a client SDK instance would.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (*entity.Identity, error)
	CreateIdentity(ctx context.Context, email, password string) (*entity.Identity, error)
	SendVerificationEmail(ctx context.Context, id *entity.Identity) error
	// ReloadIdentity refreshes EmailVerified (and DisplayName) in place.
	ReloadIdentity(ctx context.Context, id *entity.Identity) error
	UpdateDisplayName(ctx context.Context, id *entity.Identity, name string) error
	SignOut(ctx context.Context) error
	CurrentIdentity() *entity.Identity
	// SubscribeSessionChanges delivers the current identity once and then every
	// change, in order. The returned func releases the subscription.
	SubscribeSessionChanges(ctx context.Context, fn SessionListener) (unsubscribe func())
	Close() error
}

// Factory opens a Provider per device session.
type Factory interface {
	NewSession() Provider
}
