package localauth

import (
	"context"
	"strings"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
)

// Session is one device's view of the directory.
type Session struct {
	dir *Directory
	hub *identity.Hub
}

func (s *Session) Authenticate(ctx context.Context, email, password string) (*entity.Identity, error) {
	acc, err := s.dir.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	id := acc.Identity()
	s.hub.SetCurrent(ctx, id)
	return id, nil
}

func (s *Session) CreateIdentity(ctx context.Context, email, password string) (*entity.Identity, error) {
	acc, err := s.dir.create(ctx, email, password)
	if err != nil {
		return nil, err
	}
	id := acc.Identity()
	s.hub.SetCurrent(ctx, id)
	return id, nil
}

func (s *Session) SendVerificationEmail(ctx context.Context, id *entity.Identity) error {
	return s.dir.sendVerification(ctx, id)
}

func (s *Session) ReloadIdentity(ctx context.Context, id *entity.Identity) error {
	acc, err := s.dir.account(ctx, id.UID)
	if err != nil {
		return err
	}
	id.EmailVerified = acc.EmailVerified
	id.DisplayName = acc.DisplayName
	s.hub.Refresh(id)
	return nil
}

func (s *Session) UpdateDisplayName(ctx context.Context, id *entity.Identity, name string) error {
	name = strings.TrimSpace(name)
	if err := s.dir.rename(ctx, id.UID, name); err != nil {
		return err
	}
	id.DisplayName = name
	s.hub.Refresh(id)
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	s.hub.SetCurrent(ctx, nil)
	return nil
}

func (s *Session) CurrentIdentity() *entity.Identity { return s.hub.Current() }

func (s *Session) SubscribeSessionChanges(ctx context.Context, fn identity.SessionListener) func() {
	return s.hub.Subscribe(ctx, fn)
}

func (s *Session) Close() error {
	s.hub.Close()
	return nil
}

var _ identity.Provider = (*Session)(nil)
