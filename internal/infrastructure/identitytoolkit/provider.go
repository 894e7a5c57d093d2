// Package identitytoolkit is the hosted identity provider, backed by the
// Google Identity Toolkit REST API (the API behind Firebase Authentication).
package identitytoolkit

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	itk "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
)

// Client is shared by every device session.
type Client struct {
	svc *itk.Service
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	svc, err := itk.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

func (c *Client) NewSession() identity.Provider {
	return &Session{svc: c.svc, hub: identity.NewHub()}
}

// Session keeps the ID token of the signed-in user, like a client SDK does.
type Session struct {
	svc *itk.Service
	hub *identity.Hub

	mu      sync.Mutex
	uid     string
	idToken string
}

func (s *Session) Authenticate(ctx context.Context, email, password string) (*entity.Identity, error) {
	res, err := s.svc.Relyingparty.VerifyPassword(&itk.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	id := &entity.Identity{UID: res.LocalId, Email: res.Email, DisplayName: res.DisplayName}
	s.signedIn(ctx, id, res.IdToken)
	return id.Clone(), nil
}

func (s *Session) CreateIdentity(ctx context.Context, email, password string) (*entity.Identity, error) {
	res, err := s.svc.Relyingparty.SignupNewUser(&itk.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	id := &entity.Identity{UID: res.LocalId, Email: res.Email, DisplayName: res.DisplayName}
	s.signedIn(ctx, id, res.IdToken)
	return id.Clone(), nil
}

func (s *Session) SendVerificationEmail(ctx context.Context, id *entity.Identity) error {
	token, err := s.token(id)
	if err != nil {
		return err
	}
	_, err = s.svc.Relyingparty.GetOobConfirmationCode(&itk.Relyingparty{
		RequestType: "VERIFY_EMAIL",
		IdToken:     token,
	}).Context(ctx).Do()
	return mapError(err)
}

func (s *Session) ReloadIdentity(ctx context.Context, id *entity.Identity) error {
	token, err := s.token(id)
	if err != nil {
		return err
	}
	res, err := s.svc.Relyingparty.GetAccountInfo(&itk.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: token,
	}).Context(ctx).Do()
	if err != nil {
		return mapError(err)
	}
	if len(res.Users) == 0 {
		return identity.NewError(identity.CodeUnknownAccount, nil)
	}
	u := res.Users[0]
	id.EmailVerified = u.EmailVerified
	id.DisplayName = u.DisplayName
	if u.PhotoUrl != "" {
		id.PhotoURL = u.PhotoUrl
	}
	s.hub.Refresh(id)
	return nil
}

func (s *Session) UpdateDisplayName(ctx context.Context, id *entity.Identity, name string) error {
	token, err := s.token(id)
	if err != nil {
		return err
	}
	res, err := s.svc.Relyingparty.SetAccountInfo(&itk.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           token,
		DisplayName:       name,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return mapError(err)
	}
	if res.IdToken != "" {
		s.mu.Lock()
		if s.uid == id.UID {
			s.idToken = res.IdToken
		}
		s.mu.Unlock()
	}
	id.DisplayName = name
	s.hub.Refresh(id)
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.uid, s.idToken = "", ""
	s.mu.Unlock()
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

func (s *Session) signedIn(ctx context.Context, id *entity.Identity, token string) {
	s.mu.Lock()
	s.uid, s.idToken = id.UID, token
	s.mu.Unlock()
	s.hub.SetCurrent(ctx, id)
}

func (s *Session) token(id *entity.Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == nil || s.uid != id.UID || s.idToken == "" {
		return "", errNotSignedIn
	}
	return s.idToken, nil
}

var errNotSignedIn = errors.New("identitytoolkit: identity is not the signed-in user")

// mapError translates the API's error messages into provider codes. Messages
// look like "EMAIL_EXISTS" or "WEAK_PASSWORD : Password should be ...".
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := strings.TrimSpace(strings.SplitN(gerr.Message, ":", 2)[0])
		switch reason {
		case "EMAIL_NOT_FOUND", "USER_NOT_FOUND", "USER_DISABLED":
			return identity.NewError(identity.CodeUnknownAccount, err)
		case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_ID_TOKEN", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
			return identity.NewError(identity.CodeWrongCredentials, err)
		case "EMAIL_EXISTS":
			return identity.NewError(identity.CodeEmailInUse, err)
		case "WEAK_PASSWORD":
			return identity.NewError(identity.CodeWeakPassword, err)
		case "INVALID_EMAIL", "MISSING_EMAIL":
			return identity.NewError(identity.CodeInvalidEmail, err)
		case "TOO_MANY_ATTEMPTS_TRY_LATER", "QUOTA_EXCEEDED":
			return identity.NewError(identity.CodeTooManyRequests, err)
		}
		if gerr.Code >= 500 {
			return identity.NewError(identity.CodeNetwork, err)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return identity.NewError(identity.CodeNetwork, err)
	}
	return err
}

var _ identity.Provider = (*Session)(nil)
