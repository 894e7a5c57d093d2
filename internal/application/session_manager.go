package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// State is the session lifecycle position.
type State string

const (
	StateLoading                 State = "loading"
	StateUnauthenticated         State = "unauthenticated"
	StateAuthenticatedUnverified State = "authenticated_unverified"
	StateAuthenticatedVerified   State = "authenticated_verified"
)

// Snapshot is what the presentation layer reads.
type Snapshot struct {
	State                    State                          `json:"state"`
	Identity                 *entity.Identity               `json:"identity"`
	Role                     entity.Role                    `json:"role,omitempty"`
	IsLoading                bool                           `json:"is_loading"`
	PendingVerificationEvent *entity.VerificationCheckEvent `json:"pending_verification_event"`
	Destination              policy.Destination             `json:"destination"`
}

type SignupResult struct {
	UID                   string `json:"uid"`
	Email                 string `json:"email"`
	VerificationEmailSent bool   `json:"verification_email_sent"`
	Message               string `json:"message"`
}

type ResendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CheckResult struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
	// Retry is set when the account is verified but the profile could not
	// be updated because the store was unreachable.
	Retry bool `json:"retry,omitempty"`
}

// ProfilePatch holds the identity fields a user may edit locally.
type ProfilePatch struct {
	DisplayName *string
	PhotoURL    *string
}

// SessionManager owns one device's identity, role and loading state and gates
// session establishment on email verification.
//
// State is guarded by mu, which is never held across provider or store calls:
// a session-change notification may interleave with an explicit Login or
// Signup. Both converge on the same identity and role.
type SessionManager struct {
	Provider  identity.Provider
	Profiles  repo.ProfileRepository
	Allowlist policy.Allowlist
	Bridge    *VerificationBridge
	Logger    *logrus.Logger
	Now       func() time.Time
	// OnChange, when set, receives every state change.
	OnChange func(Snapshot)

	mu          sync.Mutex
	identity    *entity.Identity
	role        entity.Role
	loading     bool
	unsubscribe func()

	// gen is bumped by every clear; a bootstrap started before a clear
	// must not write its result.
	gen uint64

	ready     chan struct{}
	readyOnce sync.Once
}

func NewSessionManager(provider identity.Provider, profiles repo.ProfileRepository, allowlist policy.Allowlist, bridge *VerificationBridge, logger *logrus.Logger) *SessionManager {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	if bridge == nil {
		bridge = NewVerificationBridge(nil, logger)
	}
	return &SessionManager{
		Provider:  provider,
		Profiles:  profiles,
		Allowlist: allowlist,
		Bridge:    bridge,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
		loading:   true,
		ready:     make(chan struct{}),
	}
}

// Start subscribes to the provider's session changes. The first notification
// completes the initial load.
func (m *SessionManager) Start(ctx context.Context) {
	unsub := m.Provider.SubscribeSessionChanges(ctx, m.bootstrap)
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
}

func (m *SessionManager) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Ready is closed once the initial load has finished.
func (m *SessionManager) Ready() <-chan struct{} { return m.ready }

// WaitReady blocks until the initial load finished or ctx is done, and
// reports which happened first.
func (m *SessionManager) WaitReady(ctx context.Context) bool {
	select {
	case <-m.ready:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	id := m.identity.Clone()
	role := m.role
	loading := m.loading
	m.mu.Unlock()

	s := Snapshot{
		Identity:                 id,
		Role:                     role,
		IsLoading:                loading,
		PendingVerificationEvent: m.Bridge.Pending(),
		Destination:              m.Allowlist.Route(loading, id, role),
	}
	switch {
	case loading:
		s.State = StateLoading
	case id == nil:
		s.State = StateUnauthenticated
	case m.Allowlist.GateCleared(id):
		s.State = StateAuthenticatedVerified
	default:
		s.State = StateAuthenticatedUnverified
	}
	return s
}

// bootstrap handles a session-change notification from the provider. It acts
// on the provider's current identity rather than the notified one, so a
// notification that arrives after a later sign-out cannot resurrect a session.
func (m *SessionManager) bootstrap(ctx context.Context, _ *entity.Identity) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	current := m.Provider.CurrentIdentity()
	if current == nil {
		m.clear()
		return
	}
	role := m.resolveRole(ctx, current.UID)
	if now := m.Provider.CurrentIdentity(); now == nil || now.UID != current.UID {
		// a newer notification is queued behind this one
		m.Logger.WithField("uid", current.UID).Debug("session changed during bootstrap")
		return
	}
	if !m.applyAt(gen, current, role) {
		m.Logger.WithField("uid", current.UID).Debug("signed out during bootstrap")
	}
}

// resolveRole reads the role from the profile, falling back to the default
// role whenever the profile cannot be read.
func (m *SessionManager) resolveRole(ctx context.Context, uid string) entity.Role {
	p, err := m.Profiles.Get(ctx, uid)
	log := m.Logger.WithField("uid", uid)
	switch {
	case err != nil && errors.Is(err, repo.ErrUnavailable):
		log.WithError(err).Warn("profile store unavailable, using default role")
		return entity.DefaultRole
	case err != nil:
		log.WithError(err).Warn("profile read failed, using default role")
		return entity.DefaultRole
	case p == nil:
		log.Info("no profile document, using default role")
		return entity.DefaultRole
	case !p.Role.Valid():
		log.WithField("role", p.Role).Warn("profile has unknown role, using default role")
		return entity.DefaultRole
	}
	return p.Role
}

func (m *SessionManager) apply(id *entity.Identity, role entity.Role) {
	m.mu.Lock()
	m.store(id, role)
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
	m.changed()
}

// applyAt is apply for a result computed at generation gen. It reports false
// and writes nothing when the session was cleared since.
func (m *SessionManager) applyAt(gen uint64, id *entity.Identity, role entity.Role) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.store(id, role)
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
	m.changed()
	return true
}

// store must be called with mu held.
func (m *SessionManager) store(id *entity.Identity, role entity.Role) {
	next := id.Clone()
	// verification never goes backwards for the same principal
	if m.identity != nil && m.identity.UID == next.UID {
		next.EmailVerified = next.EmailVerified || m.identity.EmailVerified
		if next.PhotoURL == "" {
			next.PhotoURL = m.identity.PhotoURL
		}
	}
	m.identity = next
	m.role = role
	m.loading = false
}

func (m *SessionManager) clear() {
	m.mu.Lock()
	m.gen++
	m.identity = nil
	m.role = ""
	m.loading = false
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
	m.changed()
}

func (m *SessionManager) changed() {
	if m.OnChange != nil {
		m.OnChange(m.Snapshot())
	}
}

// signOut ends the provider session even if ctx is already cancelled, then
// clears local state.
func (m *SessionManager) signOut(ctx context.Context, op string) {
	if err := m.Provider.SignOut(context.WithoutCancel(ctx)); err != nil {
		m.Logger.WithError(err).WithField("op", op).Warn("provider sign-out failed")
	}
	m.clear()
}

// Signup creates the account, sends the verification email and writes the
// profile. It always ends signed out: the account must be verified first.
func (m *SessionManager) Signup(ctx context.Context, email, password, displayName string, role entity.Role) (*SignupResult, error) {
	role, err := entity.ParseRole(string(role))
	if err != nil {
		return nil, &OperationError{Op: "signup", Message: "Unknown account type.", Err: fmt.Errorf("%w: %v", ErrInvalidRole, err)}
	}
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)

	id, err := m.Provider.CreateIdentity(ctx, email, password)
	if err != nil {
		return nil, authFailure("signup", err)
	}
	defer m.signOut(ctx, "signup")
	log := m.Logger.WithFields(logrus.Fields{"uid": id.UID, "email": id.Email})

	if displayName != "" {
		if err := m.Provider.UpdateDisplayName(ctx, id, displayName); err != nil {
			log.WithError(err).Warn("set display name failed")
		}
		id.DisplayName = displayName
	}

	sendErr := m.Provider.SendVerificationEmail(ctx, id)
	if sendErr != nil {
		log.WithError(sendErr).Warn("verification email send failed")
	}

	now := m.Now()
	profile := &entity.Profile{
		UID:                   id.UID,
		Email:                 id.Email,
		DisplayName:           id.DisplayName,
		Role:                  role,
		CreatedAt:             now,
		UpdatedAt:             now,
		VerificationEmailSent: sendErr == nil,
	}
	if sendErr == nil {
		profile.VerificationEmailSentAt = &now
	}
	if err := m.Profiles.Create(ctx, profile); err != nil {
		log.WithError(err).Error("profile write failed")
		return nil, storeFailure("signup", err)
	}

	if sendErr != nil {
		return nil, &OperationError{
			Op:      "signup",
			Message: "Your account was created, but we couldn't send the verification email. Please use \"Resend verification email\" to try again.",
			Err:     errors.Join(ErrVerificationEmailNotSent, sendErr),
		}
	}
	log.Info("account created, awaiting verification")
	return &SignupResult{
		UID:                   id.UID,
		Email:                 id.Email,
		VerificationEmailSent: true,
		Message:               fmt.Sprintf("Account created! We sent a verification link to %s. Verify your email, then log in.", id.Email),
	}, nil
}

// Login authenticates and establishes a session only for verified or
// allowlisted accounts. Any other outcome leaves the device signed out.
func (m *SessionManager) Login(ctx context.Context, email, password string) (Snapshot, error) {
	id, err := m.Provider.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return m.Snapshot(), authFailure("login", err)
	}
	log := m.Logger.WithFields(logrus.Fields{"uid": id.UID, "email": id.Email})

	if err := m.Provider.ReloadIdentity(ctx, id); err != nil {
		m.signOut(ctx, "login")
		return m.Snapshot(), authFailure("login", err)
	}

	bypass := m.Allowlist.Bypasses(id)
	if !bypass && !id.EmailVerified {
		m.signOut(ctx, "login")
		log.Info("login blocked, email not verified")
		return m.Snapshot(), &OperationError{
			Op:      "login",
			Message: "Please verify your email before logging in. Check your inbox for the verification link.",
			Err:     ErrVerificationRequired,
		}
	}
	if id.EmailVerified {
		_ = m.syncVerified(ctx, id)
	} else {
		log.Info("verification gate bypassed for allowlisted account")
	}

	role := m.resolveRole(ctx, id.UID)
	m.apply(id, role)
	log.WithField("role", role).Info("session established")
	return m.Snapshot(), nil
}

// syncVerified brings the profile's verification flag up to date. Failures
// are logged and returned; the provider remains the source of truth.
func (m *SessionManager) syncVerified(ctx context.Context, id *entity.Identity) error {
	changed, err := m.Profiles.MarkVerified(ctx, id.UID, m.Now())
	if err != nil {
		m.Logger.WithError(err).WithField("uid", id.UID).Warn("profile verification sync failed")
		return err
	}
	if changed {
		m.Logger.WithField("uid", id.UID).Info("profile marked verified")
	}
	return nil
}

func (m *SessionManager) Logout(ctx context.Context) error {
	err := m.Provider.SignOut(ctx)
	m.clear()
	if err != nil {
		return &OperationError{Op: "logout", Message: "We couldn't sign you out cleanly. Please try again.", Err: err}
	}
	return nil
}

// ResendVerificationEmail re-authenticates to send another verification email.
// Already verified accounts get Success=false and no email.
func (m *SessionManager) ResendVerificationEmail(ctx context.Context, email, password string) (*ResendResult, error) {
	id, err := m.Provider.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, authFailure("resend verification", err)
	}
	defer m.signOut(ctx, "resend verification")

	if err := m.Provider.ReloadIdentity(ctx, id); err != nil {
		return nil, authFailure("resend verification", err)
	}
	if id.EmailVerified {
		return &ResendResult{Success: false, Message: "Your email is already verified. You can log in now."}, nil
	}
	if err := m.Provider.SendVerificationEmail(ctx, id); err != nil {
		return nil, authFailure("resend verification", err)
	}
	if err := m.Profiles.MarkVerificationSent(ctx, id.UID, m.Now()); err != nil {
		m.Logger.WithError(err).WithField("uid", id.UID).Warn("profile sent timestamp update failed")
	}
	return &ResendResult{
		Success: true,
		Message: fmt.Sprintf("Verification email sent to %s. Please check your inbox.", id.Email),
	}, nil
}

// CheckEmailVerification re-authenticates to read the latest verification
// flag. A verified result updates the profile but does not keep the session.
func (m *SessionManager) CheckEmailVerification(ctx context.Context, email, password string) (*CheckResult, error) {
	id, err := m.Provider.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, authFailure("check verification", err)
	}
	defer m.signOut(ctx, "check verification")

	if err := m.Provider.ReloadIdentity(ctx, id); err != nil {
		return nil, authFailure("check verification", err)
	}
	if !id.EmailVerified {
		return &CheckResult{Verified: false, Message: "Your email is not verified yet. Open the link we sent you, then check again."}, nil
	}

	syncErr := m.syncVerified(ctx, id)
	ev := entity.VerificationCheckEvent{
		UID:       id.UID,
		Email:     id.Email,
		Verified:  true,
		Message:   "Email verified! You can now log in.",
		Timestamp: m.Now(),
	}
	m.Bridge.Publish(ctx, ev)
	if syncErr != nil && errors.Is(syncErr, repo.ErrUnavailable) {
		return &CheckResult{
			Verified: true,
			Message:  "Email verified! We couldn't reach the server to update your account, so please check again once you're back online.",
			Retry:    true,
		}, nil
	}
	return &CheckResult{Verified: true, Message: ev.Message}, nil
}

// UpdateUserProfile merges patch into the in-memory identity only. Nothing is
// written to the profile store.
func (m *SessionManager) UpdateUserProfile(patch ProfilePatch) (*entity.Identity, error) {
	m.mu.Lock()
	if m.identity == nil {
		m.mu.Unlock()
		return nil, &OperationError{Op: "update profile", Message: "You need to be logged in to update your profile.", Err: ErrNotSignedIn}
	}
	if patch.DisplayName != nil {
		m.identity.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.PhotoURL != nil {
		m.identity.PhotoURL = strings.TrimSpace(*patch.PhotoURL)
	}
	out := m.identity.Clone()
	m.mu.Unlock()
	m.changed()
	return out, nil
}

func (m *SessionManager) ClearVerificationEvent() {
	m.Bridge.Clear()
	m.changed()
}
