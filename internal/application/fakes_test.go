package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

type fakeAccount struct {
	id       entity.Identity
	password string
}

// fakeProvider notifies listeners synchronously on the caller's goroutine.
type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]*fakeAccount
	current   *entity.Identity
	listeners map[int]identity.SessionListener
	nextID    int
	nextUID   int

	sent      []string
	sendErr   error
	reloadErr error
	signOuts  int
	closed    bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:  make(map[string]*fakeAccount),
		listeners: make(map[int]identity.SessionListener),
	}
}

func (p *fakeProvider) addAccount(email, password string, verified bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextUID++
	uid := fmt.Sprintf("uid-%d", p.nextUID)
	p.accounts[entity.NormalizeEmail(email)] = &fakeAccount{
		id:       entity.Identity{UID: uid, Email: email, EmailVerified: verified},
		password: password,
	}
	return uid
}

func (p *fakeProvider) verify(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[entity.NormalizeEmail(email)].id.EmailVerified = true
}

func (p *fakeProvider) sentTo() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *fakeProvider) notify(ctx context.Context) {
	p.mu.Lock()
	cur := p.current.Clone()
	keys := make([]int, 0, len(p.listeners))
	for k := range p.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]identity.SessionListener, 0, len(keys))
	for _, k := range keys {
		fns = append(fns, p.listeners[k])
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, cur.Clone())
	}
}

func (p *fakeProvider) Authenticate(ctx context.Context, email, password string) (*entity.Identity, error) {
	p.mu.Lock()
	acc, ok := p.accounts[entity.NormalizeEmail(email)]
	if !ok {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeUnknownAccount, nil)
	}
	if acc.password != password {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeWrongCredentials, nil)
	}
	// a fresh sign-in returns the cached flag; ReloadIdentity reads the live one
	id := acc.id
	id.EmailVerified = false
	if p.current != nil && p.current.UID == id.UID {
		id.EmailVerified = p.current.EmailVerified
	}
	p.current = id.Clone()
	p.mu.Unlock()
	p.notify(ctx)
	return id.Clone(), nil
}

func (p *fakeProvider) CreateIdentity(ctx context.Context, email, password string) (*entity.Identity, error) {
	p.mu.Lock()
	if _, ok := p.accounts[entity.NormalizeEmail(email)]; ok {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeEmailInUse, nil)
	}
	if len(password) < 6 {
		p.mu.Unlock()
		return nil, identity.NewError(identity.CodeWeakPassword, nil)
	}
	p.mu.Unlock()
	p.addAccount(email, password, false)
	p.mu.Lock()
	id := p.accounts[entity.NormalizeEmail(email)].id
	p.current = id.Clone()
	p.mu.Unlock()
	p.notify(ctx)
	return id.Clone(), nil
}

func (p *fakeProvider) SendVerificationEmail(_ context.Context, id *entity.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, id.Email)
	return nil
}

func (p *fakeProvider) ReloadIdentity(_ context.Context, id *entity.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reloadErr != nil {
		return p.reloadErr
	}
	acc, ok := p.accounts[entity.NormalizeEmail(id.Email)]
	if !ok {
		return identity.NewError(identity.CodeUnknownAccount, nil)
	}
	id.EmailVerified = acc.id.EmailVerified
	id.DisplayName = acc.id.DisplayName
	if p.current != nil && p.current.UID == id.UID {
		p.current = id.Clone()
	}
	return nil
}

func (p *fakeProvider) UpdateDisplayName(_ context.Context, id *entity.Identity, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[entity.NormalizeEmail(id.Email)]; ok {
		acc.id.DisplayName = name
	}
	return nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.signOuts++
	p.mu.Unlock()
	p.notify(ctx)
	return nil
}

func (p *fakeProvider) CurrentIdentity() *entity.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

func (p *fakeProvider) SubscribeSessionChanges(ctx context.Context, fn identity.SessionListener) func() {
	p.mu.Lock()
	key := p.nextID
	p.nextID++
	p.listeners[key] = fn
	cur := p.current.Clone()
	p.mu.Unlock()
	fn(ctx, cur)
	return func() {
		p.mu.Lock()
		delete(p.listeners, key)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeProvider
}

func (f *fakeFactory) NewSession() identity.Provider {
	p := newFakeProvider()
	f.mu.Lock()
	f.sessions = append(f.sessions, p)
	f.mu.Unlock()
	return p
}

type fakeProfiles struct {
	mu       sync.Mutex
	docs     map[string]*entity.Profile
	getErr   error
	markErr  error
	onGet    func()
	creates  int
	markHits int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{docs: make(map[string]*entity.Profile)}
}

func (f *fakeProfiles) put(p *entity.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *p
	f.docs[p.UID] = &c
}

func (f *fakeProfiles) peek(uid string) *entity.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[uid]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

func (f *fakeProfiles) Get(_ context.Context, uid string) (*entity.Profile, error) {
	if f.onGet != nil {
		f.onGet()
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.peek(uid), nil
}

func (f *fakeProfiles) Create(_ context.Context, p *entity.Profile) error {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	f.put(p)
	return nil
}

func (f *fakeProfiles) MarkVerified(_ context.Context, uid string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markHits++
	if f.markErr != nil {
		return false, f.markErr
	}
	p, ok := f.docs[uid]
	if !ok || p.EmailVerified {
		return false, nil
	}
	p.EmailVerified = true
	p.VerifiedAt = &at
	p.UpdatedAt = at
	return true, nil
}

func (f *fakeProfiles) MarkVerificationSent(_ context.Context, uid string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.docs[uid]; ok {
		p.VerificationEmailSent = true
		p.VerificationEmailSentAt = &at
	}
	return nil
}

func (f *fakeProfiles) List(context.Context, repo.ProfileFilter) ([]*entity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Profile, 0, len(f.docs))
	for _, p := range f.docs {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

type recordingForwarder struct {
	mu     sync.Mutex
	events []entity.VerificationCheckEvent
}

func (r *recordingForwarder) ForwardVerified(_ context.Context, ev entity.VerificationCheckEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fakeMirror struct {
	mu      sync.Mutex
	saved   map[string]Snapshot
	deleted []string
}

func newFakeMirror() *fakeMirror { return &fakeMirror{saved: make(map[string]Snapshot)} }

func (m *fakeMirror) Save(_ context.Context, id string, s Snapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = s
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	m.deleted = append(m.deleted, id)
	return nil
}
