package application

import (
	"context"
	"sync"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

// AppHost reports foreground transitions of the client app.
type AppHost interface {
	OnForeground(fn func(ctx context.Context)) (unsubscribe func())
}

// ForegroundSignals is an AppHost driven by explicit Foreground calls, e.g.
// from an HTTP endpoint the client hits when it resumes.
type ForegroundSignals struct {
	mu        sync.Mutex
	listeners map[int]func(ctx context.Context)
	nextID    int
}

func NewForegroundSignals() *ForegroundSignals {
	return &ForegroundSignals{listeners: make(map[int]func(ctx context.Context))}
}

func (f *ForegroundSignals) OnForeground(fn func(ctx context.Context)) func() {
	f.mu.Lock()
	key := f.nextID
	f.nextID++
	f.listeners[key] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, key)
			f.mu.Unlock()
		})
	}
}

// Foreground runs every listener synchronously.
func (f *ForegroundSignals) Foreground(ctx context.Context) {
	f.mu.Lock()
	fns := make([]func(ctx context.Context), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// Listeners reports how many subscriptions are live.
func (f *ForegroundSignals) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// LifecycleMonitor reconciles an unverified session when the app returns to
// the foreground. A session that turns out to be verified is recorded, an
// event is raised and the session is ended so the user logs in again.
type LifecycleMonitor struct {
	host    AppHost
	manager *SessionManager

	mu          sync.Mutex
	unsubscribe func()
}

func NewLifecycleMonitor(host AppHost, manager *SessionManager) *LifecycleMonitor {
	return &LifecycleMonitor{host: host, manager: manager}
}

func (l *LifecycleMonitor) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		return
	}
	l.unsubscribe = l.host.OnForeground(func(ctx context.Context) {
		l.Reconcile(ctx)
	})
}

func (l *LifecycleMonitor) Stop() {
	l.mu.Lock()
	unsub := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Reconcile reports whether a verification was detected.
func (l *LifecycleMonitor) Reconcile(ctx context.Context) bool {
	m := l.manager
	id := m.Provider.CurrentIdentity()
	if id == nil || id.EmailVerified {
		return false
	}
	log := m.Logger.WithField("uid", id.UID)
	if err := m.Provider.ReloadIdentity(ctx, id); err != nil {
		log.WithError(err).Warn("foreground reload failed")
		return false
	}
	if !id.EmailVerified {
		return false
	}

	_ = m.syncVerified(ctx, id)
	m.Bridge.Publish(ctx, entity.VerificationCheckEvent{
		UID:       id.UID,
		Email:     id.Email,
		Verified:  true,
		Message:   "Your email has been verified! Please log in again.",
		Timestamp: m.Now(),
	})
	m.signOut(ctx, "foreground reconcile")
	log.Info("verification detected on foreground, session ended")
	return true
}
