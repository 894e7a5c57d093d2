package application

import (
	"context"
	"testing"
	"time"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
)

func TestBridgePublishesOncePerUID(t *testing.T) {
	fwd := &recordingForwarder{}
	b := NewVerificationBridge(fwd, nil)
	ev := entity.VerificationCheckEvent{UID: "u1", Verified: true, Message: "ok", Timestamp: fixedNow}

	if !b.Publish(context.Background(), ev) {
		t.Fatal("first publish rejected")
	}
	if b.Publish(context.Background(), ev) {
		t.Fatal("duplicate publish accepted")
	}
	if got := b.Pending(); got == nil || got.Message != "ok" {
		t.Fatalf("pending = %+v", got)
	}
	b.Clear()
	if b.Publish(context.Background(), ev) || b.Pending() != nil {
		t.Fatal("cleared event resurrected")
	}
	if len(fwd.events) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(fwd.events))
	}

	other := ev
	other.UID = "u2"
	if !b.Publish(context.Background(), other) {
		t.Fatal("publish for another account rejected")
	}
}

func TestBridgePendingIsACopy(t *testing.T) {
	b := NewVerificationBridge(nil, nil)
	b.Publish(context.Background(), entity.VerificationCheckEvent{UID: "u1", Message: "a"})
	b.Pending().Message = "mutated"
	if got := b.Pending().Message; got != "a" {
		t.Fatalf("pending message = %q", got)
	}
}

func TestForegroundReconcilesVerifiedSession(t *testing.T) {
	m, p, profiles := newTestManager(t)
	uid := p.addAccount(bypassEmail, "pw1234", false)
	profiles.put(&entity.Profile{UID: uid, Email: bypassEmail, Role: entity.RoleCustomer})
	if _, err := m.Login(context.Background(), bypassEmail, "pw1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	host := NewForegroundSignals()
	mon := NewLifecycleMonitor(host, m)
	mon.Start()
	defer mon.Stop()

	// still unverified: nothing happens
	host.Foreground(context.Background())
	if m.Snapshot().Identity == nil {
		t.Fatal("unverified foreground ended the session")
	}

	p.verify(bypassEmail)
	host.Foreground(context.Background())

	assertSignedOut(t, m, p)
	if got := profiles.peek(uid); !got.EmailVerified || got.VerifiedAt == nil {
		t.Fatalf("profile = %+v", got)
	}
	ev := m.Snapshot().PendingVerificationEvent
	if ev == nil || !ev.Verified || !ev.Timestamp.Equal(fixedNow) {
		t.Fatalf("pending event = %+v", ev)
	}
}

func TestReconcileWithoutSessionIsNoop(t *testing.T) {
	m, _, profiles := newTestManager(t)
	mon := NewLifecycleMonitor(NewForegroundSignals(), m)
	if mon.Reconcile(context.Background()) {
		t.Fatal("reconciled without a session")
	}
	if profiles.markHits != 0 {
		t.Fatal("profile touched without a session")
	}
}

func TestMonitorStopReleasesSubscription(t *testing.T) {
	m, _, _ := newTestManager(t)
	host := NewForegroundSignals()
	mon := NewLifecycleMonitor(host, m)
	mon.Start()
	mon.Start()
	if host.Listeners() != 1 {
		t.Fatalf("listeners = %d, want 1", host.Listeners())
	}
	mon.Stop()
	mon.Stop()
	if host.Listeners() != 0 {
		t.Fatalf("listeners = %d after stop", host.Listeners())
	}
}

func TestDeviceRegistryLifecycle(t *testing.T) {
	factory := &fakeFactory{}
	mirror := newFakeMirror()
	reg := NewDeviceRegistry(DeviceRegistryConfig{
		Factory:   factory,
		Profiles:  newFakeProfiles(),
		Allowlist: policy.NewAllowlist(bypassEmail),
		Mirror:    mirror,
		IdleTTL:   time.Hour,
	})
	now := fixedNow
	reg.now = func() time.Time { return now }

	a := reg.Get(context.Background(), "dev-a")
	if again := reg.Get(context.Background(), "dev-a"); again != a {
		t.Fatal("same id opened a second device")
	}
	reg.Get(context.Background(), "dev-b")
	if reg.Len() != 2 || len(factory.sessions) != 2 {
		t.Fatalf("len = %d sessions = %d", reg.Len(), len(factory.sessions))
	}
	if _, ok := mirror.saved["dev-a"]; !ok {
		t.Fatal("device snapshot not mirrored")
	}

	now = now.Add(50 * time.Minute)
	reg.Get(context.Background(), "dev-b")
	now = now.Add(20 * time.Minute)

	if n := reg.Sweep(context.Background()); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if reg.Len() != 1 || !factory.sessions[0].closed || factory.sessions[1].closed {
		t.Fatal("wrong device evicted")
	}
	if len(mirror.deleted) != 1 || mirror.deleted[0] != "dev-a" {
		t.Fatalf("mirror deletes = %v", mirror.deleted)
	}

	reg.Close(context.Background())
	if reg.Len() != 0 || !factory.sessions[1].closed {
		t.Fatal("close left devices open")
	}
}
