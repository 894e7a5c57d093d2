package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// SessionMirror keeps a copy of each device's snapshot outside the process so
// other instances and operators can see it.
type SessionMirror interface {
	Save(ctx context.Context, deviceID string, snap Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, deviceID string) error
}

// Device is one client installation: its own provider session, session
// manager, lifecycle monitor and verification bridge.
type Device struct {
	ID       string
	Provider identity.Provider
	Manager  *SessionManager
	Monitor  *LifecycleMonitor
	Host     *ForegroundSignals

	lastSeen atomic.Int64
}

func (d *Device) touch(now time.Time) { d.lastSeen.Store(now.UnixNano()) }

func (d *Device) LastSeen() time.Time { return time.Unix(0, d.lastSeen.Load()).UTC() }

// Foreground signals that the client app came back to the foreground.
func (d *Device) Foreground(ctx context.Context) {
	d.Host.Foreground(ctx)
}

type DeviceRegistryConfig struct {
	Factory   identity.Factory
	Profiles  repo.ProfileRepository
	Allowlist policy.Allowlist
	Forwarder Forwarder
	Mirror    SessionMirror
	IdleTTL   time.Duration
	Logger    *logrus.Logger
}

// DeviceRegistry holds the live devices keyed by device id.
type DeviceRegistry struct {
	cfg DeviceRegistryConfig
	now func() time.Time

	mu      sync.Mutex
	devices map[string]*Device
}

func NewDeviceRegistry(cfg DeviceRegistryConfig) *DeviceRegistry {
	if cfg.Logger == nil {
		cfg.Logger = helpers.NewDiscardLogger()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	return &DeviceRegistry{
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		devices: make(map[string]*Device),
	}
}

// Get returns the device for id, starting a new one on first use.
func (r *DeviceRegistry) Get(ctx context.Context, id string) *Device {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		d = r.open(ctx, id)
		r.devices[id] = d
	}
	// touched under mu so a concurrent Sweep never sees a zero lastSeen
	d.touch(now)
	return d
}

func (r *DeviceRegistry) open(ctx context.Context, id string) *Device {
	provider := r.cfg.Factory.NewSession()
	bridge := NewVerificationBridge(r.cfg.Forwarder, r.cfg.Logger)
	mgr := NewSessionManager(provider, r.cfg.Profiles, r.cfg.Allowlist, bridge, r.cfg.Logger)
	if r.cfg.Mirror != nil {
		mirror, ttl, log := r.cfg.Mirror, r.cfg.IdleTTL, r.cfg.Logger
		mgr.OnChange = func(s Snapshot) {
			c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := mirror.Save(c, id, s, ttl); err != nil {
				log.WithError(err).WithField("device", id).Warn("mirror session failed")
			}
		}
	}
	host := NewForegroundSignals()
	mon := NewLifecycleMonitor(host, mgr)
	mgr.Start(ctx)
	mon.Start()
	r.cfg.Logger.WithField("device", id).Debug("device session opened")
	return &Device{ID: id, Provider: provider, Manager: mgr, Monitor: mon, Host: host}
}

// Sweep closes devices idle for longer than the configured TTL and returns
// how many were evicted.
func (r *DeviceRegistry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	var idle []*Device
	r.mu.Lock()
	for id, d := range r.devices {
		if d.LastSeen().Before(cutoff) {
			idle = append(idle, d)
			delete(r.devices, id)
		}
	}
	r.mu.Unlock()
	for _, d := range idle {
		r.shutdown(ctx, d)
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is done.
func (r *DeviceRegistry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(ctx); n > 0 {
				r.cfg.Logger.WithField("evicted", n).Info("idle devices evicted")
			}
		}
	}
}

func (r *DeviceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Close shuts every device down.
func (r *DeviceRegistry) Close(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		all = append(all, d)
	}
	r.devices = make(map[string]*Device)
	r.mu.Unlock()
	for _, d := range all {
		r.shutdown(ctx, d)
	}
}

func (r *DeviceRegistry) shutdown(ctx context.Context, d *Device) {
	d.Monitor.Stop()
	d.Manager.Stop()
	if err := d.Provider.Close(); err != nil {
		r.cfg.Logger.WithError(err).WithField("device", d.ID).Warn("close provider session failed")
	}
	if r.cfg.Mirror != nil {
		if err := r.cfg.Mirror.Delete(ctx, d.ID); err != nil {
			r.cfg.Logger.WithError(err).WithField("device", d.ID).Warn("drop mirrored session failed")
		}
	}
}
