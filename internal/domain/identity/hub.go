package identity

import (
	"context"
	"sync"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

const allListeners = -1

type sessionChange struct {
	ctx    context.Context
	id     *entity.Identity
	target int
}

// Hub tracks a device's signed-in identity and fans changes out to listeners.
// Notifications run on one dispatcher goroutine so listeners observe changes in
// the order they happened, without running inside the caller's provider call.
type Hub struct {
	mu        sync.Mutex
	current   *entity.Identity
	listeners map[int]SessionListener
	nextID    int

	queue     chan sessionChange
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func NewHub() *Hub {
	h := &Hub{
		listeners: make(map[int]SessionListener),
		queue:     make(chan sessionChange, 64),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go h.dispatch()
	return h
}

// Current returns a copy of the signed-in identity, or nil.
func (h *Hub) Current() *entity.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone()
}

// SetCurrent records a new signed-in identity (nil for signed out) and
// notifies every listener.
func (h *Hub) SetCurrent(ctx context.Context, id *entity.Identity) {
	h.mu.Lock()
	h.current = id.Clone()
	h.mu.Unlock()
	h.enqueue(sessionChange{ctx: ctx, id: id.Clone(), target: allListeners})
}

// Refresh replaces the stored identity after a reload without notifying
// listeners. It is a no-op unless id is the signed-in principal.
func (h *Hub) Refresh(id *entity.Identity) {
	if id == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil && h.current.UID == id.UID {
		h.current = id.Clone()
	}
}

// Subscribe registers fn and immediately queues the current identity for it.
func (h *Hub) Subscribe(ctx context.Context, fn SessionListener) func() {
	h.mu.Lock()
	key := h.nextID
	h.nextID++
	h.listeners[key] = fn
	current := h.current.Clone()
	h.mu.Unlock()

	h.enqueue(sessionChange{ctx: ctx, id: current, target: key})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, key)
			h.mu.Unlock()
		})
	}
}

// Close stops the dispatcher. Pending notifications are dropped.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		<-h.stopped
	})
}

func (h *Hub) enqueue(c sessionChange) {
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	// listeners outlive the request that caused the change
	c.ctx = context.WithoutCancel(c.ctx)
	select {
	case h.queue <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			return
		case c := <-h.queue:
			for _, fn := range h.snapshot(c.target) {
				fn(c.ctx, c.id.Clone())
			}
		}
	}
}

func (h *Hub) snapshot(target int) []SessionListener {
	h.mu.Lock()
	defer h.mu.Unlock()
	if target != allListeners {
		if fn, ok := h.listeners[target]; ok {
			return []SessionListener{fn}
		}
		return nil
	}
	out := make([]SessionListener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		out = append(out, fn)
	}
	return out
}
