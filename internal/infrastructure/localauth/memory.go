package localauth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

// MemoryAccounts keeps accounts in process. It backs DOCUMENT_STORE=memory
// runs, where nothing survives a restart.
type MemoryAccounts struct {
	mu   sync.Mutex
	byID map[string]*entity.Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byID: make(map[string]*entity.Account)}
}

func (m *MemoryAccounts) Create(_ context.Context, a *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = entity.NormalizeEmail(a.Email)
	for _, x := range m.byID {
		if x.Email == a.Email {
			return repo.ErrAccountExists
		}
	}
	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt, a.UpdatedAt = now, now
	c := *a
	m.byID[a.ID] = &c
	return nil
}

func (m *MemoryAccounts) GetByID(_ context.Context, id string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repo.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (m *MemoryAccounts) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, repo.ErrAccountNotFound
}

func (m *MemoryAccounts) Update(_ context.Context, a *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		return repo.ErrAccountNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	c := *a
	m.byID[a.ID] = &c
	return nil
}

func (m *MemoryAccounts) SetVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repo.ErrAccountNotFound
	}
	a.EmailVerified = true
	a.UpdatedAt = time.Now().UTC()
	return nil
}

type memEntry struct {
	value   string
	count   int64
	expires time.Time
}

// MemoryKV is the in-process KeyValue with the same expiry rules as RedisKV.
type MemoryKV struct {
	mu   sync.Mutex
	vals map[string]memEntry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{vals: make(map[string]memEntry), now: time.Now}
}

// get drops key if it expired. Callers hold mu.
func (k *MemoryKV) get(key string) (memEntry, bool) {
	e, ok := k.vals[key]
	if ok && !e.expires.IsZero() && !k.now().Before(e.expires) {
		delete(k.vals, key)
		return memEntry{}, false
	}
	return e, ok
}

func (k *MemoryKV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return k.now().Add(ttl)
}

func (k *MemoryKV) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.get(key)
	if !ok {
		e = memEntry{expires: k.expiry(window)}
	}
	e.count++
	k.vals[key] = e
	return e.count, nil
}

func (k *MemoryKV) Reset(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.vals, key)
	return nil
}

func (k *MemoryKV) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.get(key); ok {
		return false, nil
	}
	k.vals[key] = memEntry{value: "1", expires: k.expiry(ttl)}
	return true, nil
}

func (k *MemoryKV) Put(_ context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.vals[key] = memEntry{value: value, expires: k.expiry(ttl)}
	return nil
}

func (k *MemoryKV) Take(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.get(key)
	if !ok {
		return "", nil
	}
	delete(k.vals, key)
	return e.value, nil
}

var (
	_ repo.AccountRepository = (*MemoryAccounts)(nil)
	_ KeyValue               = (*MemoryKV)(nil)
	_ KeyValue               = (*RedisKV)(nil)
)
