package datastore

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

// scriptedBackend fails with the queued errors before delegating to Memory.
type scriptedBackend struct {
	*Memory
	errs  []error
	calls int
}

func (b *scriptedBackend) next() error {
	b.calls++
	if len(b.errs) == 0 {
		return nil
	}
	err := b.errs[0]
	b.errs = b.errs[1:]
	return err
}

func (b *scriptedBackend) Get(ctx context.Context, c, id string) (repo.Document, error) {
	if err := b.next(); err != nil {
		return nil, err
	}
	return b.Memory.Get(ctx, c, id)
}

func (b *scriptedBackend) Set(ctx context.Context, c, id string, d repo.Document) error {
	if err := b.next(); err != nil {
		return err
	}
	return b.Memory.Set(ctx, c, id, d)
}

func (b *scriptedBackend) Query(ctx context.Context, c string, q repo.Query) ([]repo.DocumentSnapshot, error) {
	if err := b.next(); err != nil {
		return nil, err
	}
	return b.Memory.Query(ctx, c, q)
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func unavailable() error { return status.Error(codes.Unavailable, "backend unavailable") }

func newTestStore(b repo.DocumentStore, s *recordingSleeper) *Store {
	return NewStore(b, WithSleeper(s.sleep))
}

func TestRetryRecoversAfterTwoTransientFailures(t *testing.T) {
	backend := &scriptedBackend{Memory: NewMemory(), errs: []error{unavailable(), unavailable()}}
	_ = backend.Memory.Set(context.Background(), "users", "u1", repo.Document{"email": "a@x.com"})
	sleeper := &recordingSleeper{}
	store := newTestStore(backend, sleeper)

	doc, err := store.GetDocument(context.Background(), "users", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["email"] != "a@x.com" {
		t.Fatalf("email = %v, want a@x.com", doc["email"])
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v", i, sleeper.delays[i], want[i])
		}
	}
	if store.Offline() {
		t.Fatal("expected connectivity restored after success")
	}
	if backend.calls != 3 {
		t.Fatalf("calls = %d, want 3", backend.calls)
	}
}

func TestRetryGivesUpAfterThreeRetries(t *testing.T) {
	backend := &scriptedBackend{Memory: NewMemory(), errs: []error{unavailable(), unavailable(), unavailable(), unavailable()}}
	sleeper := &recordingSleeper{}
	store := newTestStore(backend, sleeper)

	err := store.SetDocument(context.Background(), "users", "u1", repo.Document{"email": "a@x.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected last backend error to be surfaced, got %v", err)
	}
	var total time.Duration
	for _, d := range sleeper.delays {
		total += d
	}
	if len(sleeper.delays) != 3 || total != 7*time.Second {
		t.Fatalf("delays = %v (total %v), want 1s,2s,4s", sleeper.delays, total)
	}
	if backend.calls != 4 {
		t.Fatalf("calls = %d, want 4", backend.calls)
	}
	if !store.Offline() {
		t.Fatal("expected offline after exhausted retries")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Attempts != 4 {
		t.Fatalf("expected StoreError with 4 attempts, got %#v", err)
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	denied := status.Error(codes.PermissionDenied, "denied")
	backend := &scriptedBackend{Memory: NewMemory(), errs: []error{denied}}
	sleeper := &recordingSleeper{}
	store := newTestStore(backend, sleeper)

	_, err := store.GetCollection(context.Background(), "users", repo.Query{})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if backend.calls != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("calls = %d delays = %v, want a single attempt", backend.calls, sleeper.delays)
	}
	if store.Offline() {
		t.Fatal("permanent failure must not flag connectivity")
	}
}

func TestGetMissingDocumentReturnsNil(t *testing.T) {
	store := NewStore(NewMemory())
	doc, err := store.GetDocument(context.Background(), "users", "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %v", doc)
	}
}

func TestEmptyKeyIsRejected(t *testing.T) {
	store := NewStore(NewMemory())
	if err := store.SetDocument(context.Background(), "users", "", repo.Document{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestBackoffStopsWhenContextIsDone(t *testing.T) {
	backend := &scriptedBackend{Memory: NewMemory(), errs: []error{unavailable(), unavailable()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore(backend)

	_, err := store.GetDocument(ctx, "users", "u1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("calls = %d, want 1", backend.calls)
	}
}

func TestTestConnectionOnlyTouchesFlag(t *testing.T) {
	backend := &scriptedBackend{Memory: NewMemory(), errs: []error{unavailable()}}
	store := NewStore(backend)

	if store.TestConnection(context.Background()) {
		t.Fatal("expected probe to fail")
	}
	if !store.Offline() {
		t.Fatal("expected offline after failed probe")
	}
	if !store.TestConnection(context.Background()) {
		t.Fatal("expected probe to succeed")
	}
	if store.Offline() {
		t.Fatal("expected online after probe")
	}
	snaps, _ := backend.Memory.Query(context.Background(), probeCollection, repo.Query{})
	if len(snaps) != 0 {
		t.Fatalf("probe must not write documents, found %d", len(snaps))
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "marked", err: MarkTransient(errors.New("reset")), want: true},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "x"), want: true},
		{name: "grpc deadline", err: status.Error(codes.DeadlineExceeded, "x"), want: true},
		{name: "grpc not found", err: status.Error(codes.NotFound, "x"), want: false},
		{name: "net error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 2}
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}
	for n, w := range want {
		if got := p.Delay(n); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
}
