// Package datastore wraps a remote document backend with a bounded
// retry-with-backoff policy and a connectivity signal.
package datastore

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// connection probe location; never holds business data
const (
	probeCollection = "_connectivity"
	probeID         = "probe"
)

// Store applies the retry policy to every backend call.
//
// Writes are at-least-once. When an attempt fails transiently after the
// backend already applied it, the retry applies it again: Set, Update and
// Delete are idempotent by key, but AddDocument can create a second document.
type Store struct {
	backend  repo.DocumentStore
	policy   RetryPolicy
	classify func(error) bool
	sleep    Sleeper
	conn     *Connectivity
	logger   *logrus.Logger
}

type Option func(*Store)

func WithRetryPolicy(p RetryPolicy) Option { return func(s *Store) { s.policy = p.normalized() } }
func WithClassifier(fn func(error) bool) Option {
	return func(s *Store) {
		if fn != nil {
			s.classify = fn
		}
	}
}
func WithSleeper(fn Sleeper) Option {
	return func(s *Store) {
		if fn != nil {
			s.sleep = fn
		}
	}
}
func WithConnectivity(c *Connectivity) Option {
	return func(s *Store) {
		if c != nil {
			s.conn = c
		}
	}
}
func WithLogger(l *logrus.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(backend repo.DocumentStore, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		policy:   DefaultRetryPolicy,
		classify: IsTransient,
		sleep:    SleepContext,
		conn:     &Connectivity{},
		logger:   helpers.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Offline reports whether the most recent attempt failed transiently.
func (s *Store) Offline() bool { return s.conn.Offline() }

func (s *Store) Connectivity() *Connectivity { return s.conn }

func (s *Store) GetDocument(ctx context.Context, collection, id string) (repo.Document, error) {
	if collection == "" || id == "" {
		return nil, invalidKey("get", collection, id)
	}
	return retry(ctx, s, "get", collection, id, func(ctx context.Context) (repo.Document, error) {
		return s.backend.Get(ctx, collection, id)
	})
}

func (s *Store) SetDocument(ctx context.Context, collection, id string, data repo.Document) error {
	if collection == "" || id == "" {
		return invalidKey("set", collection, id)
	}
	_, err := retry(ctx, s, "set", collection, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.Set(ctx, collection, id, data)
	})
	return err
}

func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields repo.Document) error {
	if collection == "" || id == "" {
		return invalidKey("update", collection, id)
	}
	_, err := retry(ctx, s, "update", collection, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.Update(ctx, collection, id, fields)
	})
	return err
}

func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	if collection == "" || id == "" {
		return invalidKey("delete", collection, id)
	}
	_, err := retry(ctx, s, "delete", collection, id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.Delete(ctx, collection, id)
	})
	return err
}

// GetCollection runs q against collection; the same query is sent on every attempt.
func (s *Store) GetCollection(ctx context.Context, collection string, q repo.Query) ([]repo.DocumentSnapshot, error) {
	if collection == "" {
		return nil, invalidKey("query", collection, "")
	}
	return retry(ctx, s, "query", collection, "", func(ctx context.Context) ([]repo.DocumentSnapshot, error) {
		return s.backend.Query(ctx, collection, q)
	})
}

func (s *Store) AddDocument(ctx context.Context, collection string, data repo.Document) (string, error) {
	if collection == "" {
		return "", invalidKey("add", collection, "")
	}
	return retry(ctx, s, "add", collection, "", func(ctx context.Context) (string, error) {
		return s.backend.Add(ctx, collection, data)
	})
}

// TestConnection reads a reserved probe document once, without retries, and
// reports whether the backend answered. Only the connectivity flag changes.
func (s *Store) TestConnection(ctx context.Context) bool {
	_, err := s.backend.Get(ctx, probeCollection, probeID)
	if err != nil && s.classify(err) {
		s.conn.set(true)
		s.logger.WithError(err).Warn("datastore connection probe failed")
		return false
	}
	s.conn.set(false)
	return true
}

func retry[T any](ctx context.Context, s *Store, op, collection, id string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := s.policy.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.policy.Delay(attempt-1)); err != nil {
				return zero, &StoreError{Op: op, Collection: collection, ID: id, Attempts: attempt - 1, Transient: true, Err: errors.Join(lastErr, err)}
			}
		}
		v, err := fn(ctx)
		if err == nil {
			s.conn.set(false)
			return v, nil
		}
		if !s.classify(err) {
			return zero, &StoreError{Op: op, Collection: collection, ID: id, Attempts: attempt, Err: err}
		}
		s.conn.set(true)
		lastErr = err
		s.logger.WithError(err).WithFields(logrus.Fields{
			"op":         op,
			"collection": collection,
			"id":         id,
			"attempt":    attempt,
			"max":        attempts,
		}).Warn("datastore transient failure")
	}
	return zero, &StoreError{Op: op, Collection: collection, ID: id, Attempts: attempts, Transient: true, Err: lastErr}
}

func invalidKey(op, collection, id string) error {
	return &StoreError{Op: op, Collection: collection, ID: id, Attempts: 0, Err: ErrInvalidKey}
}
