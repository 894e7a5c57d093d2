package datastore

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileIndexer mirrors profiles into a search index.
type ProfileIndexer interface {
	IndexProfile(ctx context.Context, p *entity.Profile) error
}

// ProfileRepository stores profiles as documents through the resilient Store.
type ProfileRepository struct {
	store      *Store
	collection string
	indexer    ProfileIndexer
	logger     *logrus.Logger
}

func NewProfileRepository(store *Store, collection string, indexer ProfileIndexer, logger *logrus.Logger) *ProfileRepository {
	if collection == "" {
		collection = "users"
	}
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &ProfileRepository{store: store, collection: collection, indexer: indexer, logger: logger}
}

func (r *ProfileRepository) Get(ctx context.Context, uid string) (*entity.Profile, error) {
	doc, err := r.store.GetDocument(ctx, r.collection, uid)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return entity.ProfileFromDocument(uid, doc), nil
}

func (r *ProfileRepository) Create(ctx context.Context, p *entity.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if !p.Role.Valid() {
		p.Role = entity.DefaultRole
	}
	if err := r.store.SetDocument(ctx, r.collection, p.UID, p.ToDocument()); err != nil {
		return err
	}
	r.index(ctx, p)
	return nil
}

func (r *ProfileRepository) MarkVerified(ctx context.Context, uid string, at time.Time) (bool, error) {
	p, err := r.Get(ctx, uid)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, ErrProfileNotFound
	}
	if p.EmailVerified {
		return false, nil
	}
	at = at.UTC()
	err = r.store.UpdateDocument(ctx, r.collection, uid, repo.Document{
		entity.FieldEmailVerified: true,
		entity.FieldVerifiedAt:    at,
		entity.FieldUpdatedAt:     at,
	})
	if err != nil {
		return false, err
	}
	p.EmailVerified = true
	p.VerifiedAt = &at
	p.UpdatedAt = at
	r.index(ctx, p)
	return true, nil
}

func (r *ProfileRepository) MarkVerificationSent(ctx context.Context, uid string, at time.Time) error {
	at = at.UTC()
	return r.store.UpdateDocument(ctx, r.collection, uid, repo.Document{
		entity.FieldVerificationEmailSent:   true,
		entity.FieldVerificationEmailSentAt: at,
		entity.FieldUpdatedAt:               at,
	})
}

func (r *ProfileRepository) List(ctx context.Context, f repo.ProfileFilter) ([]*entity.Profile, error) {
	q := repo.Query{OrderBy: []repo.Order{{Field: entity.FieldCreatedAt, Desc: true}}, Limit: f.Limit}
	if f.Role != "" {
		q = q.Where(entity.FieldRole, repo.OpEqual, string(f.Role))
	}
	if f.Verified != nil {
		q = q.Where(entity.FieldEmailVerified, repo.OpEqual, *f.Verified)
	}
	snaps, err := r.store.GetCollection(ctx, r.collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Profile, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, entity.ProfileFromDocument(s.ID, s.Data))
	}
	return out, nil
}

func (r *ProfileRepository) index(ctx context.Context, p *entity.Profile) {
	if r.indexer == nil {
		return
	}
	if err := r.indexer.IndexProfile(ctx, p); err != nil {
		r.logger.WithError(err).WithField("uid", p.UID).Warn("profile index failed")
	}
}

var _ repo.ProfileRepository = (*ProfileRepository)(nil)
