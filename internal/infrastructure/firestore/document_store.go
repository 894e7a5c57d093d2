// Package firestore adapts Cloud Firestore to the document store contract.
package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
)

type DocumentStore struct {
	client *firestore.Client
}

// NewClient opens a Firestore client. With an empty credentials path,
// Application Default Credentials are used.
func NewClient(ctx context.Context, projectID, credentialsPath string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	return firestore.NewClient(ctx, projectID, opts...)
}

func NewDocumentStore(client *firestore.Client) *DocumentStore {
	return &DocumentStore{client: client}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (repo.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, classify(err)
	}
	return snap.Data(), nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, data repo.Document) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return classify(err)
}

// Update writes each key as a field path, so dotted keys reach nested fields.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields repo.Document) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return repo.ErrDocumentNotFound
	}
	return classify(err)
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return classify(err)
}

func (s *DocumentStore) Add(ctx context.Context, collection string, data repo.Document) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", classify(err)
	}
	return ref.ID, nil
}

func (s *DocumentStore) Query(ctx context.Context, collection string, q repo.Query) ([]repo.DocumentSnapshot, error) {
	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, f.Op, f.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(o.Field, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, classify(err)
	}
	out := make([]repo.DocumentSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, repo.DocumentSnapshot{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return out, nil
}

// classify marks the gRPC codes Firestore uses for retryable conditions.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return datastore.MarkTransient(err)
	}
	return err
}

var _ repo.DocumentStore = (*DocumentStore)(nil)
