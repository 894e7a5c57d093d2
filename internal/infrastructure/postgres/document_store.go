package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

// DocumentStore keeps documents as jsonb rows in the documents table.
// Update merges top-level keys only.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (repo.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return decode(raw)
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, data repo.Document) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()
	`, collection, id, string(raw))
	return classify(err)
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields repo.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, string(raw))
	if err != nil {
		return classify(err)
	}
	if res.RowsAffected() == 0 {
		return repo.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return classify(err)
}

func (s *DocumentStore) Add(ctx context.Context, collection string, data repo.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *DocumentStore) Query(ctx context.Context, collection string, q repo.Query) ([]repo.DocumentSnapshot, error) {
	sql, args, err := buildQuery(collection, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []repo.DocumentSnapshot
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, classify(err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, repo.DocumentSnapshot{ID: id, Data: doc})
	}
	return out, classify(rows.Err())
}

var sqlOps = map[string]string{
	repo.OpEqual:        "=",
	repo.OpNotEqual:     "<>",
	repo.OpLess:         "<",
	repo.OpLessEqual:    "<=",
	repo.OpGreater:      ">",
	repo.OpGreaterEqual: ">=",
}

// buildQuery renders q as SQL over jsonb paths. Documents missing a filtered
// or ordered field never match, same as the in-memory backend.
func buildQuery(collection string, q repo.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString("SELECT id, data FROM documents WHERE collection = $1")
	for _, f := range q.Filters {
		path := arg(strings.Split(f.Field, "."))
		if f.Op == repo.OpIn {
			list, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", f.Field, err)
			}
			fmt.Fprintf(&b, " AND %s::jsonb @> jsonb_build_array(data #> %s::text[])", arg(string(list)), path)
			continue
		}
		op, ok := sqlOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		fmt.Fprintf(&b, " AND data #> %s::text[] %s %s::jsonb", path, op, arg(string(val)))
	}

	orders := make([]string, 0, len(q.OrderBy))
	for _, o := range q.OrderBy {
		path := arg(strings.Split(o.Field, "."))
		fmt.Fprintf(&b, " AND data #> %s::text[] IS NOT NULL", path)
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		orders = append(orders, fmt.Sprintf("data #> %s::text[] %s", path, dir))
	}
	b.WriteString(" ORDER BY ")
	for _, o := range orders {
		b.WriteString(o + ", ")
	}
	b.WriteString("id ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}
	return b.String(), args, nil
}

func decode(raw []byte) (repo.Document, error) {
	doc := repo.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

var _ repo.DocumentStore = (*DocumentStore)(nil)
