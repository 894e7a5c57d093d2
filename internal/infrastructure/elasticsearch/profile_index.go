// Package elasticsearch mirrors profiles into a search index for the admin
// lookup screen.
package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

const requestTimeout = 3 * time.Second

// ProfileHit is one search result.
type ProfileHit struct {
	UID           string      `json:"uid"`
	Email         string      `json:"email"`
	DisplayName   string      `json:"display_name"`
	Role          entity.Role `json:"role"`
	EmailVerified bool        `json:"email_verified"`
	CreatedAt     string      `json:"created_at,omitempty"`
}

// ProfileIndex writes and searches the profiles index. A nil client or an
// empty index name turns every call into a no-op.
type ProfileIndex struct {
	client *es.Client
	index  string
	logger *logrus.Logger
}

func NewProfileIndex(client *es.Client, index string, logger *logrus.Logger) *ProfileIndex {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &ProfileIndex{client: client, index: index, logger: logger}
}

func (x *ProfileIndex) enabled() bool { return x != nil && x.client != nil && x.index != "" }

// IndexProfile upserts p under its uid.
func (x *ProfileIndex) IndexProfile(ctx context.Context, p *entity.Profile) error {
	if !x.enabled() || p == nil {
		return nil
	}
	b, err := json.Marshal(profileDoc(p))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: p.UID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.client)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index profile %s: %s", p.UID, res.Status())
	}
	return nil
}

// Search runs a multi_match over email and display name.
func (x *ProfileIndex) Search(ctx context.Context, q string, size int) ([]ProfileHit, error) {
	if !x.enabled() {
		return []ProfileHit{}, nil
	}
	b, err := json.Marshal(searchBody(q, size))
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.client.Search(
		x.client.Search.WithContext(c),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		x.logger.WithField("status", res.Status()).Warn("profile search response error")
		return nil, fmt.Errorf("search profiles: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Source ProfileHit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]ProfileHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hit := h.Source
		if hit.UID == "" {
			hit.UID = h.ID
		}
		out = append(out, hit)
	}
	return out, nil
}

func profileDoc(p *entity.Profile) ProfileHit {
	return ProfileHit{
		UID:           p.UID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
		CreatedAt:     p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func searchBody(q string, size int) map[string]any {
	if size <= 0 || size > 50 {
		size = 10
	}
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "display_name"},
			},
		},
		"size": size,
	}
}
