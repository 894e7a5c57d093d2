package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

func newTestIndex(t *testing.T, h http.HandlerFunc) *ProfileIndex {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewProfileIndex(client, "profiles", nil)
}

func TestIndexProfileWritesDocument(t *testing.T) {
	var gotPath string
	var got ProfileHit
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	p := &entity.Profile{
		UID:         "u1",
		Email:       "a@shop.test",
		DisplayName: "Ann",
		Role:        entity.RoleAdmin,
		CreatedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := x.IndexProfile(context.Background(), p); err != nil {
		t.Fatalf("IndexProfile: %v", err)
	}
	if gotPath != "/profiles/_doc/u1" {
		t.Fatalf("path = %s", gotPath)
	}
	if got.Email != "a@shop.test" || got.Role != entity.RoleAdmin || got.CreatedAt != "2024-05-01T00:00:00Z" {
		t.Fatalf("indexed = %+v", got)
	}
}

func TestSearchDecodesHits(t *testing.T) {
	var query string
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query = string(body)
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"u1","_source":{"uid":"u1","email":"a@shop.test","role":"admin"}},
			{"_id":"u2","_source":{"email":"b@shop.test","role":"customer"}}
		]}}`))
	})

	hits, err := x.Search(context.Background(), "shop", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[1].UID != "u2" || hits[0].Role != entity.RoleAdmin {
		t.Fatalf("hits = %+v", hits)
	}
	if !strings.Contains(query, `"size":10`) || !strings.Contains(query, `"query":"shop"`) {
		t.Fatalf("query body = %s", query)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	x := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := x.Search(context.Background(), "a", 5); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestDisabledIndexIsNoop(t *testing.T) {
	x := NewProfileIndex(nil, "profiles", nil)
	if err := x.IndexProfile(context.Background(), &entity.Profile{UID: "u1"}); err != nil {
		t.Fatalf("IndexProfile: %v", err)
	}
	hits, err := x.Search(context.Background(), "a", 5)
	if err != nil || len(hits) != 0 {
		t.Fatalf("hits = %v err = %v", hits, err)
	}
}
