package datastore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

// Memory is an in-process DocumentStore used for local development and tests.
// Query semantics follow the hosted store: documents missing a filtered or
// ordered field are excluded.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]repo.Document
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]repo.Document)}
}

func (m *Memory) Get(_ context.Context, collection, id string) (repo.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data repo.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.col(collection)[id] = copyDoc(data)
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields repo.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.data[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, repo.ErrDocumentNotFound)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

func (m *Memory) Add(_ context.Context, collection string, data repo.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.col(collection)[id] = copyDoc(data)
	return id, nil
}

func (m *Memory) Query(_ context.Context, collection string, q repo.Query) ([]repo.DocumentSnapshot, error) {
	for _, f := range q.Filters {
		if !knownOp(f.Op) {
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	m.mu.RLock()
	out := make([]repo.DocumentSnapshot, 0, len(m.data[collection]))
	for id, doc := range m.data[collection] {
		if matchesAll(doc, q.Filters) && hasFields(doc, q.OrderBy) {
			out = append(out, repo.DocumentSnapshot{ID: id, Data: copyDoc(doc)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, _ := lookup(out[i].Data, o.Field)
				b, _ := lookup(out[j].Data, o.Field)
				c, ok := compare(a, b)
				if !ok || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) col(name string) map[string]repo.Document {
	c, ok := m.data[name]
	if !ok {
		c = make(map[string]repo.Document)
		m.data[name] = c
	}
	return c
}

func copyDoc(doc repo.Document) repo.Document {
	out := make(repo.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func knownOp(op string) bool {
	switch op {
	case repo.OpEqual, repo.OpNotEqual, repo.OpLess, repo.OpLessEqual, repo.OpGreater, repo.OpGreaterEqual, repo.OpIn:
		return true
	}
	return false
}

func lookup(doc repo.Document, field string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func hasFields(doc repo.Document, orders []repo.Order) bool {
	for _, o := range orders {
		if _, ok := lookup(doc, o.Field); !ok {
			return false
		}
	}
	return true
}

func matchesAll(doc repo.Document, filters []repo.Filter) bool {
	for _, f := range filters {
		v, ok := lookup(doc, f.Field)
		if !ok || !matches(v, f) {
			return false
		}
	}
	return true
}

func matches(v any, f repo.Filter) bool {
	if f.Op == repo.OpIn {
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if equal(v, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	switch f.Op {
	case repo.OpEqual:
		return equal(v, f.Value)
	case repo.OpNotEqual:
		return !equal(v, f.Value)
	}
	c, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case repo.OpLess:
		return c < 0
	case repo.OpLessEqual:
		return c <= 0
	case repo.OpGreater:
		return c > 0
	case repo.OpGreaterEqual:
		return c >= 0
	}
	return false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalar values of the same family.
func compare(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if ra, rb := reflect.ValueOf(a), reflect.ValueOf(b); ra.Kind() == reflect.String {
		if rb.Kind() != reflect.String {
			return 0, false
		}
		return strings.Compare(ra.String(), rb.String()), true
	}
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

var _ repo.DocumentStore = (*Memory)(nil)
