package repository

import (
	"context"
	"errors"
)

// Document is a backend-neutral document body.
type Document = map[string]any

// DocumentSnapshot is a document together with its key.
type DocumentSnapshot struct {
	ID   string
	Data Document
}

// Comparison operators accepted in a Filter.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpIn           = "in"
)

// Filter constrains a single document field. Dotted field names address
// nested maps.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order sorts results on a field.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a collection read. The zero value returns every document.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field, op string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// DocumentStore is the contract of a remote document database.
// Get returns (nil, nil) when the document does not exist.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data Document) error
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]DocumentSnapshot, error)
	Add(ctx context.Context, collection string, data Document) (string, error)
}

var (
	// ErrDocumentNotFound is returned by Update when the target document is missing.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUnavailable matches store failures caused by the backend being unreachable.
	ErrUnavailable = errors.New("document store unavailable")
)
