package search

import (
	"context"
	"fmt"
)

// Op is the kind of field operation.
type Op int

const (
	// OpAdd appends a value to a field, creating the document if needed.
	OpAdd Op = iota + 1
	// OpRemove deletes one occurrence of a value from a field.
	OpRemove
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Operation is one pending change to an index document.
type Operation struct {
	Entity string
	Field  string
	Value  string
	Op     Op
}

// Document is the indexed projection of one entity: field name to values in
// insertion order.
type Document map[string][]string

// apply mutates d with op.
func (d Document) apply(op Operation) {
	switch op.Op {
	case OpAdd:
		d[op.Field] = append(d[op.Field], op.Value)
	case OpRemove:
		values := d[op.Field]
		for i, v := range values {
			if v == op.Value {
				d[op.Field] = append(values[:i:i], values[i+1:]...)
				break
			}
		}
		if len(d[op.Field]) == 0 {
			delete(d, op.Field)
		}
	}
}

// MaxLimit caps the number of hits a query can return.
const MaxLimit = 10000

// Query is a full-text lookup.
type Query struct {
	// Term is matched case-insensitively as a substring of field values.
	Term string
	// Field restricts matching to one field. Empty searches every field.
	Field string
	// Limit bounds the number of entities returned. Values outside
	// 1..MaxLimit are clamped.
	Limit int
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return 100
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Engine is a backing search engine.
type Engine interface {
	// Apply submits one batch. It returns only after the engine has
	// acknowledged every operation, or with an error.
	Apply(ctx context.Context, batch []Operation) error

	// Query returns matching entity identifiers, best match first.
	Query(ctx context.Context, q Query) ([]string, error)

	// Document returns the indexed fields of one entity.
	Document(ctx context.Context, entity string) (Document, bool, error)

	// Reset drops every document.
	Reset(ctx context.Context) error

	Close() error
}
