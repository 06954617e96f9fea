// Package remote is the client side of the per-account document store that
// devices sync through. Documents live at slash-separated paths such as
// accounts/{account}/habits/{id}; writes are resolved last-write-wins on the
// document's updated_at field.
package remote

import (
	"context"
	"encoding/json"
	"path"
	"time"
)

// UpdatedAtField is the document field used for last-write-wins ordering.
const UpdatedAtField = "updated_at"

// Document is a JSON-shaped document body.
type Document map[string]any

// UpdatedAt parses the document's LWW timestamp, zero when absent or
// malformed.
func (d Document) UpdatedAt() time.Time {
	s, ok := d[UpdatedAtField].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone deep-copies the document through its JSON form, which is also what
// a round trip through a real store does to it.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		panic("remote: document is not JSON-encodable: " + err.Error())
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		panic("remote: " + err.Error())
	}
	return out
}

type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one write in a batch. Doc is ignored for deletes; UpdatedAt orders
// deletes against other writes and falls back to the document's own field.
type Op struct {
	Kind      OpKind
	Path      string
	Doc       Document
	UpdatedAt time.Time
}

// Stamp returns the op's LWW timestamp.
func (o Op) Stamp() time.Time {
	if !o.UpdatedAt.IsZero() {
		return o.UpdatedAt
	}
	return o.Doc.UpdatedAt()
}

// Entry is a document returned by List.
type Entry struct {
	Path string
	Doc  Document
}

// Store is the remote document store. Every method may fail with a *Error
// whose kind tells the caller whether retrying can help.
type Store interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	// Update shallow-merges partial into the stored document, creating it
	// when absent.
	Update(ctx context.Context, path string, partial Document) error
	Delete(ctx context.Context, path string) error
	Batch(ctx context.Context, ops []Op) error
	// List returns the live documents directly under collection.
	List(ctx context.Context, collection string) ([]Entry, error)
}

// Parent is the collection a document path belongs to.
func Parent(p string) string {
	return path.Dir(p)
}

func stampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
