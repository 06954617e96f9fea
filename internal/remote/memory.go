package remote

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	doc       Document
	updatedAt time.Time
	deleted   bool
}

// MemoryStore is an in-process Store with the same last-write-wins and
// tombstone semantics as PostgresStore. Fault, when set, runs before every
// call and can fail it, which is how tests simulate outages.
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]memoryEntry
	calls map[string]int

	Fault func(op, path string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]memoryEntry),
		calls: make(map[string]int),
	}
}

// Calls reports how many times op ("get", "set", "batch", ...) was invoked,
// failed attempts included.
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MemoryStore) enter(ctx context.Context, op, path string) error {
	m.mu.Lock()
	m.calls[op]++
	fault := m.Fault
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Classify(op, path, err)
	}
	if fault != nil {
		if err := fault(op, path); err != nil {
			return Classify(op, path, err)
		}
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := m.enter(ctx, "get", path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.docs[path]
	if !ok || e.deleted {
		return nil, nil
	}
	return e.doc.Clone(), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, doc Document) error {
	if err := m.enter(ctx, "set", path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(Op{Kind: OpSet, Path: path, Doc: doc})
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, partial Document) error {
	if err := m.enter(ctx, "update", path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(Op{Kind: OpUpdate, Path: path, Doc: partial})
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := m.enter(ctx, "delete", path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(Op{Kind: OpDelete, Path: path})
	return nil
}

// Batch applies every op or, when the fault hook fails it, none.
func (m *MemoryStore) Batch(ctx context.Context, ops []Op) error {
	if err := m.enter(ctx, "batch", ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		m.apply(op)
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Entry, error) {
	if err := m.enter(ctx, "list", collection); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, p := range slices.Sorted(maps.Keys(m.docs)) {
		e := m.docs[p]
		if e.deleted || Parent(p) != collection {
			continue
		}
		out = append(out, Entry{Path: p, Doc: e.doc.Clone()})
	}
	return out, nil
}

// apply writes op unless the stored version is newer. Equal stamps let the
// later arrival win. Callers hold m.mu.
func (m *MemoryStore) apply(op Op) {
	stamp := stampOrNow(op.Stamp())
	cur, exists := m.docs[op.Path]
	if exists && cur.updatedAt.After(stamp) {
		return
	}

	switch op.Kind {
	case OpSet:
		m.docs[op.Path] = memoryEntry{doc: op.Doc.Clone(), updatedAt: stamp}
	case OpUpdate:
		merged := Document{}
		if exists && !cur.deleted {
			merged = cur.doc.Clone()
		}
		for k, v := range op.Doc.Clone() {
			merged[k] = v
		}
		m.docs[op.Path] = memoryEntry{doc: merged, updatedAt: stamp}
	case OpDelete:
		m.docs[op.Path] = memoryEntry{updatedAt: stamp, deleted: true}
	}
}
