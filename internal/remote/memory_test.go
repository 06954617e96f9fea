package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stamped(t time.Time, kv ...any) Document {
	d := Document{UpdatedAtField: t.Format(time.RFC3339Nano)}
	for i := 0; i+1 < len(kv); i += 2 {
		d[kv[i].(string)] = kv[i+1]
	}
	return d
}

var t0 = time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)

func TestMemoryStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := "accounts/a/habits/h1"

	require.NoError(t, m.Set(ctx, p, stamped(t0.Add(time.Minute), "title", "newer")))
	require.NoError(t, m.Set(ctx, p, stamped(t0, "title", "older")))

	got, err := m.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "newer", got["title"], "an older write arriving late must not win")

	require.NoError(t, m.Set(ctx, p, stamped(t0.Add(time.Minute), "title", "tie")))
	got, _ = m.Get(ctx, p)
	assert.Equal(t, "tie", got["title"])
}

func TestMemoryStore_GetMissing(t *testing.T) {
	got, err := NewMemoryStore().Get(context.Background(), "accounts/a/habits/none")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_DeleteTombstone(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := "accounts/a/habits/h1"

	require.NoError(t, m.Set(ctx, p, stamped(t0, "title", "x")))
	require.NoError(t, m.Batch(ctx, []Op{{Kind: OpDelete, Path: p, UpdatedAt: t0.Add(time.Hour)}}))

	got, _ := m.Get(ctx, p)
	assert.Nil(t, got)

	// A stale write must not resurrect the deleted document.
	require.NoError(t, m.Set(ctx, p, stamped(t0.Add(time.Minute), "title", "zombie")))
	got, _ = m.Get(ctx, p)
	assert.Nil(t, got)

	require.NoError(t, m.Set(ctx, p, stamped(t0.Add(2*time.Hour), "title", "recreated")))
	got, _ = m.Get(ctx, p)
	assert.Equal(t, "recreated", got["title"])
}

func TestMemoryStore_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := "accounts/a/gamification/state"

	require.NoError(t, m.Set(ctx, p, stamped(t0, "total_points", 10, "level", 1)))
	require.NoError(t, m.Update(ctx, p, stamped(t0.Add(time.Second), "total_points", 120)))

	got, _ := m.Get(ctx, p)
	assert.Equal(t, float64(120), got["total_points"])
	assert.Equal(t, float64(1), got["level"])
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.Batch(ctx, []Op{
		{Kind: OpSet, Path: "accounts/a/habits/h2", Doc: stamped(t0)},
		{Kind: OpSet, Path: "accounts/a/habits/h1", Doc: stamped(t0)},
		{Kind: OpSet, Path: "accounts/a/logs/h1_2026-01-07", Doc: stamped(t0)},
		{Kind: OpSet, Path: "accounts/b/habits/h9", Doc: stamped(t0)},
	}))
	require.NoError(t, m.Delete(ctx, "accounts/a/habits/h2"))

	got, err := m.List(ctx, "accounts/a/habits")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "accounts/a/habits/h1", got[0].Path)
}

func TestMemoryStore_IsolatesDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	doc := stamped(t0, "title", "a")

	require.NoError(t, m.Set(ctx, "accounts/a/habits/h", doc))
	doc["title"] = "mutated"

	got, _ := m.Get(ctx, "accounts/a/habits/h")
	assert.Equal(t, "a", got["title"])
}

func TestMemoryStore_Fault(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Fault = func(op, path string) error {
		if op == "batch" {
			return &Error{Kind: Transient, Op: op, Err: errors.New("network unavailable")}
		}
		return nil
	}

	err := m.Batch(ctx, []Op{{Kind: OpSet, Path: "accounts/a/habits/h", Doc: stamped(t0)}})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 1, m.Calls("batch"))

	got, _ := m.Get(ctx, "accounts/a/habits/h")
	assert.Nil(t, got, "a failed batch applies nothing")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Get(cctx, "x")
	assert.True(t, IsPermanent(err))
}
