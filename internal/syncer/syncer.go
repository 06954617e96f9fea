// Package syncer keeps the local state tree and the remote document store
// in step. Local mutations apply immediately; their remote writes run in
// the background with retries, and a full sync pulls the remote snapshot
// and merges it last-write-wins with whatever is still unsent.
package syncer

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/remote"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/storage"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrStaleSync      = errors.New("account changed during sync; snapshot discarded")
	ErrAccountChanged = errors.New("account changed before the write completed")
	ErrOffline        = errors.New("no remote store configured")
)

type Status int

const (
	Idle Status = iota
	Syncing
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Mutation is a local change to the state tree. Apply may run twice when
// it is submitted during a sync: once immediately and again on top of the
// merged snapshot, so it must be written against ids, not positions.
type Mutation struct {
	Name  string
	Apply func(*state.Tree) error
}

type Options struct {
	// Local holds sync bookkeeping between runs. Nil keeps it in memory.
	Local      storage.Provider
	Retry      RetryPolicy
	StaleAfter time.Duration
	// Recompute refreshes derived values on a freshly merged tree.
	Recompute func(*state.Tree)
	Now       func() time.Time
}

type dirtyEntry struct {
	Op  remote.Op `json:"op"`
	Seq uint64    `json:"-"`
}

type syncMeta struct {
	LastSyncedAt time.Time `json:"last_synced_at"`
}

type buffered struct {
	m       Mutation
	ops     []remote.Op
	pending *Pending
}

// Coordinator owns the write queue and sync lifecycle for the signed-in
// account.
type Coordinator struct {
	store  *state.Store
	remote remote.Store
	opts   Options

	mu         sync.Mutex
	account    string
	gen        uint64
	status     Status
	session    context.Context
	cancel     context.CancelFunc
	dirty      map[string]dirtyEntry
	seq        uint64
	buffer     []buffered
	inflight   map[*Pending]struct{}
	lastSynced time.Time
}

// New returns a coordinator over store. A nil rs runs offline: mutations
// apply locally and stay dirty until a remote is configured.
func New(store *state.Store, rs remote.Store, opts Options) *Coordinator {
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = constants.DefaultSyncStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:    store,
		remote:   rs,
		opts:     opts,
		dirty:    make(map[string]dirtyEntry),
		inflight: make(map[*Pending]struct{}),
	}
}

// Login loads the account, runs a full sync and re-sends whatever was left
// unsent by earlier sessions. A failed sync is returned but leaves the
// account loaded and usable offline.
func (c *Coordinator) Login(ctx context.Context, account string) error {
	if err := c.open(account); err != nil {
		return err
	}
	err := c.Sync(ctx)
	if errors.Is(err, ErrOffline) {
		err = nil
	}
	c.redispatch()
	return err
}

// Resume is Login for an account that is already signed in on this
// device: it only syncs when the last sync is stale.
func (c *Coordinator) Resume(ctx context.Context, account string) error {
	if err := c.open(account); err != nil {
		return err
	}
	err := c.Foreground(ctx)
	c.redispatch()
	return err
}

func (c *Coordinator) open(account string) error {
	if err := c.store.Init(account); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == account {
		return nil
	}

	c.account = account
	c.gen++
	c.status = Idle
	c.session, c.cancel = context.WithCancel(context.Background())
	c.dirty = make(map[string]dirtyEntry)
	c.lastSynced = time.Time{}
	c.loadBookkeeping()

	logger.Debug("Sync session opened", "account", account, "generation", c.gen, "dirty", len(c.dirty))
	return nil
}

// Logout cancels every in-flight sync and write, fails buffered mutations
// with ErrAccountChanged, and wipes the account's local state.
func (c *Coordinator) Logout() error {
	c.mu.Lock()
	account := c.account
	c.gen++
	c.account = ""
	c.status = Idle
	if c.cancel != nil {
		c.cancel()
	}
	for _, b := range c.buffer {
		b.pending.resolve(ErrAccountChanged)
	}
	c.buffer = nil
	for p := range c.inflight {
		p.resolve(ErrAccountChanged)
	}
	c.inflight = make(map[*Pending]struct{})
	c.dirty = make(map[string]dirtyEntry)
	c.mu.Unlock()

	if err := c.store.Teardown(); err != nil {
		return err
	}
	if account != "" {
		logger.Info("Logged out", "account", account)
	}
	return nil
}

// Status reports whether a full sync is running.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) LastSyncedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSynced
}

// Dirty returns the number of documents with unacknowledged writes.
func (c *Coordinator) Dirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Foreground syncs when the last successful sync is older than StaleAfter.
func (c *Coordinator) Foreground(ctx context.Context) error {
	c.mu.Lock()
	stale := c.opts.Now().Sub(c.lastSynced) >= c.opts.StaleAfter
	offline := c.remote == nil
	c.mu.Unlock()

	if !stale || offline {
		return nil
	}
	err := c.Sync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		return nil
	}
	return err
}

// Submit applies m locally and queues its remote write. The returned
// Pending resolves when the write lands or is given up on.
func (c *Coordinator) Submit(ctx context.Context, m Mutation) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == "" {
		return nil, state.ErrNoAccount
	}

	p := newPending()
	if err := c.submitLocked(m, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Coordinator) submitLocked(m Mutation, p *Pending) error {
	var ops []remote.Op
	err := c.store.Mutate(func(t *state.Tree) error {
		before, err := EncodeTree(t)
		if err != nil {
			return err
		}
		if err := m.Apply(t); err != nil {
			return err
		}
		after, err := EncodeTree(t)
		if err != nil {
			return err
		}
		ops = diff(before, after, c.opts.Now())
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Mutation applied", "mutation", m.Name, "writes", len(ops), "status", c.status)

	if c.status == Syncing {
		c.buffer = append(c.buffer, buffered{m: m, ops: ops, pending: p})
		return nil
	}
	c.dispatchLocked(ops, p)
	return nil
}

// dispatchLocked marks ops dirty and starts their remote write.
func (c *Coordinator) dispatchLocked(ops []remote.Op, p *Pending) {
	if len(ops) == 0 {
		p.resolve(nil)
		return
	}

	seqs := make(map[string]uint64, len(ops))
	for _, op := range ops {
		c.seq++
		seqs[op.Path] = c.seq
		c.dirty[op.Path] = dirtyEntry{Op: op, Seq: c.seq}
		c.persistDirty(op.Path)
	}

	if c.remote == nil {
		p.resolve(nil)
		return
	}

	c.inflight[p] = struct{}{}
	gen, ctx := c.gen, c.session
	go c.write(ctx, gen, ops, seqs, p)
}

func (c *Coordinator) write(ctx context.Context, gen uint64, ops []remote.Op, seqs map[string]uint64, p *Pending) {
	err := c.opts.Retry.do(ctx, "batch", func(ctx context.Context) error {
		return c.remote.Batch(ctx, ops)
	}, func(n int) { p.attempts.Store(int32(n)) })

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, p)

	if gen != c.gen {
		p.resolve(ErrAccountChanged)
		return
	}

	switch {
	case err == nil:
		for path, seq := range seqs {
			c.clearDirty(path, seq)
		}
	case errors.Is(err, ErrRetriesExhausted):
		logger.Warn("Remote write gave up; it will be retried next session", "writes", len(ops), "attempts", p.Attempts(), "error", err)
	case remote.IsPermanent(err):
		logger.Error("Remote write rejected", "writes", len(ops), "error", err)
		for path, seq := range seqs {
			c.clearDirty(path, seq)
		}
	default:
		logger.Warn("Remote write interrupted", "writes", len(ops), "error", err)
	}
	p.resolve(err)
}

// redispatch re-sends every dirty write that is not already in flight.
func (c *Coordinator) redispatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil || len(c.dirty) == 0 || c.account == "" {
		return
	}

	ops := make([]remote.Op, 0, len(c.dirty))
	for _, d := range c.dirty {
		ops = append(ops, d.Op)
	}
	sortOps(ops)
	logger.Debug("Re-sending unacknowledged writes", "writes", len(ops))

	p := newPending()
	c.dispatchLocked(ops, p)
}

// Flush waits for every in-flight write to finish or ctx to end.
func (c *Coordinator) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		pending := make([]*Pending, 0, len(c.inflight)+len(c.buffer))
		for p := range c.inflight {
			pending = append(pending, p)
		}
		for _, b := range c.buffer {
			pending = append(pending, b.pending)
		}
		c.mu.Unlock()

		if len(pending) == 0 {
			return nil
		}
		for _, p := range pending {
			select {
			case <-p.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Sync pulls the remote snapshot, merges it with unsent local writes and
// replaces the local tree with the result. Only one sync runs at a time.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.account == "" {
		c.mu.Unlock()
		return state.ErrNoAccount
	}
	if c.remote == nil {
		c.mu.Unlock()
		return ErrOffline
	}
	if c.status == Syncing {
		c.mu.Unlock()
		return ErrSyncInProgress
	}
	c.status = Syncing
	account, gen, session := c.account, c.gen, c.session
	c.mu.Unlock()

	pullCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	docs, pullErr := c.pull(pullCtx, account)
	stop()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return ErrStaleSync
	}
	c.status = Idle
	pending := c.buffer
	c.buffer = nil

	if pullErr != nil {
		for _, b := range pending {
			c.dispatchLocked(b.ops, b.pending)
		}
		return fmt.Errorf("failed to pull remote state: %w", pullErr)
	}

	if err := c.applySnapshotLocked(account, docs); err != nil {
		for _, b := range pending {
			c.dispatchLocked(b.ops, b.pending)
		}
		return err
	}

	for _, b := range pending {
		if err := c.submitLocked(b.m, b.pending); err != nil {
			logger.Warn("Buffered mutation no longer applies", "mutation", b.m.Name, "error", err)
			b.pending.resolve(err)
		}
	}

	c.lastSynced = c.opts.Now()
	c.persistMeta()
	logger.Debug("Sync complete", "account", account, "documents", len(docs), "replayed", len(pending), "dirty", len(c.dirty))
	return nil
}

func (c *Coordinator) applySnapshotLocked(account string, remoteDocs map[string]remote.Document) error {
	local, err := c.store.Snapshot()
	if err != nil {
		return err
	}
	localDocs, err := EncodeTree(local)
	if err != nil {
		return err
	}

	merged, superseded := merge(remoteDocs, localDocs, c.dirty)
	for _, path := range superseded {
		c.clearDirty(path, c.dirty[path].Seq)
	}

	tree := DecodeTree(account, merged)
	if c.opts.Recompute != nil {
		c.opts.Recompute(tree)
	}
	return c.store.Replace(tree)
}

func (c *Coordinator) pull(ctx context.Context, account string) (map[string]remote.Document, error) {
	docs := make(map[string]remote.Document)
	for _, collection := range state.Collections(account) {
		var entries []remote.Entry
		err := c.opts.Retry.do(ctx, "list "+collection, func(ctx context.Context) error {
			var err error
			entries, err = c.remote.List(ctx, collection)
			return err
		}, nil)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			docs[e.Path] = e.Doc
		}
	}
	return docs, nil
}

func dirtyKey(account, path string) string {
	return state.SyncPrefix(account) + "dirty/" + path
}

func metaKey(account string) string {
	return state.SyncPrefix(account) + "meta"
}

// clearDirty drops a dirty entry unless a newer write replaced it.
func (c *Coordinator) clearDirty(path string, seq uint64) {
	d, ok := c.dirty[path]
	if !ok || d.Seq != seq {
		return
	}
	delete(c.dirty, path)
	if c.opts.Local == nil {
		return
	}
	if err := c.opts.Local.Delete(dirtyKey(c.account, path)); err != nil {
		logger.Warn("Failed to clear sync bookkeeping", "path", path, "error", err)
	}
}

func (c *Coordinator) persistDirty(path string) {
	if c.opts.Local == nil {
		return
	}
	if err := storage.PutJSON(c.opts.Local, dirtyKey(c.account, path), c.dirty[path]); err != nil {
		logger.Warn("Failed to record pending write", "path", path, "error", err)
	}
}

func (c *Coordinator) persistMeta() {
	if c.opts.Local == nil {
		return
	}
	if err := storage.PutJSON(c.opts.Local, metaKey(c.account), syncMeta{LastSyncedAt: c.lastSynced}); err != nil {
		logger.Warn("Failed to record sync time", "error", err)
	}
}

func (c *Coordinator) loadBookkeeping() {
	if c.opts.Local == nil {
		return
	}

	var meta syncMeta
	if err := storage.GetJSON(c.opts.Local, metaKey(c.account), &meta); err == nil {
		c.lastSynced = meta.LastSyncedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Warn("Failed to read sync time", "error", err)
	}

	prefix := dirtyKey(c.account, "")
	entries, err := c.opts.Local.List(prefix)
	if err != nil {
		logger.Warn("Failed to read pending writes", "error", err)
		return
	}
	for key, raw := range entries {
		var d dirtyEntry
		if err := json.Unmarshal(raw, &d); err != nil {
			logger.Warn("Dropping unreadable pending write", "key", key, "error", err)
			continue
		}
		c.seq++
		d.Seq = c.seq
		c.dirty[strings.TrimPrefix(key, prefix)] = d
	}
}

func sortOps(ops []remote.Op) {
	slices.SortFunc(ops, func(a, b remote.Op) int { return cmp.Compare(a.Path, b.Path) })
}
