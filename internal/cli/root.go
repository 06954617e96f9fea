package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/habitat/internal/config"
	"github.com/julianstephens/habitat/internal/constants"
	herrors "github.com/julianstephens/habitat/internal/errors"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/notifier"
	"github.com/julianstephens/habitat/internal/reminders"
	"github.com/julianstephens/habitat/internal/remote"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/storage"
	"github.com/julianstephens/habitat/internal/subscription"
	"github.com/julianstephens/habitat/internal/syncer"
	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/utils"
)

// sessionKey holds the signed-in account id. It lives outside the account
// prefix so tearing down an account's data does not touch it.
const sessionKey = "session/account"

var flushTimeout = constants.DefaultFlushTimeout

var ErrNotLoggedIn = errors.New("not logged in, run 'habitat login <account>' first")

type Context struct {
	ConfigPath string
	Config     *config.Config
	Location   *time.Location

	Local    storage.Provider
	Remote   remote.Store
	State    *state.Store
	Sync     *syncer.Coordinator
	Tracker  *tracker.Service
	Subs     *subscription.Service
	Notifier *notifier.Notifier

	remoteCloser io.Closer
	pending      []*syncer.Pending
	now          func() time.Time
}

// NewContext wires the services for one command invocation. rs may be nil,
// in which case every change stays local until a remote is configured.
func NewContext(configPath string, cfg *config.Config, local storage.Provider, rs remote.Store, now func() time.Time) (*Context, error) {
	if now == nil {
		now = time.Now
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	n := notifier.New()
	var sched reminders.Scheduler
	if cfg.Notifications.NotificationsEnabled() {
		sched = n
	}

	store := state.New(local)
	coord := syncer.New(store, rs, syncer.Options{
		Local: local,
		Retry: syncer.RetryPolicy{
			MaxAttempts: cfg.Sync.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Sync.BaseDelay),
			MaxDelay:    time.Duration(cfg.Sync.MaxDelay),
			Jitter:      cfg.Sync.Jitter,
		},
		StaleAfter: time.Duration(cfg.Sync.StaleAfter),
		Recompute:  tracker.Refresher(loc, now),
		Now:        now,
	})

	return &Context{
		ConfigPath: configPath,
		Config:     cfg,
		Location:   loc,
		Local:      local,
		Remote:     rs,
		State:      store,
		Sync:       coord,
		Tracker: tracker.New(store, coord, tracker.Options{
			Location:  loc,
			Scheduler: sched,
			Now:       now,
		}),
		Subs:     subscription.New(store, coord, now),
		Notifier: n,
		now:      now,
	}, nil
}

// OpenRemote connects the configured remote store. The returned closer is
// nil when there is nothing to close.
func OpenRemote(ctx context.Context, cfg *config.Config) (remote.Store, io.Closer, error) {
	switch cfg.Remote.Kind {
	case config.RemoteNone:
		return nil, nil, nil
	case config.RemoteMemory:
		logger.Debug("Using in-process remote store; synced data is discarded on exit")
		return remote.NewMemoryStore(), nil, nil
	case config.RemotePostgres:
		dsn, source, err := cfg.RemoteDSN()
		if err != nil {
			return nil, nil, err
		}
		if source == config.DSNFromFile {
			if err := remote.ValidateDSN(dsn); err != nil {
				return nil, nil, fmt.Errorf("remote.dsn in config: %w", err)
			}
		}

		openCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Remote.Timeout))
		defer cancel()
		s := remote.NewPostgresStore(dsn)
		if err := s.Open(openCtx); err != nil {
			return nil, nil, err
		}
		logger.Debug("Connected to remote store", "source", source)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote kind %q", cfg.Remote.Kind)
	}
}

// SetRemoteCloser registers the connection Close releases.
func (c *Context) SetRemoteCloser(cl io.Closer) {
	c.remoteCloser = cl
}

// Account returns the account signed in on this device.
func (c *Context) Account() (string, error) {
	b, err := c.Local.Get(sessionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	account := strings.TrimSpace(string(b))
	if account == "" {
		return "", ErrNotLoggedIn
	}
	return account, nil
}

// Resume loads the signed-in account and syncs if the last sync is stale.
// Sync failures only warn: every command works offline.
func (c *Context) Resume(ctx context.Context) error {
	account, err := c.Account()
	if err != nil {
		return err
	}
	if err := c.Sync.Resume(ctx, account); err != nil {
		if errors.Is(err, state.ErrAccountLoaded) {
			return err
		}
		logger.Warn("Background sync failed", "account", account, "error", err)
	}
	return nil
}

// track remembers a write so Close can report how it ended.
func (c *Context) track(p *syncer.Pending) {
	if p != nil {
		c.pending = append(c.pending, p)
	}
}

// Close waits a bounded time for queued remote writes, reports the ones
// that were rejected, and releases the stores.
func (c *Context) Close(w io.Writer) error {
	if len(c.pending) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := c.Sync.Flush(ctx); err != nil {
			logger.Warn("Unsent changes kept for the next sync", "error", err)
		}
		cancel()
		for _, p := range c.pending {
			if err := p.Err(); err != nil && !errors.Is(err, syncer.ErrRetriesExhausted) {
				fmt.Fprintln(w, herrors.Warning(err))
			}
		}
	}

	var errs []error
	if c.remoteCloser != nil {
		errs = append(errs, c.remoteCloser.Close())
	}
	errs = append(errs, c.Local.Close())
	return errors.Join(errs...)
}

// ConfigDir is the directory holding the config file, where logs are kept.
func ConfigDir(configPath string) (string, error) {
	p, err := utils.ExpandHome(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}
