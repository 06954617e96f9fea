// Package backup snapshots the local store. The local store is the only
// copy of edits that have not reached the remote yet, so snapshots are
// taken before risky operations and periodically from the TUI.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
)

const timestampLayout = "20060102-150405"

var ErrNoSource = errors.New("local store does not exist")

// Info describes one snapshot on disk.
type Info struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	seq int // collision counter within one second
}

func (i Info) Name() string {
	return filepath.Base(i.Path)
}

// Manager creates, lists and restores snapshots of a single store file.
// Snapshots live in a backups directory next to the store and keep its
// extension, so SQLite and JSON stores are both covered.
type Manager struct {
	dataPath string
	dir      string
	suffix   string
	keep     int
	now      func() time.Time
}

func NewManager(dataPath string) *Manager {
	suffix := filepath.Ext(dataPath)
	if suffix == "" {
		suffix = ".db"
	}
	return &Manager{
		dataPath: dataPath,
		dir:      filepath.Join(filepath.Dir(dataPath), constants.BackupDirName),
		suffix:   suffix,
		keep:     constants.MaxBackups,
		now:      time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) isSQLite() bool {
	return m.suffix != ".json"
}

// Create snapshots the store and prunes snapshots beyond the retention
// limit.
func (m *Manager) Create(ctx context.Context) (Info, error) {
	return m.create(ctx, true)
}

// create skips pruning when called from Restore, which must never delete
// the snapshot it is about to restore.
func (m *Manager) create(ctx context.Context, prune bool) (Info, error) {
	if _, err := os.Stat(m.dataPath); errors.Is(err, os.ErrNotExist) {
		return Info{}, fmt.Errorf("%w: %s", ErrNoSource, m.dataPath)
	}
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return Info{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return Info{}, err
	}

	if m.isSQLite() {
		err = snapshotSQLite(ctx, m.dataPath, path)
	} else {
		err = copyFile(m.dataPath, path)
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to snapshot local store: %w", err)
	}

	if prune {
		if err := m.prune(); err != nil {
			logger.Warn("Failed to prune old backups", "error", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	logger.Info("Backup created", "path", path, "size", info.Size())
	return Info{Path: path, CreatedAt: m.now().Truncate(time.Second), Size: info.Size()}, nil
}

// nextPath picks an unused file name for the current second, adding a
// counter on collision.
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().Format(timestampLayout)
	path := filepath.Join(m.dir, constants.BackupFilePrefix+stamp+m.suffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if n > 100 {
			return "", errors.New("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", constants.BackupFilePrefix, stamp, n, m.suffix))
	}
}

// snapshotSQLite writes a consistent copy of an open database with
// VACUUM INTO, falling back to a plain copy.
func snapshotSQLite(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite", src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	if err := verifySQLite(ctx, db); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		logger.Debug("VACUUM INTO failed, copying file", "error", err)
		return copyFile(src, dst)
	}
	return nil
}

func verifySQLite(ctx context.Context, db *sql.DB) error {
	var count int
	return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

// parseName returns the creation time and collision counter encoded in a
// snapshot file name.
func (m *Manager) parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, m.suffix) {
		return time.Time{}, 0, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), m.suffix)
	if len(rest) < len(timestampLayout) {
		return time.Time{}, 0, false
	}
	stamp, counter := rest[:len(timestampLayout)], rest[len(timestampLayout):]
	seq := 0
	if counter != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(counter, "-"))
		if err != nil || n < 1 || counter[0] != '-' {
			return time.Time{}, 0, false
		}
		seq = n
	}
	t, err := time.ParseInLocation(timestampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, seq, true
}

// List returns snapshots newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		created, seq, ok := m.parseName(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(m.dir, entry.Name()),
			CreatedAt: created,
			Size:      fi.Size(),
			seq:       seq,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].seq > backups[j].seq
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func (m *Manager) prune() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Name(), err)
		}
	}
	return nil
}

// AutoBackup snapshots the store unless the newest snapshot is younger
// than minAge. It reports whether a snapshot was taken.
func (m *Manager) AutoBackup(ctx context.Context, minAge time.Duration) (Info, bool, error) {
	backups, err := m.List()
	if err != nil {
		return Info{}, false, err
	}
	if len(backups) > 0 && m.now().Sub(backups[0].CreatedAt) < minAge {
		return backups[0], false, nil
	}
	info, err := m.Create(ctx)
	if err != nil {
		return Info{}, false, err
	}
	return info, true, nil
}

// Resolve accepts an absolute path, a path relative to the working
// directory, or a file name inside the backup directory.
func (m *Manager) Resolve(ref string) (string, error) {
	candidates := []string{ref}
	if !filepath.IsAbs(ref) {
		candidates = append([]string{filepath.Join(m.dir, ref)}, candidates...)
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("backup file not found: %s", ref)
}

// Restore replaces the store with the snapshot at path. The store must be
// closed. The current store is snapshotted first; its Info is returned
// when one was taken.
func (m *Manager) Restore(ctx context.Context, path string) (*Info, error) {
	if err := m.verify(ctx, path); err != nil {
		return nil, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var safety *Info
	if _, err := os.Stat(m.dataPath); err == nil {
		info, err := m.create(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("failed to back up current store before restore: %w", err)
		}
		safety = &info
	}

	tempPath := m.dataPath + ".restore.tmp"
	if err := copyFile(path, tempPath); err != nil {
		return nil, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tempPath, m.dataPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			logger.Warn("Failed to remove temporary restore file", "path", tempPath, "error", removeErr)
		}
		return nil, fmt.Errorf("failed to restore local store: %w", err)
	}

	logger.Info("Local store restored", "from", path)
	return safety, nil
}

func (m *Manager) verify(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if !m.isSQLite() {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !json.Valid(b) {
			return errors.New("not a JSON document")
		}
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	return verifySQLite(ctx, db)
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := destFile.ReadFrom(sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
