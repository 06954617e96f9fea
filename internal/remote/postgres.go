package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/migration"
	"github.com/julianstephens/habitat/migrations"
)

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

// PostgresStore keeps documents in a single JSONB table inside the habitat
// schema.
type PostgresStore struct {
	connStr string
	db      *sql.DB
}

func NewPostgresStore(connStr string) *PostgresStore {
	return &PostgresStore{connStr: withSearchPath(connStr)}
}

// withSearchPath pins the session to the habitat schema unless the
// connection string already chooses one.
func withSearchPath(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return connStr
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	if _, ok := dsnParam(connStr, "search_path"); !ok {
		return strings.TrimSpace(connStr) + " search_path=" + constants.AppName
	}
	return connStr
}

// dsnParam looks up a key in a space-separated key=value DSN.
func dsnParam(connStr, key string) (string, bool) {
	for _, part := range strings.Fields(connStr) {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return "", false
}

func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	_, ok := dsnParam(connStr, "sslmode")
	return ok
}

// ValidateDSN checks that connStr parses as a PostgreSQL URI or DSN and
// carries no inline password.
func ValidateDSN(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := u.User.Password(); isSet {
			return ErrEmbeddedCredentials
		}
		if u.Host == "" && u.User == nil && (u.Path == "" || u.Path == "/") {
			return fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
		return nil
	}

	if _, ok := dsnParam(connStr, "password"); ok {
		return ErrEmbeddedCredentials
	}
	return nil
}

// Open connects, creates the schema and applies pending migrations.
func (s *PostgresStore) Open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return Classify("connect", "", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(db, subFS, migration.Postgres)
	if _, err := runner.Apply(ctx, func(msg string) { logger.Debug(msg) }); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	upsertSQL = `
		INSERT INTO documents (path, parent, body, updated_at, deleted)
		VALUES ($1, $2, $3::jsonb, $4, FALSE)
		ON CONFLICT (path) DO UPDATE
		SET body = excluded.body, updated_at = excluded.updated_at, deleted = FALSE
		WHERE documents.updated_at <= excluded.updated_at`

	mergeSQL = `
		INSERT INTO documents (path, parent, body, updated_at, deleted)
		VALUES ($1, $2, $3::jsonb, $4, FALSE)
		ON CONFLICT (path) DO UPDATE
		SET body = CASE WHEN documents.deleted THEN excluded.body ELSE documents.body || excluded.body END,
		    updated_at = excluded.updated_at,
		    deleted = FALSE
		WHERE documents.updated_at <= excluded.updated_at`

	tombstoneSQL = `
		INSERT INTO documents (path, parent, body, updated_at, deleted)
		VALUES ($1, $2, '{}'::jsonb, $3, TRUE)
		ON CONFLICT (path) DO UPDATE
		SET body = '{}'::jsonb, updated_at = excluded.updated_at, deleted = TRUE
		WHERE documents.updated_at <= excluded.updated_at`
)

func writeOp(ctx context.Context, x execer, op Op) error {
	stamp := stampOrNow(op.Stamp())
	parent := Parent(op.Path)

	switch op.Kind {
	case OpDelete:
		_, err := x.ExecContext(ctx, tombstoneSQL, op.Path, parent, stamp)
		return err
	case OpSet, OpUpdate:
		body, err := json.Marshal(op.Doc)
		if err != nil {
			return &Error{Kind: Permanent, Op: op.Kind.String(), Path: op.Path, Err: err}
		}
		query := upsertSQL
		if op.Kind == OpUpdate {
			query = mergeSQL
		}
		_, err = x.ExecContext(ctx, query, op.Path, parent, string(body), stamp)
		return err
	default:
		return &Error{Kind: Permanent, Op: op.Kind.String(), Path: op.Path, Err: errors.New("unsupported op")}
	}
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE path = $1 AND NOT deleted`, path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Classify("get", path, err)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &Error{Kind: Permanent, Op: "get", Path: path, Err: err}
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, doc Document) error {
	return Classify("set", path, writeOp(ctx, s.db, Op{Kind: OpSet, Path: path, Doc: doc}))
}

func (s *PostgresStore) Update(ctx context.Context, path string, partial Document) error {
	return Classify("update", path, writeOp(ctx, s.db, Op{Kind: OpUpdate, Path: path, Doc: partial}))
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	return Classify("delete", path, writeOp(ctx, s.db, Op{Kind: OpDelete, Path: path}))
}

// Batch applies all ops in one transaction.
func (s *PostgresStore) Batch(ctx context.Context, ops []Op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("batch", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range ops {
		if err := writeOp(ctx, tx, op); err != nil {
			return Classify("batch", op.Path, err)
		}
	}
	return Classify("batch", "", tx.Commit())
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, body FROM documents WHERE parent = $1 AND NOT deleted ORDER BY path`, collection)
	if err != nil {
		return nil, Classify("list", collection, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			p    string
			body []byte
		)
		if err := rows.Scan(&p, &body); err != nil {
			return nil, Classify("list", collection, err)
		}
		var doc Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, &Error{Kind: Permanent, Op: "list", Path: p, Err: err}
		}
		out = append(out, Entry{Path: p, Doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("list", collection, err)
	}
	return out, nil
}
