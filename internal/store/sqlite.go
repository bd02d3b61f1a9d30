// ABOUTME: SQLite implementation of the Store interface (modernc.org/sqlite or mattn/go-sqlite3)
// ABOUTME: Provides identity, workspace, and ACL persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGo     = "sqlite3" // github.com/mattn/go-sqlite3
)

// busyTimeoutMS bounds how long a writer waits for BEGIN IMMEDIATE.
const busyTimeoutMS = 5000

// timestampLayout is fixed-width so stored values compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// querier is satisfied by *sql.Conn and *sql.DB.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx is the Tx handed to View and Update callbacks.
type sqliteTx struct {
	q      querier
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path using the
// pure-Go driver. The schema is automatically created if it doesn't exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return OpenSQLite(DriverModernc, path)
}

// OpenSQLite opens a store with the named driver ("sqlite" or "sqlite3").
// Parent directories are created if needed.
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// buildDSN applies WAL, foreign keys, and busy timeout to every pooled
// connection. A PRAGMA run through db.Exec only reaches one of them.
func buildDSN(driver, path string) (string, error) {
	switch driver {
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
			path, busyTimeoutMS), nil
	case DriverCGo:
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=1&_busy_timeout=%d",
			path, busyTimeoutMS), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id    TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (status IN ('active', 'suspended'))
		);

		CREATE TABLE IF NOT EXISTS identities (
			identity_id          TEXT PRIMARY KEY,
			persistent_user_id   TEXT REFERENCES users(user_id),
			channel              TEXT NOT NULL,
			thread_id            TEXT NOT NULL UNIQUE,
			verification_status  TEXT NOT NULL,
			verification_method  TEXT,
			verification_contact TEXT,
			code_hash            TEXT,
			code_expires_at      TEXT,
			created_at           TEXT NOT NULL,
			merged_at            TEXT,

			CHECK (verification_status IN ('anonymous', 'pending', 'verified')),
			CHECK ((persistent_user_id IS NULL) = (merged_at IS NULL))
		);

		CREATE INDEX IF NOT EXISTS idx_identities_user ON identities(persistent_user_id);

		CREATE TABLE IF NOT EXISTS team_groups (
			group_id   TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id   TEXT NOT NULL REFERENCES team_groups(group_id),
			user_id    TEXT NOT NULL REFERENCES users(user_id),
			role       TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (group_id, user_id),
			CHECK (role IN ('admin', 'member'))
		);

		CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);

		CREATE TABLE IF NOT EXISTS workspaces (
			workspace_id    TEXT PRIMARY KEY,
			type            TEXT NOT NULL,
			name            TEXT NOT NULL,
			owner_user_id   TEXT REFERENCES users(user_id),
			owner_group_id  TEXT REFERENCES team_groups(group_id),
			owner_system_id TEXT,
			created_at      TEXT NOT NULL,

			CHECK (type IN ('individual', 'group', 'public')),
			CHECK ((owner_user_id IS NOT NULL) + (owner_group_id IS NOT NULL) + (owner_system_id IS NOT NULL) = 1),
			CHECK (type != 'individual' OR owner_user_id IS NOT NULL),
			CHECK (type != 'group' OR owner_group_id IS NOT NULL),
			CHECK (type != 'public' OR owner_system_id = 'public')
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_individual
			ON workspaces(owner_user_id) WHERE type = 'individual';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_public
			ON workspaces(type) WHERE type = 'public';
		CREATE INDEX IF NOT EXISTS idx_workspaces_group ON workspaces(owner_group_id);

		CREATE TABLE IF NOT EXISTS workspace_members (
			workspace_id TEXT NOT NULL REFERENCES workspaces(workspace_id),
			user_id      TEXT NOT NULL REFERENCES users(user_id),
			role         TEXT NOT NULL,
			granted_by   TEXT NOT NULL,
			granted_at   TEXT NOT NULL,

			PRIMARY KEY (workspace_id, user_id),
			CHECK (role IN ('admin', 'editor', 'reader'))
		);

		CREATE INDEX IF NOT EXISTS idx_workspace_members_user ON workspace_members(user_id);

		CREATE TABLE IF NOT EXISTS acl_grants (
			grant_id        TEXT PRIMARY KEY,
			workspace_id    TEXT NOT NULL REFERENCES workspaces(workspace_id),
			resource_type   TEXT NOT NULL,
			resource_id     TEXT NOT NULL,
			target_user_id  TEXT REFERENCES users(user_id),
			target_group_id TEXT REFERENCES team_groups(group_id),
			permission      TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			expires_at      TEXT,

			CHECK (permission IN ('read', 'write')),
			CHECK ((target_user_id IS NULL) != (target_group_id IS NULL))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_acl_grants_tuple ON acl_grants(
			workspace_id, resource_type, resource_id,
			COALESCE(target_user_id, ''), COALESCE(target_group_id, '')
		);
		CREATE INDEX IF NOT EXISTS idx_acl_grants_user ON acl_grants(target_user_id);

		CREATE TABLE IF NOT EXISTS merge_operations (
			operation_id        TEXT PRIMARY KEY,
			operation_type      TEXT NOT NULL,
			source_thread_ids   TEXT NOT NULL,
			affected_thread_ids TEXT NOT NULL DEFAULT '[]',
			target_user_id      TEXT NOT NULL,
			channel             TEXT NOT NULL,
			status              TEXT NOT NULL,
			error_message       TEXT,
			created_at          TEXT NOT NULL,
			completed_at        TEXT,

			CHECK (operation_type IN ('merge', 'split', 'remove')),
			CHECK (status IN ('pending', 'completed', 'failed', 'rolled_back'))
		);

		CREATE INDEX IF NOT EXISTS idx_merge_operations_user ON merge_operations(target_user_id);
		CREATE INDEX IF NOT EXISTS idx_merge_operations_created ON merge_operations(created_at DESC);

		CREATE TABLE IF NOT EXISTS resource_ownership (
			resource_kind TEXT NOT NULL,
			resource_id   TEXT NOT NULL,
			thread_id     TEXT NOT NULL,
			user_id       TEXT,
			created_at    TEXT NOT NULL,

			PRIMARY KEY (resource_kind, resource_id)
		);

		CREATE INDEX IF NOT EXISTS idx_resource_ownership_thread ON resource_ownership(resource_kind, thread_id);
		CREATE INDEX IF NOT EXISTS idx_resource_ownership_user ON resource_ownership(user_id);

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id      TEXT PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			action        TEXT NOT NULL,
			target_type   TEXT NOT NULL,
			target_id     TEXT NOT NULL,
			ts            TEXT NOT NULL,
			detail_json   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_type, target_id);

		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrations are applied in order after the base schema. Each runs once.
var migrations = []struct {
	version int
	stmt    string
}{
	{1, `CREATE INDEX IF NOT EXISTS idx_merge_operations_status ON merge_operations(status)`},
}

// runMigrations applies any migration newer than the recorded version.
func (s *SQLiteStore) runMigrations() error {
	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(time.Now())); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		s.logger.Debug("applied migration", "version", m.version)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// View runs fn in a deferred read transaction. The snapshot is taken at
// the first read and holds until fn returns.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, "BEGIN", fn)
}

// Update runs fn in a write transaction. BEGIN IMMEDIATE takes the
// database write lock up front, so concurrent Updates serialize and every
// identity row read inside fn stays locked until commit.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, "BEGIN IMMEDIATE", fn)
}

func (s *SQLiteStore) run(ctx context.Context, begin string, fn func(tx Tx) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, begin); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Runs on error returns and while a panic in fn unwinds. The
		// caller's context may already be cancelled; rollback must still run.
		if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(&sqliteTx{q: conn, logger: s.logger}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE or PRIMARY KEY violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// isCheckViolation checks if the error is a SQLite CHECK or FOREIGN KEY violation
func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}

// mapWriteError converts constraint failures into sentinel errors.
func mapWriteError(err error, what string) error {
	switch {
	case isConstraintViolation(err):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s: %v", ErrValidation, what, err)
	default:
		return fmt.Errorf("inserting %s: %w", what, err)
	}
}

// mustAffect returns ErrNotFound when an UPDATE or DELETE matched no rows.
func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return fmt.Errorf("querying %s: %w", what, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nowIfZero returns t, or the current time when t is zero.
func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = (*sqliteTx)(nil)
)
