// ABOUTME: Tests for SQLite store construction, drivers, and constraint mapping
// ABOUTME: Covers directory creation, both registered drivers, and schema CHECK constraints

package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	seedUsers(t, store, "user-1")
	require.NoError(t, store.Close())

	// Schema creation and migrations are idempotent
	store, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		_, err := tx.GetUser(ctx, "user-1")
		return err
	}))
}

func TestOpenSQLite_CGoDriver(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := OpenSQLite(DriverCGo, dbPath)
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED") {
		t.Skip("sqlite3 driver requires cgo")
	}
	require.NoError(t, err)
	defer store.Close()

	seedUsers(t, store, "user-1")
}

func TestOpenSQLite_UnknownDriver(t *testing.T) {
	_, err := OpenSQLite("postgres", filepath.Join(t.TempDir(), "test.db"))
	assert.Error(t, err)
}

func TestSQLite_CheckConstraintBacksValidator(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Bypass ValidateWorkspace to confirm the schema also rejects two owners.
	err := store.Update(ctx, func(tx Tx) error {
		_, err := tx.(*sqliteTx).q.ExecContext(ctx, `
			INSERT INTO workspaces (workspace_id, type, name, owner_user_id, owner_group_id, owner_system_id, created_at)
			VALUES ('ws-1', 'public', 'bad', NULL, NULL, 'public', '2026-01-01T00:00:00.000000Z'),
			       ('ws-2', 'public', 'bad', NULL, NULL, NULL, '2026-01-01T00:00:00.000000Z')`)
		return err
	})
	require.Error(t, err)
	assert.True(t, isCheckViolation(err), "expected CHECK violation, got %v", err)
}

func TestSQLite_TimestampsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpdate(t, store, func(tx Tx) error {
		return tx.CreateUser(ctx, &User{ID: "user-1", CreatedAt: testTime})
	})

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		u, err := tx.GetUser(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, testTime.Equal(u.CreatedAt))
		return nil
	}))
}
