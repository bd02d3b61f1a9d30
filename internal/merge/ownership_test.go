// ABOUTME: Tests for registering and listing rows of the built-in ownership relation
// ABOUTME: Registrations on bound threads must land on the bound user

package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-identity/internal/store"
)

func TestRegisterOwnership(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		e, _ := newTestEngine(s, nil)
		seedUser(t, s, "user-a", store.UserStatusActive)
		seedIdentity(t, s, "T-anon", "")
		seedIdentity(t, s, "T-bound", "user-a")

		o, err := e.RegisterOwnership(ctx, "file_path", "/notes/a.md", "T-anon")
		require.NoError(t, err)
		assert.Nil(t, o.UserID)

		o, err = e.RegisterOwnership(ctx, "file_path", "/notes/b.md", "T-bound")
		require.NoError(t, err)
		require.NotNil(t, o.UserID)
		assert.Equal(t, "user-a", *o.UserID)

		userID := "user-a"
		rows, err := e.ListOwnership(ctx, store.OwnershipFilter{UserID: &userID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "/notes/b.md", rows[0].ResourceID)

		_, err = e.RegisterOwnership(ctx, "file_path", "/notes/c.md", "T-missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRegisterOwnership_ThenMergeRepoints(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		e, _ := newTestEngine(s, nil)
		seedIdentity(t, s, "T1", "")

		_, err := e.RegisterOwnership(ctx, "table_path", "sales", "T1")
		require.NoError(t, err)

		_, err = e.Merge(ctx, []string{"T1"}, "user-z", "telegram")
		require.NoError(t, err)

		rows := ownershipOf(t, s, "table_path")
		require.Contains(t, rows, "sales")
		require.NotNil(t, rows["sales"].UserID)
		assert.Equal(t, "user-z", *rows["sales"].UserID)
	})
}
