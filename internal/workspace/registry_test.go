// ABOUTME: Tests for workspace creation, ownership invariants, and memberships
// ABOUTME: Runs against MockStore and SQLite with a fixed clock

package workspace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-identity/internal/store"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(s store.Store) *Registry {
	return NewRegistry(Config{Store: s, Now: func() time.Time { return testTime }})
}

func forEachStore(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("mock", func(t *testing.T) { fn(t, store.NewMockStore()) })
}

func seedUsers(t *testing.T, s store.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, id := range ids {
			if err := tx.CreateUser(ctx, &store.User{ID: id, CreatedAt: testTime}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func userOwner(id string) store.OwnerRef {
	return store.OwnerRef{Kind: store.OwnerUser, ID: id}
}

func TestCreateWorkspace_Individual(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		reg := newTestRegistry(s)
		ctx := context.Background()
		seedUsers(t, s, "alice")

		ws, err := reg.CreateWorkspace(ctx, CreateRequest{
			Type:        store.WorkspaceIndividual,
			Owner:       userOwner("alice"),
			ActorUserID: "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, store.WorkspaceIndividual, ws.Type)
		assert.Equal(t, "alice (personal)", ws.Name)
		assert.Equal(t, userOwner("alice"), ws.Owner())

		members, err := reg.ListMembers(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "alice", members[0].UserID)
		assert.Equal(t, store.WorkspaceRoleAdmin, members[0].Role)

		_, err = reg.CreateWorkspace(ctx, CreateRequest{
			Type:  store.WorkspaceIndividual,
			Owner: userOwner("alice"),
		})
		assert.ErrorIs(t, err, store.ErrConflict, "second individual workspace")
	})
}

func TestCreateWorkspace_OwnerPairing(t *testing.T) {
	reg := newTestRegistry(store.NewMockStore())
	ctx := context.Background()

	tests := []struct {
		name  string
		req   CreateRequest
		match error
	}{
		{
			name:  "individual owned by group",
			req:   CreateRequest{Type: store.WorkspaceIndividual, Owner: store.OwnerRef{Kind: store.OwnerGroup, ID: "g"}},
			match: store.ErrValidation,
		},
		{
			name:  "group owned by user",
			req:   CreateRequest{Type: store.WorkspaceGroup, Owner: userOwner("alice")},
			match: store.ErrValidation,
		},
		{
			name:  "public owned by wrong system id",
			req:   CreateRequest{Type: store.WorkspacePublic, Owner: store.OwnerRef{Kind: store.OwnerPublic, ID: "nope"}},
			match: store.ErrValidation,
		},
		{
			name:  "unknown owner kind",
			req:   CreateRequest{Type: store.WorkspaceGroup, Owner: store.OwnerRef{Kind: "robot", ID: "r"}},
			match: store.ErrValidation,
		},
		{
			name:  "missing user",
			req:   CreateRequest{Type: store.WorkspaceIndividual, Owner: userOwner("ghost")},
			match: store.ErrNotFound,
		},
		{
			name:  "missing group",
			req:   CreateRequest{Type: store.WorkspaceGroup, Owner: store.OwnerRef{Kind: store.OwnerGroup, ID: "ghost"}},
			match: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.CreateWorkspace(ctx, tt.req)
			assert.ErrorIs(t, err, tt.match)
		})
	}
}

func TestCreateWorkspace_PublicSingleton(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		reg := newTestRegistry(s)
		ctx := context.Background()
		req := CreateRequest{
			Type:        store.WorkspacePublic,
			Owner:       store.OwnerRef{Kind: store.OwnerPublic, ID: store.PublicOwnerID},
			ActorUserID: store.SystemActor,
		}

		ws, err := reg.CreateWorkspace(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "public", ws.Name)

		_, err = reg.CreateWorkspace(ctx, req)
		assert.ErrorIs(t, err, store.ErrConflict)
	})
}

func TestEnsureIndividualWorkspace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		reg := newTestRegistry(s)
		ctx := context.Background()
		seedUsers(t, s, "alice")

		first, err := reg.EnsureIndividualWorkspace(ctx, "alice")
		require.NoError(t, err)
		second, err := reg.EnsureIndividualWorkspace(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		action := store.AuditCreateWorkspace
		entries, err := s.ListAuditLog(ctx, store.AuditFilter{Action: &action})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestGrantMembership(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		reg := newTestRegistry(s)
		ctx := context.Background()
		seedUsers(t, s, "alice", "bob", "carol")

		ws, err := reg.EnsureIndividualWorkspace(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, reg.GrantMembership(ctx, ws.ID, "bob", store.WorkspaceRoleReader, "alice"))

		err = reg.GrantMembership(ctx, ws.ID, "carol", store.WorkspaceRoleReader, "bob")
		assert.ErrorIs(t, err, store.ErrPermissionDenied, "readers cannot grant")

		// Re-granting replaces the role.
		require.NoError(t, reg.GrantMembership(ctx, ws.ID, "bob", store.WorkspaceRoleAdmin, "alice"))
		require.NoError(t, reg.GrantMembership(ctx, ws.ID, "carol", store.WorkspaceRoleEditor, "bob"))

		members, err := reg.ListMembers(ctx, ws.ID)
		require.NoError(t, err)
		roles := map[string]store.WorkspaceRole{}
		for _, m := range members {
			roles[m.UserID] = m.Role
		}
		assert.Equal(t, map[string]store.WorkspaceRole{
			"alice": store.WorkspaceRoleAdmin,
			"bob":   store.WorkspaceRoleAdmin,
			"carol": store.WorkspaceRoleEditor,
		}, roles)
	})
}

func TestGrantMembership_Errors(t *testing.T) {
	s := store.NewMockStore()
	reg := newTestRegistry(s)
	ctx := context.Background()
	seedUsers(t, s, "alice")

	ws, err := reg.EnsureIndividualWorkspace(ctx, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, reg.GrantMembership(ctx, ws.ID, "alice", "owner", "alice"), store.ErrValidation)
	assert.ErrorIs(t, reg.GrantMembership(ctx, ws.ID, "ghost", store.WorkspaceRoleReader, "alice"), store.ErrNotFound)
	assert.ErrorIs(t, reg.GrantMembership(ctx, "missing", "alice", store.WorkspaceRoleReader, "alice"), store.ErrNotFound)
	assert.ErrorIs(t, reg.GrantMembership(ctx, ws.ID, "alice", store.WorkspaceRoleReader, "alice"), store.ErrConflict,
		"owner cannot be demoted")
}

func TestRevokeMembership(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		reg := newTestRegistry(s)
		ctx := context.Background()
		seedUsers(t, s, "alice", "bob", "carol")

		ws, err := reg.EnsureIndividualWorkspace(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, reg.GrantMembership(ctx, ws.ID, "bob", store.WorkspaceRoleEditor, "alice"))
		require.NoError(t, reg.GrantMembership(ctx, ws.ID, "carol", store.WorkspaceRoleReader, "alice"))

		assert.ErrorIs(t, reg.RevokeMembership(ctx, ws.ID, "carol", "bob"), store.ErrPermissionDenied)

		require.NoError(t, reg.RevokeMembership(ctx, ws.ID, "carol", "carol"), "self revoke")
		require.NoError(t, reg.RevokeMembership(ctx, ws.ID, "bob", "alice"))
		require.NoError(t, reg.RevokeMembership(ctx, ws.ID, "bob", "alice"), "revoke is idempotent")

		assert.ErrorIs(t, reg.RevokeMembership(ctx, ws.ID, "alice", "alice"), store.ErrConflict)

		members, err := reg.ListMembers(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "alice", members[0].UserID)

		action := store.AuditRevokeMembership
		entries, err := s.ListAuditLog(ctx, store.AuditFilter{Action: &action})
		require.NoError(t, err)
		assert.Len(t, entries, 2, "no-op revoke is not audited")
	})
}

func TestSystemActorBypassesAdminCheck(t *testing.T) {
	s := store.NewMockStore()
	reg := newTestRegistry(s)
	ctx := context.Background()
	seedUsers(t, s, "alice")

	ws, err := reg.CreateWorkspace(ctx, CreateRequest{
		Type:        store.WorkspacePublic,
		Owner:       store.OwnerRef{Kind: store.OwnerPublic, ID: store.PublicOwnerID},
		ActorUserID: store.SystemActor,
	})
	require.NoError(t, err)

	require.NoError(t, reg.GrantMembership(ctx, ws.ID, "alice", store.WorkspaceRoleAdmin, store.SystemActor))
	assert.ErrorIs(t, reg.GrantMembership(ctx, ws.ID, "alice", store.WorkspaceRoleAdmin, "nobody"), store.ErrPermissionDenied)
}
