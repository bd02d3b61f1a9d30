// ABOUTME: End-to-end resolver tests over real registries and stores
// ABOUTME: Includes the reader-plus-write-grant scenario and two-hop group traversal

package access

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-identity/internal/acl"
	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

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

type env struct {
	store      store.Store
	workspaces *workspace.Registry
	acl        *acl.Store
	resolver   *Resolver
	now        time.Time
}

func newEnv(t *testing.T, s store.Store, users ...string) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{store: s, now: testTime}
	clock := func() time.Time { return e.now }

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, id := range users {
			if err := tx.CreateUser(ctx, &store.User{ID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	e.workspaces = workspace.NewRegistry(workspace.Config{Store: s, Now: clock})
	e.acl = acl.New(acl.Config{Store: s, Now: clock})
	e.resolver = NewResolver(Config{Store: s, Now: clock})
	return e
}

func (e *env) resolve(t *testing.T, user, ws, rtype, rid string) store.Permission {
	t.Helper()
	p, err := e.resolver.Resolve(context.Background(), user, ws, rtype, rid)
	require.NoError(t, err)
	return p
}

// Scenario: W1 owned by userA; userB is a reader with a write grant on F1.
func TestResolve_ReaderWithWriteGrant(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		e := newEnv(t, s, "userA", "userB")
		ctx := context.Background()

		w1, err := e.workspaces.EnsureIndividualWorkspace(ctx, "userA")
		require.NoError(t, err)
		require.NoError(t, e.workspaces.GrantMembership(ctx, w1.ID, "userB", store.WorkspaceRoleReader, "userA"))
		_, err = e.acl.Grant(ctx, acl.GrantRequest{
			Resource:    acl.Resource{WorkspaceID: w1.ID, Type: "file_folder", ID: "F1"},
			Target:      store.TargetUser("userB"),
			Permission:  store.PermissionWrite,
			ActorUserID: "userA",
		})
		require.NoError(t, err)

		assert.Equal(t, store.PermissionWrite, e.resolve(t, "userB", w1.ID, "file_folder", "F1"))
		assert.Equal(t, store.PermissionRead, e.resolve(t, "userB", w1.ID, "file_folder", "F2"))
		assert.Equal(t, store.PermissionAdmin, e.resolve(t, "userA", w1.ID, "file_folder", "F1"))
	})
}

func TestResolve_ExpiredGrantIgnored(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		e := newEnv(t, s, "userA", "userB")
		ctx := context.Background()

		w1, err := e.workspaces.EnsureIndividualWorkspace(ctx, "userA")
		require.NoError(t, err)
		expires := testTime.Add(time.Hour)
		_, err = e.acl.Grant(ctx, acl.GrantRequest{
			Resource:    acl.Resource{WorkspaceID: w1.ID, Type: "table_path", ID: "T1"},
			Target:      store.TargetUser("userB"),
			Permission:  store.PermissionRead,
			ExpiresAt:   &expires,
			ActorUserID: "userA",
		})
		require.NoError(t, err)

		assert.Equal(t, store.PermissionRead, e.resolve(t, "userB", w1.ID, "table_path", "T1"))
		e.now = expires.Add(time.Second)
		assert.Equal(t, store.PermissionNone, e.resolve(t, "userB", w1.ID, "table_path", "T1"))
	})
}

func TestResolve_GroupWorkspaceTwoHop(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		e := newEnv(t, s, "lead", "dev", "guest", "outsider")
		ctx := context.Background()

		g, err := e.workspaces.CreateGroup(ctx, "research", "lead")
		require.NoError(t, err)
		require.NoError(t, e.workspaces.AddGroupMember(ctx, g.ID, "dev", store.GroupRoleMember, "lead"))

		ws, err := e.workspaces.CreateWorkspace(ctx, workspace.CreateRequest{
			Type:        store.WorkspaceGroup,
			Owner:       store.OwnerRef{Kind: store.OwnerGroup, ID: g.ID},
			ActorUserID: "lead",
		})
		require.NoError(t, err)

		// A second group whose members get a grant on one collection.
		guests, err := e.workspaces.CreateGroup(ctx, "guests", "lead")
		require.NoError(t, err)
		require.NoError(t, e.workspaces.AddGroupMember(ctx, guests.ID, "guest", store.GroupRoleMember, "lead"))
		_, err = e.acl.Grant(ctx, acl.GrantRequest{
			Resource:    acl.Resource{WorkspaceID: ws.ID, Type: "collection", ID: "notes"},
			Target:      store.TargetGroup(guests.ID),
			Permission:  store.PermissionRead,
			ActorUserID: "lead",
		})
		require.NoError(t, err)

		assert.Equal(t, store.PermissionAdmin, e.resolve(t, "lead", ws.ID, "collection", "notes"))
		assert.Equal(t, store.PermissionWrite, e.resolve(t, "dev", ws.ID, "collection", "notes"))
		assert.Equal(t, store.PermissionRead, e.resolve(t, "guest", ws.ID, "collection", "notes"))
		assert.Equal(t, store.PermissionNone, e.resolve(t, "guest", ws.ID, "collection", "other"))
		assert.Equal(t, store.PermissionNone, e.resolve(t, "outsider", ws.ID, "collection", "notes"))
	})
}

func TestResolve_PublicAndSuspended(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		e := newEnv(t, s, "userA", "userB")
		ctx := context.Background()

		pub, err := e.workspaces.CreateWorkspace(ctx, workspace.CreateRequest{
			Type:        store.WorkspacePublic,
			Owner:       store.OwnerRef{Kind: store.OwnerPublic, ID: store.PublicOwnerID},
			ActorUserID: store.SystemActor,
		})
		require.NoError(t, err)

		assert.Equal(t, store.PermissionRead, e.resolve(t, "userB", pub.ID, "workflow", "daily"))

		require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
			return tx.UpdateUserStatus(ctx, "userB", store.UserStatusSuspended)
		}))
		assert.Equal(t, store.PermissionNone, e.resolve(t, "userB", pub.ID, "workflow", "daily"))
		assert.Equal(t, store.PermissionNone, e.resolve(t, "nobody", pub.ID, "workflow", "daily"))
	})
}

func TestResolve_Errors(t *testing.T) {
	e := newEnv(t, store.NewMockStore(), "userA")
	ctx := context.Background()

	p, err := e.resolver.Resolve(ctx, "userA", "missing", "file_path", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, store.PermissionNone, p)

	_, err = e.resolver.Resolve(ctx, "userA", "W1", "", "x")
	assert.ErrorIs(t, err, store.ErrValidation)
}
