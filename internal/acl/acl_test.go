// ABOUTME: Tests for ACL grant upsert, revoke, and lazy expiry
// ABOUTME: Uses an individual workspace owned by alice as the fixture

package acl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store store.Store
	acl   *Store
	ws    *store.Workspace
	now   time.Time
}

func (f *fixture) clock() time.Time { return f.now }

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

// newFixture creates users alice and bob, and alice's individual workspace.
func newFixture(t *testing.T, s store.Store, resources ResourceChecker) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: s, now: testTime}

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		for _, id := range []string{"alice", "bob"} {
			if err := tx.CreateUser(ctx, &store.User{ID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	reg := workspace.NewRegistry(workspace.Config{Store: s, Now: f.clock})
	ws, err := reg.EnsureIndividualWorkspace(ctx, "alice")
	require.NoError(t, err)
	f.ws = ws

	f.acl = New(Config{Store: s, Now: f.clock, Resources: resources})
	return f
}

func (f *fixture) resource(id string) Resource {
	return Resource{WorkspaceID: f.ws.ID, Type: "file_folder", ID: id}
}

func TestGrant_UpsertsOnTuple(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		f := newFixture(t, s, nil)
		ctx := context.Background()

		_, err := f.acl.Grant(ctx, GrantRequest{
			Resource:    f.resource("F1"),
			Target:      store.TargetUser("bob"),
			Permission:  store.PermissionRead,
			ActorUserID: "alice",
		})
		require.NoError(t, err)

		expires := testTime.Add(time.Hour)
		_, err = f.acl.Grant(ctx, GrantRequest{
			Resource:    f.resource("F1"),
			Target:      store.TargetUser("bob"),
			Permission:  store.PermissionWrite,
			ExpiresAt:   &expires,
			ActorUserID: "alice",
		})
		require.NoError(t, err)

		grants, err := f.acl.ListActiveGrants(ctx, f.resource("F1"))
		require.NoError(t, err)
		require.Len(t, grants, 1, "re-grant replaces rather than duplicates")
		assert.Equal(t, store.PermissionWrite, grants[0].Permission)
		require.NotNil(t, grants[0].ExpiresAt)
		assert.True(t, expires.Equal(*grants[0].ExpiresAt))
	})
}

func TestGrant_Rejections(t *testing.T) {
	f := newFixture(t, store.NewMockStore(), nil)
	ctx := context.Background()
	past := testTime.Add(-time.Minute)

	tests := []struct {
		name  string
		req   GrantRequest
		match error
	}{
		{
			name:  "admin permission",
			req:   GrantRequest{Resource: f.resource("F1"), Target: store.TargetUser("bob"), Permission: store.PermissionAdmin, ActorUserID: "alice"},
			match: store.ErrValidation,
		},
		{
			name:  "no target",
			req:   GrantRequest{Resource: f.resource("F1"), Permission: store.PermissionRead, ActorUserID: "alice"},
			match: store.ErrValidation,
		},
		{
			name: "two targets",
			req: GrantRequest{
				Resource:    f.resource("F1"),
				Target:      store.GrantTarget{UserID: strPtr("bob"), GroupID: strPtr("g")},
				Permission:  store.PermissionRead,
				ActorUserID: "alice",
			},
			match: store.ErrValidation,
		},
		{
			name:  "already expired",
			req:   GrantRequest{Resource: f.resource("F1"), Target: store.TargetUser("bob"), Permission: store.PermissionRead, ExpiresAt: &past, ActorUserID: "alice"},
			match: store.ErrValidation,
		},
		{
			name:  "missing resource id",
			req:   GrantRequest{Resource: f.resource(""), Target: store.TargetUser("bob"), Permission: store.PermissionRead, ActorUserID: "alice"},
			match: store.ErrValidation,
		},
		{
			name:  "unknown target user",
			req:   GrantRequest{Resource: f.resource("F1"), Target: store.TargetUser("ghost"), Permission: store.PermissionRead, ActorUserID: "alice"},
			match: store.ErrNotFound,
		},
		{
			name:  "unknown workspace",
			req:   GrantRequest{Resource: Resource{WorkspaceID: "missing", Type: "file_folder", ID: "F1"}, Target: store.TargetUser("bob"), Permission: store.PermissionRead, ActorUserID: "alice"},
			match: store.ErrNotFound,
		},
		{
			name:  "non-admin actor",
			req:   GrantRequest{Resource: f.resource("F1"), Target: store.TargetUser("bob"), Permission: store.PermissionRead, ActorUserID: "bob"},
			match: store.ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.acl.Grant(ctx, tt.req)
			assert.ErrorIs(t, err, tt.match)
		})
	}
}

func TestListActiveGrants_LazyExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		f := newFixture(t, s, nil)
		ctx := context.Background()

		expires := testTime.Add(10 * time.Minute)
		_, err := f.acl.Grant(ctx, GrantRequest{
			Resource:    f.resource("F1"),
			Target:      store.TargetUser("bob"),
			Permission:  store.PermissionWrite,
			ExpiresAt:   &expires,
			ActorUserID: "alice",
		})
		require.NoError(t, err)

		f.now = expires
		grants, err := f.acl.ListActiveGrants(ctx, f.resource("F1"))
		require.NoError(t, err)
		assert.Empty(t, grants, "a grant is inactive from its expiry instant")

		// The expired row is still stored.
		require.NoError(t, s.View(ctx, func(tx store.Tx) error {
			all, err := tx.ListGrants(ctx, f.ws.ID, "file_folder", "F1", time.Time{})
			require.NoError(t, err)
			assert.Len(t, all, 1)
			return nil
		}))
	})
}

func TestRevoke(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store.Store) {
		f := newFixture(t, s, nil)
		ctx := context.Background()

		_, err := f.acl.Grant(ctx, GrantRequest{
			Resource:    f.resource("F1"),
			Target:      store.TargetUser("bob"),
			Permission:  store.PermissionRead,
			ActorUserID: "alice",
		})
		require.NoError(t, err)

		assert.ErrorIs(t, f.acl.Revoke(ctx, f.resource("F1"), store.TargetUser("bob"), "bob"), store.ErrPermissionDenied)
		require.NoError(t, f.acl.Revoke(ctx, f.resource("F1"), store.TargetUser("bob"), "alice"))
		require.NoError(t, f.acl.Revoke(ctx, f.resource("F1"), store.TargetUser("bob"), "alice"), "revoke is idempotent")

		grants, err := f.acl.ListActiveGrants(ctx, f.resource("F1"))
		require.NoError(t, err)
		assert.Empty(t, grants)
	})
}

func TestGrant_ResourceChecker(t *testing.T) {
	known := map[string]bool{"F1": true}
	checker := ResourceCheckerFunc(func(ctx context.Context, resourceType, resourceID string) (bool, error) {
		if resourceID == "broken" {
			return false, errors.New("storage offline")
		}
		return known[resourceID], nil
	})
	f := newFixture(t, store.NewMockStore(), checker)
	ctx := context.Background()

	req := GrantRequest{Resource: f.resource("F1"), Target: store.TargetUser("bob"), Permission: store.PermissionRead, ActorUserID: "alice"}
	_, err := f.acl.Grant(ctx, req)
	require.NoError(t, err)

	req.Resource = f.resource("F9")
	_, err = f.acl.Grant(ctx, req)
	assert.ErrorIs(t, err, store.ErrNotFound)

	req.Resource = f.resource("broken")
	_, err = f.acl.Grant(ctx, req)
	assert.ErrorContains(t, err, "storage offline")
}

func TestGrant_ForwardGrantWithoutChecker(t *testing.T) {
	f := newFixture(t, store.NewMockStore(), nil)
	_, err := f.acl.Grant(context.Background(), GrantRequest{
		Resource:    f.resource("not-yet-created"),
		Target:      store.TargetUser("bob"),
		Permission:  store.PermissionRead,
		ActorUserID: "alice",
	})
	assert.NoError(t, err)
}

func strPtr(s string) *string { return &s }
