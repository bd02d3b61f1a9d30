// ABOUTME: Table tests for the pure permission decision
// ABOUTME: Covers precedence, expiry, group-targeted grants, and suspended users

package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func userGrant(user string, p store.Permission, expires *time.Time) store.ACLGrant {
	return store.ACLGrant{TargetUserID: strPtr(user), Permission: p, ExpiresAt: expires}
}

func groupGrant(group string, p store.Permission) store.ACLGrant {
	return store.ACLGrant{TargetGroupID: strPtr(group), Permission: p}
}

func TestDecide(t *testing.T) {
	individual := &store.Workspace{ID: "W1", Type: store.WorkspaceIndividual, OwnerUserID: strPtr("alice")}
	team := &store.Workspace{ID: "W2", Type: store.WorkspaceGroup, OwnerGroupID: strPtr("g1")}
	public := &store.Workspace{ID: "W3", Type: store.WorkspacePublic, OwnerSystemID: strPtr(store.PublicOwnerID)}

	member := func(role store.WorkspaceRole) *store.WorkspaceMember { return &store.WorkspaceMember{Role: role} }
	bob := func(ws *store.Workspace, direct *store.WorkspaceMember, groups ...store.GroupMember) workspace.RoleInputs {
		return workspace.RoleInputs{Workspace: ws, UserID: "bob", UserActive: true, Direct: direct, Groups: groups}
	}

	tests := []struct {
		name  string
		facts Facts
		want  store.Permission
	}{
		{
			name:  "reader with write grant is write",
			facts: Facts{Role: bob(individual, member(store.WorkspaceRoleReader)), Grants: []store.ACLGrant{userGrant("bob", store.PermissionWrite, nil)}},
			want:  store.PermissionWrite,
		},
		{
			name:  "reader without grant is read",
			facts: Facts{Role: bob(individual, member(store.WorkspaceRoleReader))},
			want:  store.PermissionRead,
		},
		{
			name:  "editor is not narrowed by a read grant",
			facts: Facts{Role: bob(individual, member(store.WorkspaceRoleEditor)), Grants: []store.ACLGrant{userGrant("bob", store.PermissionRead, nil)}},
			want:  store.PermissionWrite,
		},
		{
			name:  "grant alone expands a non-member",
			facts: Facts{Role: bob(individual, nil), Grants: []store.ACLGrant{userGrant("bob", store.PermissionRead, nil)}},
			want:  store.PermissionRead,
		},
		{
			name:  "grant for someone else is ignored",
			facts: Facts{Role: bob(individual, nil), Grants: []store.ACLGrant{userGrant("carol", store.PermissionWrite, nil)}},
			want:  store.PermissionNone,
		},
		{
			name:  "expired grant never contributes",
			facts: Facts{Role: bob(individual, member(store.WorkspaceRoleReader)), Grants: []store.ACLGrant{userGrant("bob", store.PermissionWrite, timePtr(testTime.Add(-time.Second)))}},
			want:  store.PermissionRead,
		},
		{
			name:  "grant expiring exactly now is inactive",
			facts: Facts{Role: bob(individual, nil), Grants: []store.ACLGrant{userGrant("bob", store.PermissionWrite, timePtr(testTime))}},
			want:  store.PermissionNone,
		},
		{
			name:  "unexpired grant contributes",
			facts: Facts{Role: bob(individual, nil), Grants: []store.ACLGrant{userGrant("bob", store.PermissionWrite, timePtr(testTime.Add(time.Second)))}},
			want:  store.PermissionWrite,
		},
		{
			name:  "group-targeted grant",
			facts: Facts{Role: bob(individual, nil, store.GroupMember{GroupID: "g9", Role: store.GroupRoleMember}), Grants: []store.ACLGrant{groupGrant("g9", store.PermissionWrite)}},
			want:  store.PermissionWrite,
		},
		{
			name:  "owner is admin",
			facts: Facts{Role: workspace.RoleInputs{Workspace: individual, UserID: "alice", UserActive: true}},
			want:  store.PermissionAdmin,
		},
		{
			name:  "owning group admin is admin",
			facts: Facts{Role: bob(team, nil, store.GroupMember{GroupID: "g1", Role: store.GroupRoleAdmin})},
			want:  store.PermissionAdmin,
		},
		{
			name:  "owning group member is write",
			facts: Facts{Role: bob(team, nil, store.GroupMember{GroupID: "g1", Role: store.GroupRoleMember})},
			want:  store.PermissionWrite,
		},
		{
			name:  "public is read",
			facts: Facts{Role: bob(public, nil)},
			want:  store.PermissionRead,
		},
		{
			name: "suspended user is none",
			facts: Facts{
				Role:   workspace.RoleInputs{Workspace: individual, UserID: "alice"},
				Grants: []store.ACLGrant{userGrant("alice", store.PermissionWrite, nil)},
			},
			want: store.PermissionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.facts.Now = testTime
			assert.Equal(t, tt.want, Decide(tt.facts).Permission)
		})
	}
}

func TestDecide_AdminShortCircuits(t *testing.T) {
	ws := &store.Workspace{ID: "W1", Type: store.WorkspaceIndividual, OwnerUserID: strPtr("alice")}
	d := Decide(Facts{
		Role:   workspace.RoleInputs{Workspace: ws, UserID: "alice", UserActive: true},
		Grants: []store.ACLGrant{userGrant("alice", store.PermissionRead, nil)},
		Now:    testTime,
	})
	assert.Equal(t, store.PermissionAdmin, d.Permission)
	assert.Equal(t, store.PermissionNone, d.FromGrants, "grants are not evaluated for admins")
}
