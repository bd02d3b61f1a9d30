// ABOUTME: Pure permission decision over pre-loaded facts
// ABOUTME: Admin role short-circuits; otherwise the more permissive of grant and role wins

package access

import (
	"time"

	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// Facts is everything Decide needs to resolve one (user, resource) pair.
type Facts struct {
	Role workspace.RoleInputs
	// Grants are the grants on the resource. Expired grants may be
	// included; Decide ignores them.
	Grants []store.ACLGrant
	Now    time.Time
}

// Decision is the outcome of Decide with the partial results that led to it.
type Decision struct {
	Permission store.Permission
	Role       store.WorkspaceRole
	FromRole   store.Permission
	FromGrants store.Permission
}

// rolePermission maps a coarse role to its workspace-wide permission.
func rolePermission(r store.WorkspaceRole) store.Permission {
	switch r {
	case store.WorkspaceRoleAdmin:
		return store.PermissionAdmin
	case store.WorkspaceRoleEditor:
		return store.PermissionWrite
	case store.WorkspaceRoleReader:
		return store.PermissionRead
	default:
		return store.PermissionNone
	}
}

// Decide computes the effective permission:
//
//  1. an admin role (direct or via the owning group) is admin
//  2. the strongest active grant targeting the user or one of their groups
//  3. the permission implied by the workspace role
//
// and returns the more permissive of 2 and 3. Suspended users get none.
func Decide(f Facts) Decision {
	d := Decision{Permission: store.PermissionNone, FromRole: store.PermissionNone, FromGrants: store.PermissionNone}
	if !f.Role.UserActive {
		return d
	}

	d.Role = workspace.RoleFor(f.Role)
	d.FromRole = rolePermission(d.Role)
	if d.FromRole == store.PermissionAdmin {
		d.Permission = store.PermissionAdmin
		return d
	}

	groups := make(map[string]bool, len(f.Role.Groups))
	for _, gm := range f.Role.Groups {
		groups[gm.GroupID] = true
	}
	for i := range f.Grants {
		g := &f.Grants[i]
		if !g.ActiveAt(f.Now) || !grantApplies(g, f.Role.UserID, groups) {
			continue
		}
		// Admin is not grantable; treat a stray admin row as write.
		p := g.Permission
		if p == store.PermissionAdmin {
			p = store.PermissionWrite
		}
		d.FromGrants = store.MaxPermission(d.FromGrants, p)
	}

	d.Permission = store.MaxPermission(d.FromGrants, d.FromRole)
	return d
}

func grantApplies(g *store.ACLGrant, userID string, groups map[string]bool) bool {
	if g.TargetUserID != nil {
		return *g.TargetUserID == userID
	}
	return g.TargetGroupID != nil && groups[*g.TargetGroupID]
}
