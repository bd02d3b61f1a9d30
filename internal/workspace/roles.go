// ABOUTME: Coarse workspace role derivation, including two-hop group ownership
// ABOUTME: RoleFor is pure; EffectiveRole and RequireAdmin load its inputs inside a transaction

package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/coven-identity/internal/store"
)

// roleRank orders workspace roles; the empty role ranks lowest.
func roleRank(r store.WorkspaceRole) int {
	switch r {
	case store.WorkspaceRoleReader:
		return 1
	case store.WorkspaceRoleEditor:
		return 2
	case store.WorkspaceRoleAdmin:
		return 3
	default:
		return 0
	}
}

// maxRole returns the stronger of a and b.
func maxRole(a, b store.WorkspaceRole) store.WorkspaceRole {
	if roleRank(b) > roleRank(a) {
		return b
	}
	return a
}

// RoleInputs is everything RoleFor needs to know about one user and one workspace.
type RoleInputs struct {
	Workspace  *store.Workspace
	UserID     string
	UserActive bool
	Direct     *store.WorkspaceMember // nil when the user has no membership row
	Groups     []store.GroupMember    // every group the user belongs to
}

// RoleFor returns the strongest coarse role the user holds on the
// workspace, or "" for none. Resolution is by owner kind:
//
//   - user: the owner is admin
//   - group: a group admin is admin, a group member is editor
//   - public: every active user is reader
//
// A direct membership row is combined with the owner-derived role and the
// stronger one wins. Suspended users hold no role.
func RoleFor(in RoleInputs) store.WorkspaceRole {
	if !in.UserActive || in.Workspace == nil {
		return ""
	}

	var role store.WorkspaceRole
	if in.Direct != nil {
		role = in.Direct.Role
	}

	owner := in.Workspace.Owner()
	switch owner.Kind {
	case store.OwnerUser:
		if owner.ID == in.UserID {
			role = store.WorkspaceRoleAdmin
		}
	case store.OwnerGroup:
		for _, gm := range in.Groups {
			if gm.GroupID != owner.ID {
				continue
			}
			switch gm.Role {
			case store.GroupRoleAdmin:
				role = maxRole(role, store.WorkspaceRoleAdmin)
			case store.GroupRoleMember:
				role = maxRole(role, store.WorkspaceRoleEditor)
			}
		}
	case store.OwnerPublic:
		role = maxRole(role, store.WorkspaceRoleReader)
	}
	return role
}

// LoadRoleInputs reads the user, direct membership, and group memberships
// needed to resolve a role. An unknown user resolves as inactive.
func LoadRoleInputs(ctx context.Context, tx store.Tx, ws *store.Workspace, userID string) (RoleInputs, error) {
	in := RoleInputs{Workspace: ws, UserID: userID}

	u, err := tx.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return in, nil
	case err != nil:
		return in, err
	}
	in.UserActive = u.Status == store.UserStatusActive

	m, err := tx.GetWorkspaceMember(ctx, ws.ID, userID)
	switch {
	case err == nil:
		in.Direct = m
	case !errors.Is(err, store.ErrNotFound):
		return in, err
	}

	if ws.Owner().Kind == store.OwnerGroup {
		groups, err := tx.ListGroupsForUser(ctx, userID)
		if err != nil {
			return in, err
		}
		in.Groups = groups
	}
	return in, nil
}

// EffectiveRole loads role inputs and resolves them with RoleFor.
func EffectiveRole(ctx context.Context, tx store.Tx, ws *store.Workspace, userID string) (store.WorkspaceRole, error) {
	in, err := LoadRoleInputs(ctx, tx, ws, userID)
	if err != nil {
		return "", err
	}
	return RoleFor(in), nil
}

// RequireAdmin loads the workspace and fails with store.ErrPermissionDenied
// unless actorUserID holds admin on it. store.SystemActor is always allowed.
func RequireAdmin(ctx context.Context, tx store.Tx, workspaceID, actorUserID string) (*store.Workspace, error) {
	ws, err := tx.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if actorUserID == store.SystemActor {
		return ws, nil
	}
	role, err := EffectiveRole(ctx, tx, ws, actorUserID)
	if err != nil {
		return nil, err
	}
	if role != store.WorkspaceRoleAdmin {
		return nil, fmt.Errorf("%w: %s is not an admin of workspace %s", store.ErrPermissionDenied, actorUserID, workspaceID)
	}
	return ws, nil
}
