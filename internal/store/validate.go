// ABOUTME: Invariant validators run inside the same transaction as each write
// ABOUTME: Keeps owner and grant-target rules independent of the storage engine

package store

import (
	"fmt"
)

// ValidWorkspaceTypes lists all valid workspace types.
var ValidWorkspaceTypes = []WorkspaceType{WorkspaceIndividual, WorkspaceGroup, WorkspacePublic}

// ValidWorkspaceRoles lists all valid workspace roles.
var ValidWorkspaceRoles = []WorkspaceRole{WorkspaceRoleAdmin, WorkspaceRoleEditor, WorkspaceRoleReader}

// ValidGroupRoles lists all valid group roles.
var ValidGroupRoles = []GroupRole{GroupRoleAdmin, GroupRoleMember}

// ValidateWorkspace checks that exactly one owner reference is set and
// that it agrees with the workspace type.
func ValidateWorkspace(w *Workspace) error {
	set := 0
	for _, ref := range []*string{w.OwnerUserID, w.OwnerGroupID, w.OwnerSystemID} {
		if ref != nil {
			if *ref == "" {
				return fmt.Errorf("%w: owner reference must not be empty", ErrValidation)
			}
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: workspace must have exactly one owner reference, got %d", ErrValidation, set)
	}

	owner := w.Owner()
	switch w.Type {
	case WorkspaceIndividual:
		if owner.Kind != OwnerUser {
			return fmt.Errorf("%w: individual workspace must be owned by a user", ErrValidation)
		}
	case WorkspaceGroup:
		if owner.Kind != OwnerGroup {
			return fmt.Errorf("%w: group workspace must be owned by a group", ErrValidation)
		}
	case WorkspacePublic:
		if owner.Kind != OwnerPublic || owner.ID != PublicOwnerID {
			return fmt.Errorf("%w: public workspace must be owned by %q", ErrValidation, PublicOwnerID)
		}
	default:
		return fmt.Errorf("%w: invalid workspace type %q", ErrValidation, w.Type)
	}
	return nil
}

// ValidateGrantTarget checks that exactly one of user or group is set.
func ValidateGrantTarget(t GrantTarget) error {
	switch {
	case t.UserID != nil && t.GroupID != nil:
		return fmt.Errorf("%w: grant target must be a user or a group, not both", ErrValidation)
	case t.UserID == nil && t.GroupID == nil:
		return fmt.Errorf("%w: grant target is required", ErrValidation)
	case t.UserID != nil && *t.UserID == "":
		return fmt.Errorf("%w: grant target user id is empty", ErrValidation)
	case t.GroupID != nil && *t.GroupID == "":
		return fmt.Errorf("%w: grant target group id is empty", ErrValidation)
	}
	return nil
}

// ValidateGrant checks the target invariant and that the permission is
// read or write. Admin is never expressible through a grant.
func ValidateGrant(g *ACLGrant) error {
	if g.WorkspaceID == "" || g.ResourceType == "" || g.ResourceID == "" {
		return fmt.Errorf("%w: workspace, resource type, and resource id are required", ErrValidation)
	}
	if err := ValidateGrantTarget(g.Target()); err != nil {
		return err
	}
	if g.Permission != PermissionRead && g.Permission != PermissionWrite {
		return fmt.Errorf("%w: grant permission must be read or write, got %q", ErrValidation, g.Permission)
	}
	return nil
}

// ValidateIdentity checks the bound/merged_at pairing and that code fields
// are only present while pending.
func ValidateIdentity(i *Identity) error {
	if i.Channel == "" || i.ThreadID == "" {
		return fmt.Errorf("%w: channel and thread id are required", ErrValidation)
	}
	if (i.PersistentUserID == nil) != (i.MergedAt == nil) {
		return fmt.Errorf("%w: merged_at must be set iff persistent_user_id is set", ErrValidation)
	}
	switch i.VerificationStatus {
	case VerificationAnonymous, VerificationVerified:
		if i.CodeHash != "" || i.CodeExpiresAt != nil {
			return fmt.Errorf("%w: verification code present outside pending state", ErrValidation)
		}
	case VerificationPending:
		if i.CodeHash == "" || i.CodeExpiresAt == nil {
			return fmt.Errorf("%w: pending identity requires a code and expiry", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: invalid verification status %q", ErrValidation, i.VerificationStatus)
	}
	return nil
}

// IsValidWorkspaceRole reports whether r is a known workspace role.
func IsValidWorkspaceRole(r WorkspaceRole) bool {
	for _, v := range ValidWorkspaceRoles {
		if v == r {
			return true
		}
	}
	return false
}

// IsValidGroupRole reports whether r is a known group role.
func IsValidGroupRole(r GroupRole) bool {
	for _, v := range ValidGroupRoles {
		if v == r {
			return true
		}
	}
	return false
}
