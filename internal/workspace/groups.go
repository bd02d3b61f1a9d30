// ABOUTME: Team group registry: group creation and group membership
// ABOUTME: Group admins manage members; a group always keeps at least one admin

package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/coven-identity/internal/store"
)

// CreateGroup creates a team group with the creator as its first admin.
func (r *Registry) CreateGroup(ctx context.Context, name, creatorUserID string) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || creatorUserID == "" {
		return nil, fmt.Errorf("%w: group name and creator are required", store.ErrValidation)
	}

	g := &store.Group{ID: uuid.New().String(), Name: name, CreatedAt: r.now()}

	err := r.store.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, creatorUserID); err != nil {
			return err
		}
		if err := tx.CreateGroup(ctx, g); err != nil {
			return err
		}
		if err := tx.UpsertGroupMember(ctx, &store.GroupMember{
			GroupID:   g.ID,
			UserID:    creatorUserID,
			Role:      store.GroupRoleAdmin,
			CreatedAt: g.CreatedAt,
		}); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: creatorUserID,
			Action:      store.AuditCreateGroup,
			TargetType:  "group",
			TargetID:    g.ID,
			Timestamp:   g.CreatedAt,
			Detail:      map[string]any{"name": name},
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("group created", "group_id", g.ID, "name", name, "creator", creatorUserID)
	return g, nil
}

// GetGroup retrieves a group by ID.
func (r *Registry) GetGroup(ctx context.Context, groupID string) (*store.Group, error) {
	var g *store.Group
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		g, err = tx.GetGroup(ctx, groupID)
		return err
	})
	return g, err
}

// ListGroupMembers returns every member of a group.
func (r *Registry) ListGroupMembers(ctx context.Context, groupID string) ([]store.GroupMember, error) {
	var members []store.GroupMember
	err := r.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		members, err = tx.ListGroupMembers(ctx, groupID)
		return err
	})
	return members, err
}

// AddGroupMember adds userID to the group or changes their role. The
// actor must be a group admin.
func (r *Registry) AddGroupMember(ctx context.Context, groupID, userID string, role store.GroupRole, actorUserID string) error {
	if !store.IsValidGroupRole(role) {
		return fmt.Errorf("%w: invalid group role %q", store.ErrValidation, role)
	}

	err := r.store.Update(ctx, func(tx store.Tx) error {
		if err := requireGroupAdmin(ctx, tx, groupID, actorUserID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if role != store.GroupRoleAdmin {
			if err := ensureOtherAdmin(ctx, tx, groupID, userID); err != nil {
				return err
			}
		}

		now := r.now()
		if err := tx.UpsertGroupMember(ctx, &store.GroupMember{
			GroupID:   groupID,
			UserID:    userID,
			Role:      role,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditAddGroupMember,
			TargetType:  "group",
			TargetID:    groupID,
			Timestamp:   now,
			Detail:      map[string]any{"user_id": userID, "role": string(role)},
		})
	})
	if err != nil {
		return err
	}

	r.logger.Info("group member added", "group_id", groupID, "user_id", userID, "role", role)
	return nil
}

// RemoveGroupMember removes userID from the group. Members may remove
// themselves; removing anyone else requires group admin. Removing the last
// admin is a conflict.
func (r *Registry) RemoveGroupMember(ctx context.Context, groupID, userID, actorUserID string) error {
	var removed bool
	err := r.store.Update(ctx, func(tx store.Tx) error {
		if actorUserID == userID {
			if _, err := tx.GetGroup(ctx, groupID); err != nil {
				return err
			}
		} else if err := requireGroupAdmin(ctx, tx, groupID, actorUserID); err != nil {
			return err
		}

		if _, err := tx.GetGroupMember(ctx, groupID, userID); errors.Is(err, store.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if err := ensureOtherAdmin(ctx, tx, groupID, userID); err != nil {
			return err
		}

		if err := tx.DeleteGroupMember(ctx, groupID, userID); err != nil {
			return err
		}
		removed = true
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditRemoveGroupMember,
			TargetType:  "group",
			TargetID:    groupID,
			Timestamp:   r.now(),
			Detail:      map[string]any{"user_id": userID},
		})
	})
	if err != nil {
		return err
	}

	if removed {
		r.logger.Info("group member removed", "group_id", groupID, "user_id", userID)
	}
	return nil
}

func requireGroupAdmin(ctx context.Context, tx store.Tx, groupID, actorUserID string) error {
	if _, err := tx.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if actorUserID == store.SystemActor {
		return nil
	}
	m, err := tx.GetGroupMember(ctx, groupID, actorUserID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && m.Role != store.GroupRoleAdmin) {
		return fmt.Errorf("%w: %s is not an admin of group %s", store.ErrPermissionDenied, actorUserID, groupID)
	}
	return err
}

// ensureOtherAdmin fails when userID is the group's only admin.
func ensureOtherAdmin(ctx context.Context, tx store.Tx, groupID, userID string) error {
	members, err := tx.ListGroupMembers(ctx, groupID)
	if err != nil {
		return err
	}
	var isAdmin bool
	admins := 0
	for _, m := range members {
		if m.Role == store.GroupRoleAdmin {
			admins++
			if m.UserID == userID {
				isAdmin = true
			}
		}
	}
	if isAdmin && admins == 1 {
		return fmt.Errorf("%w: %s is the last admin of group %s", store.ErrConflict, userID, groupID)
	}
	return nil
}
