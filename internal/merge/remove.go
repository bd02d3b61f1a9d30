// ABOUTME: Remove: applies a retention policy to a user's or threads' data
// ABOUTME: The operation's audit row is kept whatever the policy deletes

package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/coven-identity/internal/store"
)

// Policy is a retention policy for Remove.
type Policy string

const (
	// PolicyDelete deletes ownership rows and identities, and drops the
	// user's memberships and direct grants.
	PolicyDelete Policy = "delete"
	// PolicyAnonymize detaches ownership rows to a tombstone thread and
	// strips contact data from identities, keeping the rows.
	PolicyAnonymize Policy = "anonymize"
)

// RemoveRequest selects what Remove acts on. With a UserID and no
// ThreadIDs, every identity bound to the user is removed.
type RemoveRequest struct {
	UserID    string
	ThreadIDs []string
	Policy    Policy
}

// Remove applies req.Policy. When a user is named, every listed thread
// must be bound to that user, and the user is suspended. With a user and
// no threads, the user's identities are enumerated inside the removal
// transaction, so a thread bound concurrently is either removed too or
// bound after the removal commits.
func (e *Engine) Remove(ctx context.Context, req RemoveRequest) (*store.MergeOperation, error) {
	if req.Policy != PolicyDelete && req.Policy != PolicyAnonymize {
		return nil, fmt.Errorf("%w: unknown retention policy %q", store.ErrValidation, req.Policy)
	}
	threads := normalizeThreads(req.ThreadIDs)
	if req.UserID == "" && len(threads) == 0 {
		return nil, fmt.Errorf("%w: a user or at least one thread is required", store.ErrValidation)
	}
	if _, ok := e.owners.(Remover); !ok {
		return nil, fmt.Errorf("%w: ownership port does not support removal", store.ErrValidation)
	}

	op := &store.MergeOperation{
		Type:            store.OperationRemove,
		SourceThreadIDs: threads,
		TargetUserID:    req.UserID,
	}
	wholeUser := len(threads) == 0
	return e.run(ctx, op, func(ctx context.Context, tx store.Tx, op *store.MergeOperation) error {
		return e.removeWork(ctx, tx, op, req.Policy, wholeUser)
	})
}

func (e *Engine) removeWork(ctx context.Context, tx store.Tx, op *store.MergeOperation, policy Policy, wholeUser bool) error {
	remover := e.owners.(Remover)

	var user *store.User
	if op.TargetUserID != "" {
		var err error
		if user, err = tx.GetUser(ctx, op.TargetUserID); err != nil {
			return err
		}
	}

	if wholeUser {
		bound, err := tx.ListIdentitiesByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("listing identities of user %s: %w", user.ID, err)
		}
		op.SourceThreadIDs = make([]string, 0, len(bound))
		for _, ident := range bound {
			op.SourceThreadIDs = append(op.SourceThreadIDs, ident.ThreadID)
		}
	}

	idents, err := lockIdentities(ctx, tx, op.SourceThreadIDs)
	if err != nil {
		return err
	}
	if user != nil {
		for _, ident := range idents {
			if !ident.IsBound() || *ident.PersistentUserID != user.ID {
				return fmt.Errorf("%w: thread %s is not bound to user %s", store.ErrConflict, ident.ThreadID, user.ID)
			}
		}
	}
	if user != nil && policy == PolicyDelete {
		if err := e.handOverGroups(ctx, tx, op, user.ID); err != nil {
			return err
		}
	}

	tombstone := "removed:" + op.ID
	for _, ident := range idents {
		for _, kind := range e.kinds {
			var err error
			if policy == PolicyDelete {
				_, err = remover.DeleteOwnership(ctx, tx, kind, ident.ThreadID)
			} else {
				_, err = remover.AnonymizeOwnership(ctx, tx, kind, ident.ThreadID, tombstone)
			}
			if err != nil {
				return &partialFailure{err: fmt.Errorf("removing %s ownership of thread %s: %w", kind, ident.ThreadID, err)}
			}
		}

		if policy == PolicyDelete {
			err = tx.DeleteIdentity(ctx, ident.ID)
		} else {
			anonymizeIdentity(ident, e.now())
			err = tx.UpdateIdentity(ctx, ident)
		}
		if err != nil {
			return &partialFailure{err: fmt.Errorf("removing identity %s: %w", ident.ID, err)}
		}
		op.AffectedThreadIDs = append(op.AffectedThreadIDs, ident.ThreadID)
	}

	if user == nil {
		return nil
	}
	if policy == PolicyDelete {
		if err := dropUserAccess(ctx, tx, user.ID); err != nil {
			return &partialFailure{err: err}
		}
	}
	if user.Status == store.UserStatusSuspended {
		return nil
	}
	if err := tx.UpdateUserStatus(ctx, user.ID, store.UserStatusSuspended); err != nil {
		return &partialFailure{err: fmt.Errorf("suspending user: %w", err)}
	}
	return tx.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: store.SystemActor,
		Action:      store.AuditSuspendUser,
		TargetType:  "user",
		TargetID:    user.ID,
		Timestamp:   e.now(),
		Detail:      map[string]any{"operation_id": op.ID, "policy": string(policy)},
	})
}

// handOverGroups keeps every group the user administers with an admin
// once the user's memberships are dropped. Where the user is the only
// admin, the longest-standing remaining member is promoted. A group with
// no other member cannot be handed over and fails the removal with
// store.ErrConflict.
func (e *Engine) handOverGroups(ctx context.Context, tx store.Tx, op *store.MergeOperation, userID string) error {
	memberships, err := tx.ListGroupsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing groups of user %s: %w", userID, err)
	}
	for _, m := range memberships {
		if m.Role != store.GroupRoleAdmin {
			continue
		}
		members, err := tx.ListGroupMembers(ctx, m.GroupID)
		if err != nil {
			return fmt.Errorf("listing members of group %s: %w", m.GroupID, err)
		}

		var successor *store.GroupMember
		otherAdmin := false
		for i := range members {
			other := &members[i]
			if other.UserID == userID {
				continue
			}
			if other.Role == store.GroupRoleAdmin {
				otherAdmin = true
				break
			}
			if successor == nil {
				successor = other
			}
		}
		if otherAdmin {
			continue
		}
		if successor == nil {
			return fmt.Errorf("%w: user %s is the only member of group %s; add another member before removing", store.ErrConflict, userID, m.GroupID)
		}

		successor.Role = store.GroupRoleAdmin
		if err := tx.UpsertGroupMember(ctx, successor); err != nil {
			return &partialFailure{err: fmt.Errorf("promoting %s in group %s: %w", successor.UserID, m.GroupID, err)}
		}
		if err := tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: store.SystemActor,
			Action:      store.AuditPromoteGroupMember,
			TargetType:  "group",
			TargetID:    m.GroupID,
			Timestamp:   e.now(),
			Detail:      map[string]any{"user_id": successor.UserID, "replaces": userID, "operation_id": op.ID},
		}); err != nil {
			return &partialFailure{err: err}
		}
		e.logger.Info("promoted group member", "group_id", m.GroupID, "user_id", successor.UserID, "operation_id", op.ID)
	}
	return nil
}

// anonymizeIdentity strips contact data and unbinds the identity. A
// pending code is expired rather than cleared so status stays monotonic.
func anonymizeIdentity(ident *store.Identity, now time.Time) {
	ident.PersistentUserID = nil
	ident.MergedAt = nil
	ident.VerificationMethod = ""
	ident.VerificationContact = ""
	if ident.VerificationStatus == store.VerificationPending {
		ident.CodeExpiresAt = &now
	}
}

// dropUserAccess deletes the user's workspace memberships, group
// memberships, and grants that target the user directly.
func dropUserAccess(ctx context.Context, tx store.Tx, userID string) error {
	if err := tx.DeleteWorkspaceMembershipsForUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting workspace memberships: %w", err)
	}
	if err := tx.DeleteGroupMembershipsForUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting group memberships: %w", err)
	}
	if err := tx.DeleteGrantsForUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting acl grants: %w", err)
	}
	return nil
}
