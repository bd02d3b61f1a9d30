// ABOUTME: Merge and split: bind thread identities to a user and back
// ABOUTME: Preconditions are checked on every locked identity before any write

package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/coven-identity/internal/store"
)

// Merge binds the identities of sourceThreadIDs to targetUserID and
// repoints their owned resources. If any identity is bound to a different
// user the whole operation fails with store.ErrConflict and nothing
// changes. Re-running a completed merge succeeds without changing any
// identity; the retry still records its own completed operation, with no
// affected threads. The target user is provisioned if it does not exist.
func (e *Engine) Merge(ctx context.Context, sourceThreadIDs []string, targetUserID, channel string) (*store.MergeOperation, error) {
	threads := normalizeThreads(sourceThreadIDs)
	if len(threads) == 0 {
		return nil, fmt.Errorf("%w: at least one source thread is required", store.ErrValidation)
	}
	if targetUserID == "" || targetUserID == store.SystemActor {
		return nil, fmt.Errorf("%w: invalid target user %q", store.ErrValidation, targetUserID)
	}

	op := &store.MergeOperation{
		Type:            store.OperationMerge,
		SourceThreadIDs: threads,
		TargetUserID:    targetUserID,
		Channel:         channel,
	}
	return e.run(ctx, op, e.mergeWork)
}

func (e *Engine) mergeWork(ctx context.Context, tx store.Tx, op *store.MergeOperation) error {
	idents, err := lockIdentities(ctx, tx, op.SourceThreadIDs)
	if err != nil {
		return err
	}
	for _, ident := range idents {
		if ident.IsBound() && *ident.PersistentUserID != op.TargetUserID {
			return fmt.Errorf("%w: thread %s is bound to user %s", store.ErrConflict, ident.ThreadID, *ident.PersistentUserID)
		}
	}

	if err := e.ensureTarget(ctx, tx, op); err != nil {
		return err
	}

	now := e.now()
	target := op.TargetUserID
	for _, ident := range idents {
		if !ident.IsBound() {
			ident.PersistentUserID = &target
			ident.MergedAt = &now
			if err := tx.UpdateIdentity(ctx, ident); err != nil {
				return &partialFailure{err: fmt.Errorf("binding identity %s: %w", ident.ID, err)}
			}
			op.AffectedThreadIDs = append(op.AffectedThreadIDs, ident.ThreadID)
		}
		// Rows registered after an earlier bind still need repointing.
		if err := e.reassign(ctx, tx, ident.ThreadID, &target); err != nil {
			return err
		}
	}
	return nil
}

// ensureTarget provisions the target user when missing and rejects
// suspended targets.
func (e *Engine) ensureTarget(ctx context.Context, tx store.Tx, op *store.MergeOperation) error {
	u, err := tx.GetUser(ctx, op.TargetUserID)
	switch {
	case err == nil:
		if u.Status != store.UserStatusActive {
			return fmt.Errorf("%w: target user %s is %s", store.ErrConflict, u.ID, u.Status)
		}
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	now := e.now()
	if err := tx.CreateUser(ctx, &store.User{ID: op.TargetUserID, Status: store.UserStatusActive, CreatedAt: now}); err != nil {
		return fmt.Errorf("provisioning target user: %w", err)
	}
	return tx.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: store.SystemActor,
		Action:      store.AuditProvisionUser,
		TargetType:  "user",
		TargetID:    op.TargetUserID,
		Timestamp:   now,
		Detail:      map[string]any{"operation_id": op.ID},
	})
}

// Split unbinds the identities of threadIDs from userID and returns their
// owned resources to per-thread ownership. Threads already unbound are
// skipped; a thread bound to a different user is a conflict. Verification
// status is left as is.
func (e *Engine) Split(ctx context.Context, userID string, threadIDs []string) (*store.MergeOperation, error) {
	threads := normalizeThreads(threadIDs)
	if userID == "" || len(threads) == 0 {
		return nil, fmt.Errorf("%w: user and at least one thread are required", store.ErrValidation)
	}

	op := &store.MergeOperation{
		Type:            store.OperationSplit,
		SourceThreadIDs: threads,
		TargetUserID:    userID,
	}
	return e.run(ctx, op, e.splitWork)
}

func (e *Engine) splitWork(ctx context.Context, tx store.Tx, op *store.MergeOperation) error {
	if _, err := tx.GetUser(ctx, op.TargetUserID); err != nil {
		return err
	}
	idents, err := lockIdentities(ctx, tx, op.SourceThreadIDs)
	if err != nil {
		return err
	}
	for _, ident := range idents {
		if ident.IsBound() && *ident.PersistentUserID != op.TargetUserID {
			return fmt.Errorf("%w: thread %s is bound to user %s", store.ErrConflict, ident.ThreadID, *ident.PersistentUserID)
		}
	}

	for _, ident := range idents {
		if !ident.IsBound() {
			continue
		}
		ident.PersistentUserID = nil
		ident.MergedAt = nil
		if err := tx.UpdateIdentity(ctx, ident); err != nil {
			return &partialFailure{err: fmt.Errorf("unbinding identity %s: %w", ident.ID, err)}
		}
		if err := e.reassign(ctx, tx, ident.ThreadID, nil); err != nil {
			return err
		}
		op.AffectedThreadIDs = append(op.AffectedThreadIDs, ident.ThreadID)
	}
	return nil
}

// lockIdentities loads and locks the identity of every thread, in order.
func lockIdentities(ctx context.Context, tx store.Tx, threadIDs []string) ([]*store.Identity, error) {
	idents := make([]*store.Identity, 0, len(threadIDs))
	for _, threadID := range threadIDs {
		ident, err := tx.LockIdentityByThread(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("loading identity for thread %s: %w", threadID, err)
		}
		idents = append(idents, ident)
	}
	return idents, nil
}
