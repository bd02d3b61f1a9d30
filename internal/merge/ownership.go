// ABOUTME: Ownership ports the engine drives inside its transaction
// ABOUTME: StoreOwnership implements them over the built-in resource_ownership relation

package merge

import (
	"context"

	"github.com/2389/coven-identity/internal/store"
)

// DefaultResourceKinds are the owned-resource kinds reassigned when the
// configuration names none.
var DefaultResourceKinds = []string{"file_path", "table_path", "collection", "reminder", "workflow"}

// Reassigner repoints ownership of one resource kind from a thread to a
// user, or back to per-thread ownership when toUserID is nil. It runs
// inside the engine's transaction and must only write through tx.
type Reassigner interface {
	ReassignOwnership(ctx context.Context, tx store.Tx, resourceKind, fromThreadID string, toUserID *string) (int64, error)
}

// Remover applies a retention policy to the resources a thread owns.
// Reassigners that also implement Remover enable Remove.
type Remover interface {
	DeleteOwnership(ctx context.Context, tx store.Tx, resourceKind, threadID string) (int64, error)
	AnonymizeOwnership(ctx context.Context, tx store.Tx, resourceKind, threadID, tombstone string) (int64, error)
}

// StoreOwnership reassigns rows of the resource_ownership relation.
type StoreOwnership struct{}

// ReassignOwnership implements Reassigner.
func (StoreOwnership) ReassignOwnership(ctx context.Context, tx store.Tx, resourceKind, fromThreadID string, toUserID *string) (int64, error) {
	return tx.ReassignOwnership(ctx, resourceKind, fromThreadID, toUserID)
}

// DeleteOwnership implements Remover.
func (StoreOwnership) DeleteOwnership(ctx context.Context, tx store.Tx, resourceKind, threadID string) (int64, error) {
	return tx.DeleteOwnershipByThread(ctx, resourceKind, threadID)
}

// AnonymizeOwnership implements Remover.
func (StoreOwnership) AnonymizeOwnership(ctx context.Context, tx store.Tx, resourceKind, threadID, tombstone string) (int64, error) {
	return tx.AnonymizeOwnershipByThread(ctx, resourceKind, threadID, tombstone)
}

var (
	_ Reassigner = StoreOwnership{}
	_ Remover    = StoreOwnership{}
)

// RegisterOwnership records that threadID owns a resource of the built-in
// relation. If the thread's identity is already bound, the row is created
// pointing at the bound user so later registrations match merged ones.
func (e *Engine) RegisterOwnership(ctx context.Context, resourceKind, resourceID, threadID string) (*store.ResourceOwnership, error) {
	o := &store.ResourceOwnership{
		ResourceKind: resourceKind,
		ResourceID:   resourceID,
		ThreadID:     threadID,
		CreatedAt:    e.now(),
	}
	err := e.store.Update(ctx, func(tx store.Tx) error {
		ident, err := tx.GetIdentityByThread(ctx, threadID)
		if err != nil {
			return err
		}
		if ident.IsBound() {
			userID := *ident.PersistentUserID
			o.UserID = &userID
		}
		return tx.SetOwnership(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOwnership returns rows of the built-in relation matching f.
func (e *Engine) ListOwnership(ctx context.Context, f store.OwnershipFilter) ([]store.ResourceOwnership, error) {
	var rows []store.ResourceOwnership
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		rows, err = tx.ListOwnership(ctx, f)
		return err
	})
	return rows, err
}
