// ABOUTME: Merge/Split/Remove Engine: audited, all-or-nothing identity consolidation
// ABOUTME: Each attempt records a pending row, runs one transaction, then completes or fails

package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-identity/internal/store"
)

// Config contains configuration options for the Engine.
type Config struct {
	Store         store.Store
	Logger        *slog.Logger
	Now           func() time.Time
	Ownership     Reassigner // defaults to StoreOwnership
	ResourceKinds []string   // defaults to DefaultResourceKinds
}

// Engine executes merge, split, and remove operations.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	owners Reassigner
	kinds  []string
}

// New creates a new Engine with the given configuration.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	owners := cfg.Ownership
	if owners == nil {
		owners = StoreOwnership{}
	}
	kinds := cfg.ResourceKinds
	if len(kinds) == 0 {
		kinds = DefaultResourceKinds
	}
	return &Engine{
		store:  cfg.Store,
		logger: logger.With("component", "merge"),
		now:    func() time.Time { return now().UTC() },
		owners: owners,
		kinds:  append([]string(nil), kinds...),
	}
}

// partialFailure marks an error raised after some writes of the unit of
// work were issued. It never leaves the engine: run converts it into a
// failed operation and returns the underlying cause.
type partialFailure struct {
	err error
}

func (p *partialFailure) Error() string { return p.err.Error() }
func (p *partialFailure) Unwrap() error { return p.err }

// workFunc performs an operation's writes. It appends the threads it
// changed to op.AffectedThreadIDs.
type workFunc func(ctx context.Context, tx store.Tx, op *store.MergeOperation) error

// run records op as pending, executes work in a single transaction that
// also marks op completed, and on any failure marks op failed in a
// separate transaction. The returned operation is non-nil whenever the
// pending row was written, including on failure.
func (e *Engine) run(ctx context.Context, op *store.MergeOperation, work workFunc) (*store.MergeOperation, error) {
	op.ID = uuid.New().String()
	op.Status = store.OperationPending
	op.CreatedAt = e.now()

	if err := e.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateMergeOperation(ctx, op)
	}); err != nil {
		return nil, fmt.Errorf("recording %s operation: %w", op.Type, err)
	}

	// Once recorded, an operation runs to completion or failure.
	ctx = context.WithoutCancel(ctx)

	err := e.store.Update(ctx, func(tx store.Tx) error {
		op.AffectedThreadIDs = nil
		if err := work(ctx, tx, op); err != nil {
			return err
		}
		now := e.now()
		op.Status = store.OperationCompleted
		op.CompletedAt = &now
		if err := tx.UpdateMergeOperation(ctx, op); err != nil {
			return &partialFailure{err: fmt.Errorf("completing operation: %w", err)}
		}
		return nil
	})
	if err != nil {
		return e.fail(ctx, op, err)
	}

	e.logger.Info("operation completed",
		"operation_id", op.ID,
		"type", op.Type,
		"target_user_id", op.TargetUserID,
		"affected", len(op.AffectedThreadIDs),
	)
	return op, nil
}

// fail records the failure on the audit row. The returned error is the
// same text stored in op.ErrorMessage.
func (e *Engine) fail(ctx context.Context, op *store.MergeOperation, err error) (*store.MergeOperation, error) {
	cause := err
	var pf *partialFailure
	if errors.As(err, &pf) {
		cause = pf.err
		e.logger.Error("operation rolled back after partial failure", "operation_id", op.ID, "type", op.Type, "error", cause)
	} else {
		e.logger.Warn("operation failed", "operation_id", op.ID, "type", op.Type, "error", cause)
	}

	now := e.now()
	op.Status = store.OperationFailed
	op.ErrorMessage = cause.Error()
	op.AffectedThreadIDs = nil
	op.CompletedAt = &now

	if uerr := e.store.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateMergeOperation(ctx, op)
	}); uerr != nil {
		e.logger.Error("failed to record operation failure", "operation_id", op.ID, "error", uerr)
	}
	return op, cause
}

// reassign calls the ownership port once per resource kind for a thread.
func (e *Engine) reassign(ctx context.Context, tx store.Tx, threadID string, toUserID *string) error {
	for _, kind := range e.kinds {
		n, err := e.owners.ReassignOwnership(ctx, tx, kind, threadID, toUserID)
		if err != nil {
			return &partialFailure{err: fmt.Errorf("reassigning %s ownership of thread %s: %w", kind, threadID, err)}
		}
		if n > 0 {
			e.logger.Debug("reassigned ownership", "kind", kind, "thread_id", threadID, "rows", n)
		}
	}
	return nil
}

// normalizeThreads drops empty and duplicate thread IDs, keeping order.
func normalizeThreads(threadIDs []string) []string {
	seen := make(map[string]bool, len(threadIDs))
	out := make([]string, 0, len(threadIDs))
	for _, id := range threadIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Get retrieves an operation by ID.
func (e *Engine) Get(ctx context.Context, operationID string) (*store.MergeOperation, error) {
	var op *store.MergeOperation
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		op, err = tx.GetMergeOperation(ctx, operationID)
		return err
	})
	return op, err
}

// List returns operations matching the filter, newest first.
func (e *Engine) List(ctx context.Context, f store.MergeOperationFilter) ([]*store.MergeOperation, error) {
	var ops []*store.MergeOperation
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		ops, err = tx.ListMergeOperations(ctx, f)
		return err
	})
	return ops, err
}

// MarkRolledBack records that an operator compensated a completed or
// failed operation. It changes only the audit row; the compensation itself
// is performed by the operator, typically with Split or Merge.
func (e *Engine) MarkRolledBack(ctx context.Context, operationID, actorUserID, reason string) (*store.MergeOperation, error) {
	var op *store.MergeOperation
	err := e.store.Update(ctx, func(tx store.Tx) error {
		var err error
		op, err = tx.GetMergeOperation(ctx, operationID)
		if err != nil {
			return err
		}
		if op.Status != store.OperationCompleted && op.Status != store.OperationFailed {
			return fmt.Errorf("%w: operation %s is %s", store.ErrConflict, operationID, op.Status)
		}
		op.Status = store.OperationRolledBack
		if err := tx.UpdateMergeOperation(ctx, op); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditRollbackOperation,
			TargetType:  "operation",
			TargetID:    operationID,
			Timestamp:   e.now(),
			Detail:      map[string]any{"type": string(op.Type), "reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("operation marked rolled back", "operation_id", operationID, "actor", actorUserID)
	return op, nil
}
