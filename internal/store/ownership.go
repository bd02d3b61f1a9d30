// ABOUTME: Built-in resource ownership relation for SQLite transactions
// ABOUTME: Storage collaborators record thread ownership here; merges repoint user_id

package store

import (
	"context"
	"fmt"
)

// SetOwnership records (or replaces) the owner of a resource.
func (t *sqliteTx) SetOwnership(ctx context.Context, o *ResourceOwnership) error {
	if o.ResourceKind == "" || o.ResourceID == "" || o.ThreadID == "" {
		return fmt.Errorf("%w: resource kind, resource id, and thread id are required", ErrValidation)
	}
	o.CreatedAt = nowIfZero(o.CreatedAt)

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO resource_ownership (resource_kind, resource_id, thread_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (resource_kind, resource_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			user_id = excluded.user_id`,
		o.ResourceKind, o.ResourceID, o.ThreadID, o.UserID, formatTime(o.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "resource ownership")
	}

	t.logger.Debug("set resource ownership", "resource", o.ResourceKind+"/"+o.ResourceID, "thread_id", o.ThreadID)
	return nil
}

// ListOwnership returns ownership rows matching the filter.
func (t *sqliteTx) ListOwnership(ctx context.Context, f OwnershipFilter) ([]ResourceOwnership, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT resource_kind, resource_id, thread_id, user_id, created_at
		FROM resource_ownership
		WHERE (? IS NULL OR resource_kind = ?)
		  AND (? IS NULL OR thread_id = ?)
		  AND (? IS NULL OR user_id = ?)
		ORDER BY resource_kind, resource_id`,
		f.ResourceKind, f.ResourceKind,
		f.ThreadID, f.ThreadID,
		f.UserID, f.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying resource ownership: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []ResourceOwnership{}
	for rows.Next() {
		var o ResourceOwnership
		var createdAt string
		if err := rows.Scan(&o.ResourceKind, &o.ResourceID, &o.ThreadID, &o.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning resource ownership: %w", err)
		}
		if o.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource ownership: %w", err)
	}
	return out, nil
}

// ReassignOwnership points every row of kind owned by fromThreadID at
// toUserID. A nil toUserID returns the rows to per-thread ownership.
func (t *sqliteTx) ReassignOwnership(ctx context.Context, kind, fromThreadID string, toUserID *string) (int64, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE resource_ownership SET user_id = ? WHERE resource_kind = ? AND thread_id = ?`,
		toUserID, kind, fromThreadID)
	if err != nil {
		return 0, fmt.Errorf("reassigning %s ownership: %w", kind, err)
	}
	return res.RowsAffected()
}

// DeleteOwnershipByThread deletes every row of kind owned by threadID.
func (t *sqliteTx) DeleteOwnershipByThread(ctx context.Context, kind, threadID string) (int64, error) {
	res, err := t.q.ExecContext(ctx,
		`DELETE FROM resource_ownership WHERE resource_kind = ? AND thread_id = ?`, kind, threadID)
	if err != nil {
		return 0, fmt.Errorf("deleting %s ownership: %w", kind, err)
	}
	return res.RowsAffected()
}

// AnonymizeOwnershipByThread detaches every row of kind owned by threadID
// from both the thread and any user, keeping the resource itself.
func (t *sqliteTx) AnonymizeOwnershipByThread(ctx context.Context, kind, threadID, tombstone string) (int64, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE resource_ownership SET thread_id = ?, user_id = NULL WHERE resource_kind = ? AND thread_id = ?`,
		tombstone, kind, threadID)
	if err != nil {
		return 0, fmt.Errorf("anonymizing %s ownership: %w", kind, err)
	}
	return res.RowsAffected()
}
