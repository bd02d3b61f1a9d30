// ABOUTME: MergeOperation audit relation for SQLite transactions
// ABOUTME: Rows are inserted and updated to a terminal status but never deleted

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const operationColumns = `operation_id, operation_type, source_thread_ids, affected_thread_ids,
	target_user_id, channel, status, error_message, created_at, completed_at`

// CreateMergeOperation inserts a new operation row. Generates ID and
// CreatedAt if not set.
func (t *sqliteTx) CreateMergeOperation(ctx context.Context, op *MergeOperation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	op.CreatedAt = nowIfZero(op.CreatedAt)
	if op.Status == "" {
		op.Status = OperationPending
	}

	sources, affected, err := marshalThreadIDs(op)
	if err != nil {
		return err
	}

	_, err = t.q.ExecContext(ctx,
		`INSERT INTO merge_operations (`+operationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID,
		op.Type,
		sources,
		affected,
		op.TargetUserID,
		op.Channel,
		op.Status,
		nullString(op.ErrorMessage),
		formatTime(op.CreatedAt),
		formatTimePtr(op.CompletedAt),
	)
	if err != nil {
		return mapWriteError(err, "merge operation")
	}

	t.logger.Debug("created merge operation", "operation_id", op.ID, "type", op.Type)
	return nil
}

// UpdateMergeOperation stores the source and affected threads, status,
// error message, and completion time of an operation. Sources change only
// when an operation resolves them inside its own transaction.
func (t *sqliteTx) UpdateMergeOperation(ctx context.Context, op *MergeOperation) error {
	sources, affected, err := marshalThreadIDs(op)
	if err != nil {
		return err
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE merge_operations SET
			source_thread_ids = ?,
			affected_thread_ids = ?,
			status = ?,
			error_message = ?,
			completed_at = ?
		WHERE operation_id = ?`,
		sources,
		affected,
		op.Status,
		nullString(op.ErrorMessage),
		formatTimePtr(op.CompletedAt),
		op.ID,
	)
	if err != nil {
		return mapWriteError(err, "merge operation")
	}
	if err := mustAffect(res, "merge operation", op.ID); err != nil {
		return err
	}

	t.logger.Debug("updated merge operation", "operation_id", op.ID, "status", op.Status)
	return nil
}

// GetMergeOperation retrieves an operation by ID.
func (t *sqliteTx) GetMergeOperation(ctx context.Context, id string) (*MergeOperation, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM merge_operations WHERE operation_id = ?`, id)
	op, err := scanMergeOperation(row)
	if err != nil {
		return nil, notFound(err, "merge operation", id)
	}
	return op, nil
}

// ListMergeOperations returns operations matching the filter, newest first.
func (t *sqliteTx) ListMergeOperations(ctx context.Context, f MergeOperationFilter) ([]*MergeOperation, error) {
	var typ, status *string
	if f.Type != nil {
		s := string(*f.Type)
		typ = &s
	}
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT `+operationColumns+` FROM merge_operations
		WHERE (? IS NULL OR target_user_id = ?)
		  AND (? IS NULL OR operation_type = ?)
		  AND (? IS NULL OR status = ?)
		ORDER BY created_at DESC, operation_id
		LIMIT ?`,
		f.TargetUserID, f.TargetUserID,
		typ, typ,
		status, status,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying merge operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ops := []*MergeOperation{}
	for rows.Next() {
		op, err := scanMergeOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning merge operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merge operations: %w", err)
	}
	return ops, nil
}

func marshalThreadIDs(op *MergeOperation) (string, string, error) {
	sources := op.SourceThreadIDs
	if sources == nil {
		sources = []string{}
	}
	affected := op.AffectedThreadIDs
	if affected == nil {
		affected = []string{}
	}
	s, err := json.Marshal(sources)
	if err != nil {
		return "", "", fmt.Errorf("marshaling source threads: %w", err)
	}
	a, err := json.Marshal(affected)
	if err != nil {
		return "", "", fmt.Errorf("marshaling affected threads: %w", err)
	}
	return string(s), string(a), nil
}

func scanMergeOperation(scanner interface{ Scan(dest ...any) error }) (*MergeOperation, error) {
	var op MergeOperation
	var typ, sources, affected, status, createdAt string
	var errMsg, completedAt *string

	if err := scanner.Scan(
		&op.ID,
		&typ,
		&sources,
		&affected,
		&op.TargetUserID,
		&op.Channel,
		&status,
		&errMsg,
		&createdAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	op.Type = OperationType(typ)
	op.Status = OperationStatus(status)
	op.ErrorMessage = derefString(errMsg)
	if err := json.Unmarshal([]byte(sources), &op.SourceThreadIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling source threads: %w", err)
	}
	if err := json.Unmarshal([]byte(affected), &op.AffectedThreadIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling affected threads: %w", err)
	}

	var err error
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if op.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &op, nil
}
