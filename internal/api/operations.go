// ABOUTME: IdentityService handlers for merge, split, remove, and their audit records
// ABOUTME: A failed operation returns its error status; the failed record stays queryable

package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/merge"
	"github.com/2389/coven-identity/internal/store"
)

// Merge binds the identities of the source threads to the target user.
func (s *Service) Merge(ctx context.Context, req *MergeRequest) (*OperationResponse, error) {
	op, err := s.engine.Merge(ctx, req.SourceThreadIDs, req.TargetUserID, req.Channel)
	return s.operationResult("Merge", op, err)
}

// Split unbinds the given threads from a user.
func (s *Service) Split(ctx context.Context, req *SplitRequest) (*OperationResponse, error) {
	op, err := s.engine.Split(ctx, req.UserID, req.ThreadIDs)
	return s.operationResult("Split", op, err)
}

// Remove applies a retention policy to a user's or threads' data.
func (s *Service) Remove(ctx context.Context, req *RemoveRequest) (*OperationResponse, error) {
	op, err := s.engine.Remove(ctx, merge.RemoveRequest{
		UserID:    req.UserID,
		ThreadIDs: req.ThreadIDs,
		Policy:    merge.Policy(req.Policy),
	})
	return s.operationResult("Remove", op, err)
}

// operationResult logs the ID of a failed operation so callers can look
// the record up; gRPC errors carry no payload.
func (s *Service) operationResult(method string, op *store.MergeOperation, err error) (*OperationResponse, error) {
	if err != nil {
		if op != nil {
			s.logger.Info("operation failed", "method", method, "operation_id", op.ID, "error", err)
		}
		return nil, s.fail(method, err)
	}
	return &OperationResponse{Operation: operationToWire(op)}, nil
}

// GetOperation returns one operation record.
func (s *Service) GetOperation(ctx context.Context, req *OperationRequest) (*OperationResponse, error) {
	op, err := s.engine.Get(ctx, req.OperationID)
	if err != nil {
		return nil, s.fail("GetOperation", err)
	}
	return &OperationResponse{Operation: operationToWire(op)}, nil
}

// ListOperations returns operation records, newest first.
func (s *Service) ListOperations(ctx context.Context, req *ListOperationsRequest) (*ListOperationsResponse, error) {
	f := store.MergeOperationFilter{TargetUserID: optional(req.TargetUserID), Limit: req.Limit}
	if req.Type != "" {
		t := store.OperationType(req.Type)
		f.Type = &t
	}
	if req.Status != "" {
		st := store.OperationStatus(req.Status)
		f.Status = &st
	}
	ops, err := s.engine.List(ctx, f)
	if err != nil {
		return nil, s.fail("ListOperations", err)
	}
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, operationToWire(op))
	}
	return &ListOperationsResponse{Operations: out}, nil
}

// MarkRolledBack records an operator compensation of an operation.
func (s *Service) MarkRolledBack(ctx context.Context, req *RollbackRequest) (*OperationResponse, error) {
	if req.OperationID == "" {
		return nil, status.Error(codes.InvalidArgument, "operation_id required")
	}
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	op, err := s.engine.MarkRolledBack(ctx, req.OperationID, actor, req.Reason)
	if err != nil {
		return nil, s.fail("MarkRolledBack", err)
	}
	return &OperationResponse{Operation: operationToWire(op)}, nil
}

// RegisterOwnership records which thread owns a resource.
func (s *Service) RegisterOwnership(ctx context.Context, req *RegisterOwnershipRequest) (*OwnershipResponse, error) {
	o, err := s.engine.RegisterOwnership(ctx, req.ResourceKind, req.ResourceID, req.ThreadID)
	if err != nil {
		return nil, s.fail("RegisterOwnership", err)
	}
	return &OwnershipResponse{Ownership: ownershipToWire(o)}, nil
}

// ListOwnership returns ownership rows matching the request filters.
func (s *Service) ListOwnership(ctx context.Context, req *ListOwnershipRequest) (*ListOwnershipResponse, error) {
	rows, err := s.engine.ListOwnership(ctx, store.OwnershipFilter{
		ResourceKind: optional(req.ResourceKind),
		ThreadID:     optional(req.ThreadID),
		UserID:       optional(req.UserID),
	})
	if err != nil {
		return nil, s.fail("ListOwnership", err)
	}
	out := make([]Ownership, 0, len(rows))
	for i := range rows {
		out = append(out, ownershipToWire(&rows[i]))
	}
	return &ListOwnershipResponse{Rows: out}, nil
}

// ListAuditLog returns administrative audit entries, newest first.
func (s *Service) ListAuditLog(ctx context.Context, req *ListAuditLogRequest) (*ListAuditLogResponse, error) {
	f := store.AuditFilter{
		Since:       req.Since,
		ActorUserID: optional(req.ActorUserID),
		TargetType:  optional(req.TargetType),
		TargetID:    optional(req.TargetID),
		Limit:       req.Limit,
	}
	if req.Action != "" {
		a := store.AuditAction(req.Action)
		if !a.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "unknown audit action %q", req.Action)
		}
		f.Action = &a
	}
	entries, err := s.store.ListAuditLog(ctx, f)
	if err != nil {
		return nil, s.fail("ListAuditLog", err)
	}
	out := make([]AuditEntry, 0, len(entries))
	for i := range entries {
		out = append(out, auditToWire(&entries[i]))
	}
	return &ListAuditLogResponse{Entries: out}, nil
}
