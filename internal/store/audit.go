// ABOUTME: Append-only audit trail of identity and access-control mutations
// ABOUTME: Entries are written inside the mutating transaction and never updated

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditAction names the mutation an audit entry records.
type AuditAction string

const (
	AuditProvisionUser       AuditAction = "provision_user"
	AuditSuspendUser         AuditAction = "suspend_user"
	AuditRequestVerification AuditAction = "request_verification"
	AuditVerifyIdentity      AuditAction = "verify_identity"
	AuditCreateWorkspace     AuditAction = "create_workspace"
	AuditGrantMembership     AuditAction = "grant_membership"
	AuditRevokeMembership    AuditAction = "revoke_membership"
	AuditCreateGroup         AuditAction = "create_group"
	AuditAddGroupMember      AuditAction = "add_group_member"
	AuditRemoveGroupMember   AuditAction = "remove_group_member"
	AuditPromoteGroupMember  AuditAction = "promote_group_member"
	AuditGrantACL            AuditAction = "grant_acl"
	AuditRevokeACL           AuditAction = "revoke_acl"
	AuditRollbackOperation   AuditAction = "rollback_operation"
	AuditCreateToken         AuditAction = "create_token"
)

var knownAuditActions = map[AuditAction]bool{
	AuditProvisionUser:       true,
	AuditSuspendUser:         true,
	AuditRequestVerification: true,
	AuditVerifyIdentity:      true,
	AuditCreateWorkspace:     true,
	AuditGrantMembership:     true,
	AuditRevokeMembership:    true,
	AuditCreateGroup:         true,
	AuditAddGroupMember:      true,
	AuditRemoveGroupMember:   true,
	AuditPromoteGroupMember:  true,
	AuditGrantACL:            true,
	AuditRevokeACL:           true,
	AuditRollbackOperation:   true,
	AuditCreateToken:         true,
}

// Valid reports whether a is one of the recorded actions.
func (a AuditAction) Valid() bool { return knownAuditActions[a] }

// SystemActor is recorded as the actor of mutations with no acting user.
const SystemActor = "system"

// AuditEntry is one row of the audit trail. TargetType is one of
// "identity", "user", "workspace", "group", "acl_grant" or "operation".
type AuditEntry struct {
	ID          string
	ActorUserID string
	Action      AuditAction
	TargetType  string
	TargetID    string
	Timestamp   time.Time
	Detail      map[string]any
}

// AuditFilter narrows ListAuditLog. Nil fields match everything; Since and
// Until are inclusive.
type AuditFilter struct {
	Since       *time.Time
	Until       *time.Time
	ActorUserID *string
	Action      *AuditAction
	TargetType  *string
	TargetID    *string
	Limit       int // 100 when unset, capped at 1000
}

// AppendAuditLog writes e within the transaction, filling in the ID, the
// timestamp and the system actor when they are unset.
func (t *sqliteTx) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ActorUserID == "" {
		e.ActorUserID = SystemActor
	}
	e.Timestamp = nowIfZero(e.Timestamp)

	detail, err := encodeAuditDetail(e.Detail)
	if err != nil {
		return err
	}

	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor_user_id, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorUserID, string(e.Action), e.TargetType, e.TargetID, formatTime(e.Timestamp), detail,
	); err != nil {
		return fmt.Errorf("writing audit entry %s: %w", e.Action, err)
	}

	t.logger.Debug("audit entry written", "action", e.Action, "actor", e.ActorUserID, "target_type", e.TargetType, "target_id", e.TargetID)
	return nil
}

func encodeAuditDetail(detail map[string]any) (*string, error) {
	if detail == nil {
		return nil, nil
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("encoding audit detail: %w", err)
	}
	s := string(data)
	return &s, nil
}

// normalizeAuditLimit turns a requested page size into 1..1000, with 100
// standing in for "unset". Operation listings share it.
func normalizeAuditLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return min(limit, 1000)
}

// auditWhere renders the filter as a WHERE clause and its arguments.
func auditWhere(f AuditFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.Since != nil {
		add("ts >= ?", formatTime(*f.Since))
	}
	if f.Until != nil {
		add("ts <= ?", formatTime(*f.Until))
	}
	if f.ActorUserID != nil {
		add("actor_user_id = ?", *f.ActorUserID)
	}
	if f.Action != nil {
		add("action = ?", string(*f.Action))
	}
	if f.TargetType != nil {
		add("target_type = ?", *f.TargetType)
	}
	if f.TargetID != nil {
		add("target_id = ?", *f.TargetID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAuditLog returns entries matching f, newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	where, args := auditWhere(f)
	args = append(args, normalizeAuditLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, actor_user_id, action, target_type, target_id, ts, detail_json
		FROM audit_log`+where+` ORDER BY ts DESC, audit_id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var action, ts string
		var detail *string
		if err := rows.Scan(&e.ID, &e.ActorUserID, &action, &e.TargetType, &e.TargetID, &ts, &detail); err != nil {
			return nil, fmt.Errorf("reading audit row: %w", err)
		}
		e.Action = AuditAction(action)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if detail != nil {
			if err := json.Unmarshal([]byte(*detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("decoding audit detail %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return entries, nil
}
