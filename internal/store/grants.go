// ABOUTME: ACL grant persistence for SQLite transactions
// ABOUTME: Upserts on the (workspace, resource, target) tuple; expiry is applied on read

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const grantColumns = `grant_id, workspace_id, resource_type, resource_id, target_user_id, target_group_id,
	permission, created_at, expires_at`

// grantTupleWhere matches one (workspace, resource, target) tuple. Targets
// are compared with IS so a NULL column matches a nil argument.
const grantTupleWhere = `workspace_id = ? AND resource_type = ? AND resource_id = ?
	AND target_user_id IS ? AND target_group_id IS ?`

// UpsertGrant stores a grant, replacing the permission and expiry of an
// existing grant on the same tuple. Generates ID and CreatedAt if not set.
func (t *sqliteTx) UpsertGrant(ctx context.Context, g *ACLGrant) error {
	if err := ValidateGrant(g); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.CreatedAt = nowIfZero(g.CreatedAt)

	res, err := t.q.ExecContext(ctx,
		`UPDATE acl_grants SET permission = ?, expires_at = ? WHERE `+grantTupleWhere,
		g.Permission, formatTimePtr(g.ExpiresAt),
		g.WorkspaceID, g.ResourceType, g.ResourceID, g.TargetUserID, g.TargetGroupID,
	)
	if err != nil {
		return mapWriteError(err, "acl grant")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		t.logger.Debug("replaced acl grant", "workspace_id", g.WorkspaceID, "resource", g.ResourceType+"/"+g.ResourceID)
		return nil
	}

	_, err = t.q.ExecContext(ctx,
		`INSERT INTO acl_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.WorkspaceID,
		g.ResourceType,
		g.ResourceID,
		g.TargetUserID,
		g.TargetGroupID,
		g.Permission,
		formatTime(g.CreatedAt),
		formatTimePtr(g.ExpiresAt),
	)
	if err != nil {
		return mapWriteError(err, "acl grant")
	}

	t.logger.Debug("created acl grant", "grant_id", g.ID, "workspace_id", g.WorkspaceID,
		"resource", g.ResourceType+"/"+g.ResourceID, "permission", g.Permission)
	return nil
}

// DeleteGrant removes the grant on a tuple. Idempotent.
func (t *sqliteTx) DeleteGrant(ctx context.Context, workspaceID, resourceType, resourceID string, target GrantTarget) error {
	if err := ValidateGrantTarget(target); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx, `DELETE FROM acl_grants WHERE `+grantTupleWhere,
		workspaceID, resourceType, resourceID, target.UserID, target.GroupID)
	if err != nil {
		return fmt.Errorf("deleting acl grant: %w", err)
	}
	t.logger.Debug("deleted acl grant", "workspace_id", workspaceID, "resource", resourceType+"/"+resourceID)
	return nil
}

// ListGrants returns the grants on a resource that are active at activeAt.
// Expired rows stay in storage but are never returned.
func (t *sqliteTx) ListGrants(ctx context.Context, workspaceID, resourceType, resourceID string, activeAt time.Time) ([]ACLGrant, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM acl_grants
		WHERE workspace_id = ? AND resource_type = ? AND resource_id = ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at, grant_id`,
		workspaceID, resourceType, resourceID, formatTime(activeAt),
	)
	if err != nil {
		return nil, fmt.Errorf("querying acl grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	grants := []ACLGrant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning acl grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating acl grants: %w", err)
	}
	return grants, nil
}

// DeleteGrantsForUser removes every grant that targets a user directly.
func (t *sqliteTx) DeleteGrantsForUser(ctx context.Context, userID string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM acl_grants WHERE target_user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting acl grants: %w", err)
	}
	return nil
}

func scanGrant(scanner interface{ Scan(dest ...any) error }) (ACLGrant, error) {
	var g ACLGrant
	var perm, createdAt string
	var expiresAt *string
	if err := scanner.Scan(
		&g.ID,
		&g.WorkspaceID,
		&g.ResourceType,
		&g.ResourceID,
		&g.TargetUserID,
		&g.TargetGroupID,
		&perm,
		&createdAt,
		&expiresAt,
	); err != nil {
		return g, err
	}
	g.Permission = Permission(perm)
	var err error
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return g, err
	}
	g.ExpiresAt, err = parseTimePtr(expiresAt)
	return g, err
}
