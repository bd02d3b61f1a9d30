// ABOUTME: Workspace and workspace membership persistence for SQLite transactions
// ABOUTME: Owner references are validated before insert and enforced again by CHECK constraints

package store

import (
	"context"
	"fmt"
)

const workspaceColumns = `workspace_id, type, name, owner_user_id, owner_group_id, owner_system_id, created_at`

// CreateWorkspace inserts a new workspace. Returns ErrConflict when the
// owner already has an individual workspace or a public workspace exists.
func (t *sqliteTx) CreateWorkspace(ctx context.Context, w *Workspace) error {
	if w.ID == "" {
		return fmt.Errorf("%w: workspace id is required", ErrValidation)
	}
	if err := ValidateWorkspace(w); err != nil {
		return err
	}
	w.CreatedAt = nowIfZero(w.CreatedAt)

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID,
		w.Type,
		w.Name,
		w.OwnerUserID,
		w.OwnerGroupID,
		w.OwnerSystemID,
		formatTime(w.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "workspace")
	}

	t.logger.Debug("created workspace", "workspace_id", w.ID, "type", w.Type)
	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (t *sqliteTx) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE workspace_id = ?`, id)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, notFound(err, "workspace", id)
	}
	return w, nil
}

// GetIndividualWorkspace retrieves the individual workspace owned by a user.
func (t *sqliteTx) GetIndividualWorkspace(ctx context.Context, userID string) (*Workspace, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE type = 'individual' AND owner_user_id = ?`, userID)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, notFound(err, "individual workspace for user", userID)
	}
	return w, nil
}

// GetPublicWorkspace retrieves the public singleton workspace.
func (t *sqliteTx) GetPublicWorkspace(ctx context.Context) (*Workspace, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE type = 'public'`)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, notFound(err, "workspace", PublicOwnerID)
	}
	return w, nil
}

// UpsertWorkspaceMember adds a member or replaces an existing member's role.
func (t *sqliteTx) UpsertWorkspaceMember(ctx context.Context, m *WorkspaceMember) error {
	if !IsValidWorkspaceRole(m.Role) {
		return fmt.Errorf("%w: invalid workspace role %q", ErrValidation, m.Role)
	}
	m.GrantedAt = nowIfZero(m.GrantedAt)

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET
			role = excluded.role,
			granted_by = excluded.granted_by,
			granted_at = excluded.granted_at`,
		m.WorkspaceID, m.UserID, m.Role, m.GrantedBy, formatTime(m.GrantedAt),
	)
	if err != nil {
		return mapWriteError(err, "workspace member")
	}

	t.logger.Debug("upserted workspace member", "workspace_id", m.WorkspaceID, "user_id", m.UserID, "role", m.Role)
	return nil
}

// GetWorkspaceMember retrieves a single workspace membership.
func (t *sqliteTx) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT workspace_id, user_id, role, granted_by, granted_at
		FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID)
	m, err := scanWorkspaceMember(row)
	if err != nil {
		return nil, notFound(err, "workspace member", workspaceID+"/"+userID)
	}
	return &m, nil
}

// DeleteWorkspaceMember removes a membership. Idempotent.
func (t *sqliteTx) DeleteWorkspaceMember(ctx context.Context, workspaceID, userID string) error {
	_, err := t.q.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("deleting workspace member: %w", err)
	}
	t.logger.Debug("deleted workspace member", "workspace_id", workspaceID, "user_id", userID)
	return nil
}

// ListWorkspaceMembers returns every member of a workspace.
func (t *sqliteTx) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT workspace_id, user_id, role, granted_by, granted_at
		FROM workspace_members WHERE workspace_id = ?
		ORDER BY granted_at, user_id`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying workspace members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := []WorkspaceMember{}
	for rows.Next() {
		m, err := scanWorkspaceMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workspace member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workspace members: %w", err)
	}
	return members, nil
}

// DeleteWorkspaceMembershipsForUser removes a user from every workspace.
func (t *sqliteTx) DeleteWorkspaceMembershipsForUser(ctx context.Context, userID string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM workspace_members WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting workspace memberships: %w", err)
	}
	return nil
}

func scanWorkspace(scanner interface{ Scan(dest ...any) error }) (*Workspace, error) {
	var w Workspace
	var typ, createdAt string
	if err := scanner.Scan(
		&w.ID,
		&typ,
		&w.Name,
		&w.OwnerUserID,
		&w.OwnerGroupID,
		&w.OwnerSystemID,
		&createdAt,
	); err != nil {
		return nil, err
	}
	w.Type = WorkspaceType(typ)
	var err error
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWorkspaceMember(scanner interface{ Scan(dest ...any) error }) (WorkspaceMember, error) {
	var m WorkspaceMember
	var role, grantedAt string
	if err := scanner.Scan(&m.WorkspaceID, &m.UserID, &role, &m.GrantedBy, &grantedAt); err != nil {
		return m, err
	}
	m.Role = WorkspaceRole(role)
	var err error
	m.GrantedAt, err = parseTime(grantedAt)
	return m, err
}
