// ABOUTME: Team group and group membership persistence for SQLite transactions
// ABOUTME: Membership writes are upserts keyed on (group_id, user_id)

package store

import (
	"context"
	"fmt"
)

// CreateGroup inserts a new group.
func (t *sqliteTx) CreateGroup(ctx context.Context, g *Group) error {
	if g.ID == "" || g.Name == "" {
		return fmt.Errorf("%w: group id and name are required", ErrValidation)
	}
	g.CreatedAt = nowIfZero(g.CreatedAt)

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO team_groups (group_id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, formatTime(g.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "group")
	}

	t.logger.Debug("created group", "group_id", g.ID, "name", g.Name)
	return nil
}

// GetGroup retrieves a group by ID.
func (t *sqliteTx) GetGroup(ctx context.Context, id string) (*Group, error) {
	var g Group
	var createdAt string

	err := t.q.QueryRowContext(ctx,
		`SELECT group_id, name, created_at FROM team_groups WHERE group_id = ?`, id,
	).Scan(&g.ID, &g.Name, &createdAt)
	if err != nil {
		return nil, notFound(err, "group", id)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpsertGroupMember adds a member or updates an existing member's role.
func (t *sqliteTx) UpsertGroupMember(ctx context.Context, m *GroupMember) error {
	if !IsValidGroupRole(m.Role) {
		return fmt.Errorf("%w: invalid group role %q", ErrValidation, m.Role)
	}
	m.CreatedAt = nowIfZero(m.CreatedAt)

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (group_id, user_id) DO UPDATE SET role = excluded.role`,
		m.GroupID, m.UserID, m.Role, formatTime(m.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "group member")
	}

	t.logger.Debug("upserted group member", "group_id", m.GroupID, "user_id", m.UserID, "role", m.Role)
	return nil
}

// GetGroupMember retrieves a single group membership.
func (t *sqliteTx) GetGroupMember(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT group_id, user_id, role, created_at FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID)
	m, err := scanGroupMember(row)
	if err != nil {
		return nil, notFound(err, "group member", groupID+"/"+userID)
	}
	return &m, nil
}

// DeleteGroupMember removes a membership. Idempotent.
func (t *sqliteTx) DeleteGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := t.q.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("deleting group member: %w", err)
	}
	t.logger.Debug("deleted group member", "group_id", groupID, "user_id", userID)
	return nil
}

// ListGroupMembers returns every member of a group.
func (t *sqliteTx) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	return t.queryGroupMembers(ctx,
		`SELECT group_id, user_id, role, created_at FROM group_members WHERE group_id = ? ORDER BY created_at, user_id`,
		groupID)
}

// ListGroupsForUser returns every group membership a user holds.
func (t *sqliteTx) ListGroupsForUser(ctx context.Context, userID string) ([]GroupMember, error) {
	return t.queryGroupMembers(ctx,
		`SELECT group_id, user_id, role, created_at FROM group_members WHERE user_id = ? ORDER BY group_id`,
		userID)
}

// DeleteGroupMembershipsForUser removes a user from every group.
func (t *sqliteTx) DeleteGroupMembershipsForUser(ctx context.Context, userID string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM group_members WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting group memberships: %w", err)
	}
	return nil
}

func (t *sqliteTx) queryGroupMembers(ctx context.Context, query string, arg string) ([]GroupMember, error) {
	rows, err := t.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying group members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := []GroupMember{}
	for rows.Next() {
		m, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group members: %w", err)
	}
	return members, nil
}

func scanGroupMember(scanner interface{ Scan(dest ...any) error }) (GroupMember, error) {
	var m GroupMember
	var role, createdAt string
	if err := scanner.Scan(&m.GroupID, &m.UserID, &role, &createdAt); err != nil {
		return m, err
	}
	m.Role = GroupRole(role)
	var err error
	m.CreatedAt, err = parseTime(createdAt)
	return m, err
}
