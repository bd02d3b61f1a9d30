// ABOUTME: User persistence for SQLite transactions
// ABOUTME: Users are created and suspended, never deleted

package store

import (
	"context"
	"fmt"
)

// CreateUser inserts a new user. Defaults status to active and CreatedAt to now.
func (t *sqliteTx) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	u.CreatedAt = nowIfZero(u.CreatedAt)

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO users (user_id, status, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Status, formatTime(u.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "user")
	}

	t.logger.Debug("created user", "user_id", u.ID)
	return nil
}

// GetUser retrieves a user by ID.
func (t *sqliteTx) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var status, createdAt string

	err := t.q.QueryRowContext(ctx,
		`SELECT user_id, status, created_at FROM users WHERE user_id = ?`, id,
	).Scan(&u.ID, &status, &createdAt)
	if err != nil {
		return nil, notFound(err, "user", id)
	}

	u.Status = UserStatus(status)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserStatus changes a user's status.
func (t *sqliteTx) UpdateUserStatus(ctx context.Context, id string, status UserStatus) error {
	res, err := t.q.ExecContext(ctx, `UPDATE users SET status = ? WHERE user_id = ?`, status, id)
	if err != nil {
		return mapWriteError(err, "user")
	}
	if err := mustAffect(res, "user", id); err != nil {
		return err
	}

	t.logger.Debug("updated user status", "user_id", id, "status", status)
	return nil
}
