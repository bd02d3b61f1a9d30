// ABOUTME: Identity persistence for SQLite transactions
// ABOUTME: One identity per thread, validated before every write

package store

import (
	"context"
	"fmt"
)

const identityColumns = `identity_id, persistent_user_id, channel, thread_id, verification_status,
	verification_method, verification_contact, code_hash, code_expires_at, created_at, merged_at`

// CreateIdentity inserts a new identity. Returns ErrConflict if the thread
// already has one.
func (t *sqliteTx) CreateIdentity(ctx context.Context, i *Identity) error {
	if err := ValidateIdentity(i); err != nil {
		return err
	}
	i.CreatedAt = nowIfZero(i.CreatedAt)

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID,
		i.PersistentUserID,
		i.Channel,
		i.ThreadID,
		i.VerificationStatus,
		nullString(i.VerificationMethod),
		nullString(i.VerificationContact),
		nullString(i.CodeHash),
		formatTimePtr(i.CodeExpiresAt),
		formatTime(i.CreatedAt),
		formatTimePtr(i.MergedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: thread %s already has an identity", ErrConflict, i.ThreadID)
		}
		return mapWriteError(err, "identity")
	}

	t.logger.Debug("created identity", "identity_id", i.ID, "thread_id", i.ThreadID)
	return nil
}

// GetIdentity retrieves an identity by ID.
func (t *sqliteTx) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE identity_id = ?`, id)
	i, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err, "identity", id)
	}
	return i, nil
}

// GetIdentityByThread retrieves the identity bound to a thread.
func (t *sqliteTx) GetIdentityByThread(ctx context.Context, threadID string) (*Identity, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE thread_id = ?`, threadID)
	i, err := scanIdentity(row)
	if err != nil {
		return nil, notFound(err, "identity for thread", threadID)
	}
	return i, nil
}

// LockIdentityByThread reads the identity for update. Inside Update the
// whole database is already write-locked, so this is a plain read.
func (t *sqliteTx) LockIdentityByThread(ctx context.Context, threadID string) (*Identity, error) {
	return t.GetIdentityByThread(ctx, threadID)
}

// UpdateIdentity replaces every mutable column of an identity.
func (t *sqliteTx) UpdateIdentity(ctx context.Context, i *Identity) error {
	if err := ValidateIdentity(i); err != nil {
		return err
	}

	res, err := t.q.ExecContext(ctx, `
		UPDATE identities SET
			persistent_user_id = ?,
			verification_status = ?,
			verification_method = ?,
			verification_contact = ?,
			code_hash = ?,
			code_expires_at = ?,
			merged_at = ?
		WHERE identity_id = ?`,
		i.PersistentUserID,
		i.VerificationStatus,
		nullString(i.VerificationMethod),
		nullString(i.VerificationContact),
		nullString(i.CodeHash),
		formatTimePtr(i.CodeExpiresAt),
		formatTimePtr(i.MergedAt),
		i.ID,
	)
	if err != nil {
		return mapWriteError(err, "identity")
	}
	if err := mustAffect(res, "identity", i.ID); err != nil {
		return err
	}

	t.logger.Debug("updated identity", "identity_id", i.ID, "status", i.VerificationStatus)
	return nil
}

// DeleteIdentity removes an identity. Idempotent.
func (t *sqliteTx) DeleteIdentity(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = ?`, id); err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	t.logger.Debug("deleted identity", "identity_id", id)
	return nil
}

// ListIdentitiesByUser returns every identity bound to a user, oldest first.
func (t *sqliteTx) ListIdentitiesByUser(ctx context.Context, userID string) ([]*Identity, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE persistent_user_id = ? ORDER BY created_at, identity_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	return out, nil
}

func scanIdentity(scanner interface{ Scan(dest ...any) error }) (*Identity, error) {
	var i Identity
	var status, createdAt string
	var method, contact, codeHash, codeExpires, mergedAt *string

	if err := scanner.Scan(
		&i.ID,
		&i.PersistentUserID,
		&i.Channel,
		&i.ThreadID,
		&status,
		&method,
		&contact,
		&codeHash,
		&codeExpires,
		&createdAt,
		&mergedAt,
	); err != nil {
		return nil, err
	}

	i.VerificationStatus = VerificationStatus(status)
	i.VerificationMethod = derefString(method)
	i.VerificationContact = derefString(contact)
	i.CodeHash = derefString(codeHash)

	var err error
	if i.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if i.CodeExpiresAt, err = parseTimePtr(codeExpires); err != nil {
		return nil, err
	}
	if i.MergedAt, err = parseTimePtr(mergedAt); err != nil {
		return nil, err
	}
	return &i, nil
}
