// ABOUTME: Canonical user provisioning and suspension
// ABOUTME: Users are never deleted so audit history always resolves

package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/2389/coven-identity/internal/store"
)

// ProvisionUser explicitly creates an active user. An empty userID gets a
// generated one.
func (r *Registry) ProvisionUser(ctx context.Context, userID, actorUserID string) (*store.User, error) {
	if userID == "" {
		userID = uuid.New().String()
	}
	if userID == store.SystemActor {
		return nil, fmt.Errorf("%w: user ID %q is reserved", store.ErrValidation, userID)
	}
	u := &store.User{ID: userID, Status: store.UserStatusActive, CreatedAt: r.now()}

	err := r.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditProvisionUser,
			TargetType:  "user",
			TargetID:    u.ID,
			Timestamp:   u.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("user provisioned", "user_id", u.ID)
	return u, nil
}

// GetUser retrieves a user by ID.
func (r *Registry) GetUser(ctx context.Context, userID string) (*store.User, error) {
	var u *store.User
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, userID)
		return err
	})
	return u, err
}

// SuspendUser marks a user suspended. Suspending twice is a no-op.
func (r *Registry) SuspendUser(ctx context.Context, userID, actorUserID string) error {
	var changed bool
	err := r.store.Update(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.Status == store.UserStatusSuspended {
			return nil
		}
		if err := tx.UpdateUserStatus(ctx, userID, store.UserStatusSuspended); err != nil {
			return fmt.Errorf("suspending user: %w", err)
		}
		changed = true
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditSuspendUser,
			TargetType:  "user",
			TargetID:    userID,
			Timestamp:   r.now(),
		})
	})
	if err != nil {
		return err
	}

	if changed {
		r.logger.Info("user suspended", "user_id", userID)
	}
	return nil
}
