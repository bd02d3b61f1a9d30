// ABOUTME: ACL Store: resource-scoped, time-bounded read/write grants
// ABOUTME: Expired grants stay in storage and are filtered on every read

package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// ResourceChecker reports whether a resource exists in its storage
// collaborator. When no checker is configured, grants may target
// resources that do not exist yet.
type ResourceChecker interface {
	ResourceExists(ctx context.Context, resourceType, resourceID string) (bool, error)
}

// ResourceCheckerFunc adapts a function to ResourceChecker.
type ResourceCheckerFunc func(ctx context.Context, resourceType, resourceID string) (bool, error)

// ResourceExists calls f.
func (f ResourceCheckerFunc) ResourceExists(ctx context.Context, resourceType, resourceID string) (bool, error) {
	return f(ctx, resourceType, resourceID)
}

// Config contains configuration options for the Store.
type Config struct {
	Store     store.Store
	Logger    *slog.Logger
	Now       func() time.Time
	Resources ResourceChecker // optional
}

// Store manages ACL grants.
type Store struct {
	store     store.Store
	logger    *slog.Logger
	now       func() time.Time
	resources ResourceChecker
}

// New creates a new ACL Store with the given configuration.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		store:     cfg.Store,
		logger:    logger.With("component", "acl"),
		now:       func() time.Time { return now().UTC() },
		resources: cfg.Resources,
	}
}

// Resource identifies one resource inside a workspace.
type Resource struct {
	WorkspaceID string
	Type        string
	ID          string
}

func (r Resource) validate() error {
	if r.WorkspaceID == "" || r.Type == "" || r.ID == "" {
		return fmt.Errorf("%w: workspace, resource type, and resource id are required", store.ErrValidation)
	}
	return nil
}

// GrantRequest describes a grant to create or replace.
type GrantRequest struct {
	Resource    Resource
	Target      store.GrantTarget
	Permission  store.Permission
	ExpiresAt   *time.Time // nil = non-expiring
	ActorUserID string
}

// Grant creates a grant, or replaces the permission and expiry of the
// existing grant on the same (workspace, resource, target) tuple. Admin
// cannot be granted. The actor must be a workspace admin.
func (s *Store) Grant(ctx context.Context, req GrantRequest) (*store.ACLGrant, error) {
	if err := req.Resource.validate(); err != nil {
		return nil, err
	}
	if req.Permission == store.PermissionAdmin {
		return nil, fmt.Errorf("%w: admin is only granted through workspace roles", store.ErrValidation)
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", store.ErrValidation)
	}

	g := &store.ACLGrant{
		WorkspaceID:   req.Resource.WorkspaceID,
		ResourceType:  req.Resource.Type,
		ResourceID:    req.Resource.ID,
		TargetUserID:  req.Target.UserID,
		TargetGroupID: req.Target.GroupID,
		Permission:    req.Permission,
		CreatedAt:     now,
		ExpiresAt:     req.ExpiresAt,
	}
	if err := store.ValidateGrant(g); err != nil {
		return nil, err
	}

	if s.resources != nil {
		ok, err := s.resources.ResourceExists(ctx, g.ResourceType, g.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("checking resource existence: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: resource %s/%s", store.ErrNotFound, g.ResourceType, g.ResourceID)
		}
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := workspace.RequireAdmin(ctx, tx, g.WorkspaceID, req.ActorUserID); err != nil {
			return err
		}
		if err := checkTarget(ctx, tx, req.Target); err != nil {
			return err
		}
		if err := tx.UpsertGrant(ctx, g); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: req.ActorUserID,
			Action:      store.AuditGrantACL,
			TargetType:  "workspace",
			TargetID:    g.WorkspaceID,
			Timestamp:   now,
			Detail:      grantDetail(req.Resource, req.Target, g.Permission, g.ExpiresAt),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("acl grant stored",
		"workspace_id", g.WorkspaceID,
		"resource", g.ResourceType+"/"+g.ResourceID,
		"permission", g.Permission,
	)
	return g, nil
}

// Revoke removes the grant on a tuple. Revoking an absent grant is a
// no-op. The actor must be a workspace admin.
func (s *Store) Revoke(ctx context.Context, res Resource, target store.GrantTarget, actorUserID string) error {
	if err := res.validate(); err != nil {
		return err
	}
	if err := store.ValidateGrantTarget(target); err != nil {
		return err
	}

	return s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := workspace.RequireAdmin(ctx, tx, res.WorkspaceID, actorUserID); err != nil {
			return err
		}
		if err := tx.DeleteGrant(ctx, res.WorkspaceID, res.Type, res.ID, target); err != nil {
			return err
		}
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditRevokeACL,
			TargetType:  "workspace",
			TargetID:    res.WorkspaceID,
			Timestamp:   s.now(),
			Detail:      grantDetail(res, target, "", nil),
		})
	})
}

// ListActiveGrants returns the grants on a resource that have not expired.
func (s *Store) ListActiveGrants(ctx context.Context, res Resource) ([]store.ACLGrant, error) {
	if err := res.validate(); err != nil {
		return nil, err
	}
	var grants []store.ACLGrant
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetWorkspace(ctx, res.WorkspaceID); err != nil {
			return err
		}
		var err error
		grants, err = ActiveGrants(ctx, tx, res, s.now())
		return err
	})
	return grants, err
}

// ActiveGrants lists the grants on a resource active at now inside an
// existing transaction.
func ActiveGrants(ctx context.Context, tx store.Tx, res Resource, now time.Time) ([]store.ACLGrant, error) {
	grants, err := tx.ListGrants(ctx, res.WorkspaceID, res.Type, res.ID, now)
	if err != nil {
		return nil, err
	}
	active := grants[:0]
	for _, g := range grants {
		if g.ActiveAt(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

func checkTarget(ctx context.Context, tx store.Tx, target store.GrantTarget) error {
	var err error
	if target.UserID != nil {
		_, err = tx.GetUser(ctx, *target.UserID)
	} else {
		_, err = tx.GetGroup(ctx, *target.GroupID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("grant target: %w", err)
	}
	return err
}

func grantDetail(res Resource, target store.GrantTarget, perm store.Permission, expiresAt *time.Time) map[string]any {
	d := map[string]any{
		"resource_type": res.Type,
		"resource_id":   res.ID,
	}
	if target.UserID != nil {
		d["target_user_id"] = *target.UserID
	}
	if target.GroupID != nil {
		d["target_group_id"] = *target.GroupID
	}
	if perm != "" {
		d["permission"] = string(perm)
	}
	if expiresAt != nil {
		d["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	return d
}
