// ABOUTME: Permission Resolver: loads facts in one read transaction and decides
// ABOUTME: "No access" is a value; only unknown workspaces or malformed calls are errors

package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-identity/internal/acl"
	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// Config contains configuration options for the Resolver.
type Config struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Resolver answers effective-permission queries.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		store:  cfg.Store,
		logger: logger.With("component", "access"),
		now:    func() time.Time { return now().UTC() },
	}
}

// Resolve returns the effective permission of userID on a resource.
func (r *Resolver) Resolve(ctx context.Context, userID, workspaceID, resourceType, resourceID string) (store.Permission, error) {
	d, err := r.Explain(ctx, userID, workspaceID, resourceType, resourceID)
	if err != nil {
		return store.PermissionNone, err
	}
	return d.Permission, nil
}

// Explain is Resolve with the role and grant contributions attached.
func (r *Resolver) Explain(ctx context.Context, userID, workspaceID, resourceType, resourceID string) (Decision, error) {
	if userID == "" || workspaceID == "" || resourceType == "" || resourceID == "" {
		return Decision{Permission: store.PermissionNone}, fmt.Errorf("%w: user, workspace, resource type, and resource id are required", store.ErrValidation)
	}

	var f Facts
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		f, err = LoadFacts(ctx, tx, userID, workspaceID, acl.Resource{
			WorkspaceID: workspaceID,
			Type:        resourceType,
			ID:          resourceID,
		}, r.now())
		return err
	})
	if err != nil {
		return Decision{Permission: store.PermissionNone}, err
	}

	d := Decide(f)
	r.logger.Debug("resolved permission",
		"user_id", userID,
		"workspace_id", workspaceID,
		"resource", resourceType+"/"+resourceID,
		"permission", d.Permission,
		"role", d.Role,
	)
	return d, nil
}

// LoadFacts reads the workspace, the user's role inputs, and the active
// grants on the resource inside tx.
func LoadFacts(ctx context.Context, tx store.Tx, userID, workspaceID string, res acl.Resource, now time.Time) (Facts, error) {
	f := Facts{Now: now}

	ws, err := tx.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return f, err
	}

	f.Role, err = workspace.LoadRoleInputs(ctx, tx, ws, userID)
	if err != nil {
		return f, err
	}
	if !f.Role.UserActive {
		return f, nil
	}

	// Group-targeted grants need every group, not only the owning one.
	if f.Role.Groups == nil {
		if f.Role.Groups, err = tx.ListGroupsForUser(ctx, userID); err != nil {
			return f, err
		}
	}

	f.Grants, err = acl.ActiveGrants(ctx, tx, res, now)
	return f, err
}
