// ABOUTME: Workspace Registry: workspace creation, owner invariant, and membership roles
// ABOUTME: Every mutation validates, writes, and appends its audit entry in one transaction

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-identity/internal/store"
)

// Config contains configuration options for the Registry.
type Config struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Registry owns workspaces, workspace memberships, and team groups.
type Registry struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a new Registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:  cfg.Store,
		logger: logger.With("component", "workspace"),
		now:    func() time.Time { return now().UTC() },
	}
}

// CreateRequest describes a workspace to create.
type CreateRequest struct {
	Type        store.WorkspaceType
	Owner       store.OwnerRef
	Name        string // defaults from the owner when empty
	ActorUserID string
}

// CreateWorkspace validates the owner/type pairing and creates the
// workspace. An individual workspace conflicts with an existing one for
// the same user, and only one public workspace may exist.
func (r *Registry) CreateWorkspace(ctx context.Context, req CreateRequest) (*store.Workspace, error) {
	ws, err := newWorkspace(req)
	if err != nil {
		return nil, err
	}
	ws.CreatedAt = r.now()

	err = r.store.Update(ctx, func(tx store.Tx) error {
		return r.createInTx(ctx, tx, ws, req.ActorUserID)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("workspace created", "workspace_id", ws.ID, "type", ws.Type, "owner", ws.Owner().ID)
	return ws, nil
}

// EnsureIndividualWorkspace returns the user's individual workspace,
// creating it if the user has none.
func (r *Registry) EnsureIndividualWorkspace(ctx context.Context, userID string) (*store.Workspace, error) {
	var ws *store.Workspace
	var created bool
	err := r.store.Update(ctx, func(tx store.Tx) error {
		existing, err := tx.GetIndividualWorkspace(ctx, userID)
		if err == nil {
			ws = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		ws, err = newWorkspace(CreateRequest{
			Type:        store.WorkspaceIndividual,
			Owner:       store.OwnerRef{Kind: store.OwnerUser, ID: userID},
			ActorUserID: userID,
		})
		if err != nil {
			return err
		}
		ws.CreatedAt = r.now()
		created = true
		return r.createInTx(ctx, tx, ws, userID)
	})
	if err != nil {
		return nil, err
	}

	if created {
		r.logger.Info("workspace created", "workspace_id", ws.ID, "type", ws.Type, "owner", userID)
	}
	return ws, nil
}

func newWorkspace(req CreateRequest) (*store.Workspace, error) {
	ws := &store.Workspace{
		ID:   uuid.New().String(),
		Type: req.Type,
		Name: req.Name,
	}
	owner := req.Owner.ID
	switch req.Owner.Kind {
	case store.OwnerUser:
		ws.OwnerUserID = &owner
	case store.OwnerGroup:
		ws.OwnerGroupID = &owner
	case store.OwnerPublic:
		ws.OwnerSystemID = &owner
	default:
		return nil, fmt.Errorf("%w: invalid owner kind %q", store.ErrValidation, req.Owner.Kind)
	}
	if err := store.ValidateWorkspace(ws); err != nil {
		return nil, err
	}
	if ws.Name == "" {
		ws.Name = defaultName(ws)
	}
	return ws, nil
}

func defaultName(ws *store.Workspace) string {
	owner := ws.Owner()
	switch owner.Kind {
	case store.OwnerUser:
		return owner.ID + " (personal)"
	case store.OwnerGroup:
		return owner.ID + " (team)"
	default:
		return "public"
	}
}

// createInTx checks owner existence and singletons, inserts the workspace,
// seeds the owner's admin membership, and records the audit entry.
func (r *Registry) createInTx(ctx context.Context, tx store.Tx, ws *store.Workspace, actor string) error {
	owner := ws.Owner()
	switch owner.Kind {
	case store.OwnerUser:
		if _, err := tx.GetUser(ctx, owner.ID); err != nil {
			return err
		}
		if _, err := tx.GetIndividualWorkspace(ctx, owner.ID); err == nil {
			return fmt.Errorf("%w: user %s already owns an individual workspace", store.ErrConflict, owner.ID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	case store.OwnerGroup:
		if _, err := tx.GetGroup(ctx, owner.ID); err != nil {
			return err
		}
	case store.OwnerPublic:
		if _, err := tx.GetPublicWorkspace(ctx); err == nil {
			return fmt.Errorf("%w: a public workspace already exists", store.ErrConflict)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	if err := tx.CreateWorkspace(ctx, ws); err != nil {
		return err
	}

	if owner.Kind == store.OwnerUser {
		if err := tx.UpsertWorkspaceMember(ctx, &store.WorkspaceMember{
			WorkspaceID: ws.ID,
			UserID:      owner.ID,
			Role:        store.WorkspaceRoleAdmin,
			GrantedBy:   owner.ID,
			GrantedAt:   ws.CreatedAt,
		}); err != nil {
			return err
		}
	}

	return tx.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: actor,
		Action:      store.AuditCreateWorkspace,
		TargetType:  "workspace",
		TargetID:    ws.ID,
		Timestamp:   ws.CreatedAt,
		Detail:      map[string]any{"type": string(ws.Type), "owner": owner.ID},
	})
}

// GetWorkspace retrieves a workspace by ID.
func (r *Registry) GetWorkspace(ctx context.Context, workspaceID string) (*store.Workspace, error) {
	var ws *store.Workspace
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		ws, err = tx.GetWorkspace(ctx, workspaceID)
		return err
	})
	return ws, err
}

// ListMembers returns every membership row of a workspace.
func (r *Registry) ListMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	var members []store.WorkspaceMember
	err := r.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetWorkspace(ctx, workspaceID); err != nil {
			return err
		}
		var err error
		members, err = tx.ListWorkspaceMembers(ctx, workspaceID)
		return err
	})
	return members, err
}

// GrantMembership gives userID a role on the workspace, replacing any
// existing role. grantedBy must be an admin of the workspace.
func (r *Registry) GrantMembership(ctx context.Context, workspaceID, userID string, role store.WorkspaceRole, grantedBy string) error {
	if !store.IsValidWorkspaceRole(role) {
		return fmt.Errorf("%w: invalid workspace role %q", store.ErrValidation, role)
	}
	if userID == "" || grantedBy == "" {
		return fmt.Errorf("%w: user and granting user are required", store.ErrValidation)
	}

	err := r.store.Update(ctx, func(tx store.Tx) error {
		ws, err := RequireAdmin(ctx, tx, workspaceID, grantedBy)
		if err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if isIndividualOwner(ws, userID) && role != store.WorkspaceRoleAdmin {
			return fmt.Errorf("%w: cannot change the role of the workspace owner", store.ErrConflict)
		}

		now := r.now()
		if err := tx.UpsertWorkspaceMember(ctx, &store.WorkspaceMember{
			WorkspaceID: workspaceID,
			UserID:      userID,
			Role:        role,
			GrantedBy:   grantedBy,
			GrantedAt:   now,
		}); err != nil {
			return err
		}

		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: grantedBy,
			Action:      store.AuditGrantMembership,
			TargetType:  "workspace",
			TargetID:    workspaceID,
			Timestamp:   now,
			Detail:      map[string]any{"user_id": userID, "role": string(role)},
		})
	})
	if err != nil {
		return err
	}

	r.logger.Info("membership granted", "workspace_id", workspaceID, "user_id", userID, "role", role, "granted_by", grantedBy)
	return nil
}

// RevokeMembership removes userID's membership. Users may always revoke
// their own; revoking anyone else requires admin. Revoking the owner of an
// individual workspace is a conflict. Revoking an absent membership is a no-op.
func (r *Registry) RevokeMembership(ctx context.Context, workspaceID, userID, actorUserID string) error {
	var removed bool
	err := r.store.Update(ctx, func(tx store.Tx) error {
		var ws *store.Workspace
		var err error
		if actorUserID == userID {
			ws, err = tx.GetWorkspace(ctx, workspaceID)
		} else {
			ws, err = RequireAdmin(ctx, tx, workspaceID, actorUserID)
		}
		if err != nil {
			return err
		}
		if isIndividualOwner(ws, userID) {
			return fmt.Errorf("%w: cannot revoke the owner of workspace %s", store.ErrConflict, workspaceID)
		}

		if _, err := tx.GetWorkspaceMember(ctx, workspaceID, userID); errors.Is(err, store.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		if err := tx.DeleteWorkspaceMember(ctx, workspaceID, userID); err != nil {
			return err
		}
		removed = true

		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: actorUserID,
			Action:      store.AuditRevokeMembership,
			TargetType:  "workspace",
			TargetID:    workspaceID,
			Timestamp:   r.now(),
			Detail:      map[string]any{"user_id": userID},
		})
	})
	if err != nil {
		return err
	}

	if removed {
		r.logger.Info("membership revoked", "workspace_id", workspaceID, "user_id", userID, "actor", actorUserID)
	}
	return nil
}

func isIndividualOwner(ws *store.Workspace, userID string) bool {
	return ws.Type == store.WorkspaceIndividual && ws.OwnerUserID != nil && *ws.OwnerUserID == userID
}
