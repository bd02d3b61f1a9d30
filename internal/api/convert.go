// ABOUTME: Conversions between store types and IdentityService wire messages
// ABOUTME: Optional references become empty strings on the wire and back

package api

import (
	"github.com/2389/coven-identity/internal/store"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func userToWire(u *store.User) User {
	return User{ID: u.ID, Status: string(u.Status), CreatedAt: u.CreatedAt}
}

func identityToWire(i *store.Identity) Identity {
	return Identity{
		ID:                  i.ID,
		PersistentUserID:    deref(i.PersistentUserID),
		Channel:             i.Channel,
		ThreadID:            i.ThreadID,
		VerificationStatus:  string(i.VerificationStatus),
		VerificationMethod:  i.VerificationMethod,
		VerificationContact: i.VerificationContact,
		CodeExpiresAt:       i.CodeExpiresAt,
		CreatedAt:           i.CreatedAt,
		MergedAt:            i.MergedAt,
	}
}

func identitiesToWire(idents []*store.Identity) []Identity {
	out := make([]Identity, 0, len(idents))
	for _, i := range idents {
		out = append(out, identityToWire(i))
	}
	return out
}

func workspaceToWire(w *store.Workspace) Workspace {
	owner := w.Owner()
	return Workspace{
		ID:        w.ID,
		Type:      string(w.Type),
		Name:      w.Name,
		Owner:     Owner{Kind: string(owner.Kind), ID: owner.ID},
		CreatedAt: w.CreatedAt,
	}
}

func workspaceMembersToWire(ms []store.WorkspaceMember) []Member {
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, Member{UserID: m.UserID, Role: string(m.Role), GrantedBy: m.GrantedBy, CreatedAt: m.GrantedAt})
	}
	return out
}

func groupMembersToWire(ms []store.GroupMember) []Member {
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		out = append(out, Member{UserID: m.UserID, Role: string(m.Role), CreatedAt: m.CreatedAt})
	}
	return out
}

func groupToWire(g *store.Group) Group {
	return Group{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
}

func targetFromWire(t Target) store.GrantTarget {
	return store.GrantTarget{UserID: optional(t.UserID), GroupID: optional(t.GroupID)}
}

func grantToWire(g *store.ACLGrant) Grant {
	return Grant{
		ID:           g.ID,
		WorkspaceID:  g.WorkspaceID,
		ResourceType: g.ResourceType,
		ResourceID:   g.ResourceID,
		Target:       Target{UserID: deref(g.TargetUserID), GroupID: deref(g.TargetGroupID)},
		Permission:   string(g.Permission),
		CreatedAt:    g.CreatedAt,
		ExpiresAt:    g.ExpiresAt,
	}
}

func grantsToWire(gs []store.ACLGrant) []Grant {
	out := make([]Grant, 0, len(gs))
	for i := range gs {
		out = append(out, grantToWire(&gs[i]))
	}
	return out
}

func operationToWire(op *store.MergeOperation) Operation {
	affected := op.AffectedThreadIDs
	if affected == nil {
		affected = []string{}
	}
	return Operation{
		ID:                op.ID,
		Type:              string(op.Type),
		SourceThreadIDs:   op.SourceThreadIDs,
		AffectedThreadIDs: affected,
		TargetUserID:      op.TargetUserID,
		Channel:           op.Channel,
		Status:            string(op.Status),
		ErrorMessage:      op.ErrorMessage,
		CreatedAt:         op.CreatedAt,
		CompletedAt:       op.CompletedAt,
	}
}

func ownershipToWire(o *store.ResourceOwnership) Ownership {
	return Ownership{
		ResourceKind: o.ResourceKind,
		ResourceID:   o.ResourceID,
		ThreadID:     o.ThreadID,
		UserID:       deref(o.UserID),
		CreatedAt:    o.CreatedAt,
	}
}

func auditToWire(e *store.AuditEntry) AuditEntry {
	return AuditEntry{
		ID:          e.ID,
		ActorUserID: e.ActorUserID,
		Action:      string(e.Action),
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Timestamp:   e.Timestamp,
		Detail:      e.Detail,
	}
}
