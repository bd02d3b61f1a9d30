// ABOUTME: IdentityService handlers for ACL grants and permission resolution
// ABOUTME: Users may only resolve their own permissions; operators may resolve anyone's

package api

import (
	"context"

	"github.com/2389/coven-identity/internal/acl"
	"github.com/2389/coven-identity/internal/store"
)

func resourceOf(workspaceID, resourceType, resourceID string) acl.Resource {
	return acl.Resource{WorkspaceID: workspaceID, Type: resourceType, ID: resourceID}
}

// GrantACL creates or replaces a resource grant.
func (s *Service) GrantACL(ctx context.Context, req *GrantRequest) (*GrantResponse, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	g, err := s.acl.Grant(ctx, acl.GrantRequest{
		Resource:    resourceOf(req.WorkspaceID, req.ResourceType, req.ResourceID),
		Target:      targetFromWire(req.Target),
		Permission:  store.Permission(req.Permission),
		ExpiresAt:   req.ExpiresAt,
		ActorUserID: actor,
	})
	if err != nil {
		return nil, s.fail("GrantACL", err)
	}
	return &GrantResponse{Grant: grantToWire(g)}, nil
}

// RevokeACL removes a resource grant. Revoking a missing grant succeeds.
func (s *Service) RevokeACL(ctx context.Context, req *RevokeGrantRequest) (*Empty, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	res := resourceOf(req.WorkspaceID, req.ResourceType, req.ResourceID)
	if err := s.acl.Revoke(ctx, res, targetFromWire(req.Target), actor); err != nil {
		return nil, s.fail("RevokeACL", err)
	}
	return &Empty{}, nil
}

// ListGrants returns the unexpired grants on a resource.
func (s *Service) ListGrants(ctx context.Context, req *ResourceRequest) (*ListGrantsResponse, error) {
	grants, err := s.acl.ListActiveGrants(ctx, resourceOf(req.WorkspaceID, req.ResourceType, req.ResourceID))
	if err != nil {
		return nil, s.fail("ListGrants", err)
	}
	return &ListGrantsResponse{Grants: grantsToWire(grants)}, nil
}

// Resolve returns a user's effective permission on a resource with the
// role and grant contributions that produced it.
func (s *Service) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	userID, err := s.self(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	d, err := s.resolver.Explain(ctx, userID, req.WorkspaceID, req.ResourceType, req.ResourceID)
	if err != nil {
		return nil, s.fail("Resolve", err)
	}
	return &ResolveResponse{
		Permission: string(d.Permission),
		Role:       string(d.Role),
		FromRole:   string(d.FromRole),
		FromGrants: string(d.FromGrants),
	}, nil
}
