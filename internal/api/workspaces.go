// ABOUTME: IdentityService handlers for workspaces, memberships, and groups
// ABOUTME: Admin checks happen in the registry against the resolved actor

package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// CreateWorkspace creates a workspace of any type.
func (s *Service) CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*WorkspaceResponse, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	ws, err := s.workspaces.CreateWorkspace(ctx, workspace.CreateRequest{
		Type:        store.WorkspaceType(req.Type),
		Owner:       store.OwnerRef{Kind: store.OwnerKind(req.Owner.Kind), ID: req.Owner.ID},
		Name:        req.Name,
		ActorUserID: actor,
	})
	if err != nil {
		return nil, s.fail("CreateWorkspace", err)
	}
	return &WorkspaceResponse{Workspace: workspaceToWire(ws)}, nil
}

// EnsureIndividualWorkspace returns the user's individual workspace,
// creating it on first use.
func (s *Service) EnsureIndividualWorkspace(ctx context.Context, req *UserRequest) (*WorkspaceResponse, error) {
	userID, err := s.self(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	ws, err := s.workspaces.EnsureIndividualWorkspace(ctx, userID)
	if err != nil {
		return nil, s.fail("EnsureIndividualWorkspace", err)
	}
	return &WorkspaceResponse{Workspace: workspaceToWire(ws)}, nil
}

// GetWorkspace returns a workspace.
func (s *Service) GetWorkspace(ctx context.Context, req *WorkspaceRequest) (*WorkspaceResponse, error) {
	ws, err := s.workspaces.GetWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return nil, s.fail("GetWorkspace", err)
	}
	return &WorkspaceResponse{Workspace: workspaceToWire(ws)}, nil
}

// ListMembers returns the direct members of a workspace.
func (s *Service) ListMembers(ctx context.Context, req *WorkspaceRequest) (*MembersResponse, error) {
	members, err := s.workspaces.ListMembers(ctx, req.WorkspaceID)
	if err != nil {
		return nil, s.fail("ListMembers", err)
	}
	return &MembersResponse{Members: workspaceMembersToWire(members)}, nil
}

// GrantMembership sets a user's role in a workspace. The actor must be a
// workspace admin.
func (s *Service) GrantMembership(ctx context.Context, req *MembershipRequest) (*Empty, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.GrantMembership(ctx, req.WorkspaceID, req.UserID, store.WorkspaceRole(req.Role), actor); err != nil {
		return nil, s.fail("GrantMembership", err)
	}
	return &Empty{}, nil
}

// RevokeMembership removes a user's direct membership.
func (s *Service) RevokeMembership(ctx context.Context, req *MembershipRequest) (*Empty, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.RevokeMembership(ctx, req.WorkspaceID, req.UserID, actor); err != nil {
		return nil, s.fail("RevokeMembership", err)
	}
	return &Empty{}, nil
}

// CreateGroup creates a group with the acting user as its first admin.
func (s *Service) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*GroupResponse, error) {
	creator, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	if creator == store.SystemActor {
		return nil, status.Error(codes.InvalidArgument, "actor_user_id required: a group needs a user as its first admin")
	}
	g, err := s.workspaces.CreateGroup(ctx, req.Name, creator)
	if err != nil {
		return nil, s.fail("CreateGroup", err)
	}
	return &GroupResponse{Group: groupToWire(g)}, nil
}

// GetGroup returns a group.
func (s *Service) GetGroup(ctx context.Context, req *GroupRequest) (*GroupResponse, error) {
	g, err := s.workspaces.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, s.fail("GetGroup", err)
	}
	return &GroupResponse{Group: groupToWire(g)}, nil
}

// ListGroupMembers returns a group's members.
func (s *Service) ListGroupMembers(ctx context.Context, req *GroupRequest) (*MembersResponse, error) {
	members, err := s.workspaces.ListGroupMembers(ctx, req.GroupID)
	if err != nil {
		return nil, s.fail("ListGroupMembers", err)
	}
	return &MembersResponse{Members: groupMembersToWire(members)}, nil
}

// AddGroupMember adds a user to a group or changes their group role.
func (s *Service) AddGroupMember(ctx context.Context, req *GroupMemberRequest) (*Empty, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	role := store.GroupRole(req.Role)
	if role == "" {
		role = store.GroupRoleMember
	}
	if err := s.workspaces.AddGroupMember(ctx, req.GroupID, req.UserID, role, actor); err != nil {
		return nil, s.fail("AddGroupMember", err)
	}
	return &Empty{}, nil
}

// RemoveGroupMember removes a user from a group.
func (s *Service) RemoveGroupMember(ctx context.Context, req *GroupMemberRequest) (*Empty, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.RemoveGroupMember(ctx, req.GroupID, req.UserID, actor); err != nil {
		return nil, s.fail("RemoveGroupMember", err)
	}
	return &Empty{}, nil
}
