// ABOUTME: Typed IdentityService client over a gRPC connection
// ABOUTME: Forces the JSON codec and attaches the bearer token to every call

package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the IdentityService.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient wraps a connection. An empty token sends no authorization header.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.cc.Invoke(ctx, FullMethod(method), in, out, grpc.ForceCodec(Codec{}))
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	out := new(HealthResponse)
	return out, c.invoke(ctx, MethodHealth, &Empty{}, out)
}

func (c *Client) ProvisionUser(ctx context.Context, req *ProvisionUserRequest) (*UserResponse, error) {
	out := new(UserResponse)
	return out, c.invoke(ctx, MethodProvisionUser, req, out)
}

func (c *Client) GetUser(ctx context.Context, req *UserRequest) (*UserResponse, error) {
	out := new(UserResponse)
	return out, c.invoke(ctx, MethodGetUser, req, out)
}

func (c *Client) SuspendUser(ctx context.Context, req *UserRequest) error {
	return c.invoke(ctx, MethodSuspendUser, req, &Empty{})
}

func (c *Client) CreateIdentity(ctx context.Context, req *CreateIdentityRequest) (*IdentityResponse, error) {
	out := new(IdentityResponse)
	return out, c.invoke(ctx, MethodCreateIdentity, req, out)
}

func (c *Client) GetIdentity(ctx context.Context, req *GetIdentityRequest) (*IdentityResponse, error) {
	out := new(IdentityResponse)
	return out, c.invoke(ctx, MethodGetIdentity, req, out)
}

func (c *Client) ListIdentities(ctx context.Context, req *UserRequest) (*ListIdentitiesResponse, error) {
	out := new(ListIdentitiesResponse)
	return out, c.invoke(ctx, MethodListIdentities, req, out)
}

func (c *Client) RequestVerification(ctx context.Context, req *RequestVerificationRequest) (*RequestVerificationResponse, error) {
	out := new(RequestVerificationResponse)
	return out, c.invoke(ctx, MethodRequestVerification, req, out)
}

func (c *Client) ConfirmVerification(ctx context.Context, req *ConfirmVerificationRequest) (*ConfirmVerificationResponse, error) {
	out := new(ConfirmVerificationResponse)
	return out, c.invoke(ctx, MethodConfirmVerification, req, out)
}

func (c *Client) CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*WorkspaceResponse, error) {
	out := new(WorkspaceResponse)
	return out, c.invoke(ctx, MethodCreateWorkspace, req, out)
}

func (c *Client) EnsureIndividualWorkspace(ctx context.Context, req *UserRequest) (*WorkspaceResponse, error) {
	out := new(WorkspaceResponse)
	return out, c.invoke(ctx, MethodEnsureIndividualWorkspace, req, out)
}

func (c *Client) GetWorkspace(ctx context.Context, req *WorkspaceRequest) (*WorkspaceResponse, error) {
	out := new(WorkspaceResponse)
	return out, c.invoke(ctx, MethodGetWorkspace, req, out)
}

func (c *Client) ListMembers(ctx context.Context, req *WorkspaceRequest) (*MembersResponse, error) {
	out := new(MembersResponse)
	return out, c.invoke(ctx, MethodListMembers, req, out)
}

func (c *Client) GrantMembership(ctx context.Context, req *MembershipRequest) error {
	return c.invoke(ctx, MethodGrantMembership, req, &Empty{})
}

func (c *Client) RevokeMembership(ctx context.Context, req *MembershipRequest) error {
	return c.invoke(ctx, MethodRevokeMembership, req, &Empty{})
}

func (c *Client) CreateGroup(ctx context.Context, req *CreateGroupRequest) (*GroupResponse, error) {
	out := new(GroupResponse)
	return out, c.invoke(ctx, MethodCreateGroup, req, out)
}

func (c *Client) GetGroup(ctx context.Context, req *GroupRequest) (*GroupResponse, error) {
	out := new(GroupResponse)
	return out, c.invoke(ctx, MethodGetGroup, req, out)
}

func (c *Client) ListGroupMembers(ctx context.Context, req *GroupRequest) (*MembersResponse, error) {
	out := new(MembersResponse)
	return out, c.invoke(ctx, MethodListGroupMembers, req, out)
}

func (c *Client) AddGroupMember(ctx context.Context, req *GroupMemberRequest) error {
	return c.invoke(ctx, MethodAddGroupMember, req, &Empty{})
}

func (c *Client) RemoveGroupMember(ctx context.Context, req *GroupMemberRequest) error {
	return c.invoke(ctx, MethodRemoveGroupMember, req, &Empty{})
}

func (c *Client) GrantACL(ctx context.Context, req *GrantRequest) (*GrantResponse, error) {
	out := new(GrantResponse)
	return out, c.invoke(ctx, MethodGrantACL, req, out)
}

func (c *Client) RevokeACL(ctx context.Context, req *RevokeGrantRequest) error {
	return c.invoke(ctx, MethodRevokeACL, req, &Empty{})
}

func (c *Client) ListGrants(ctx context.Context, req *ResourceRequest) (*ListGrantsResponse, error) {
	out := new(ListGrantsResponse)
	return out, c.invoke(ctx, MethodListGrants, req, out)
}

func (c *Client) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	return out, c.invoke(ctx, MethodResolve, req, out)
}

func (c *Client) Merge(ctx context.Context, req *MergeRequest) (*OperationResponse, error) {
	out := new(OperationResponse)
	return out, c.invoke(ctx, MethodMerge, req, out)
}

func (c *Client) Split(ctx context.Context, req *SplitRequest) (*OperationResponse, error) {
	out := new(OperationResponse)
	return out, c.invoke(ctx, MethodSplit, req, out)
}

func (c *Client) Remove(ctx context.Context, req *RemoveRequest) (*OperationResponse, error) {
	out := new(OperationResponse)
	return out, c.invoke(ctx, MethodRemove, req, out)
}

func (c *Client) GetOperation(ctx context.Context, req *OperationRequest) (*OperationResponse, error) {
	out := new(OperationResponse)
	return out, c.invoke(ctx, MethodGetOperation, req, out)
}

func (c *Client) ListOperations(ctx context.Context, req *ListOperationsRequest) (*ListOperationsResponse, error) {
	out := new(ListOperationsResponse)
	return out, c.invoke(ctx, MethodListOperations, req, out)
}

func (c *Client) MarkRolledBack(ctx context.Context, req *RollbackRequest) (*OperationResponse, error) {
	out := new(OperationResponse)
	return out, c.invoke(ctx, MethodMarkRolledBack, req, out)
}

func (c *Client) RegisterOwnership(ctx context.Context, req *RegisterOwnershipRequest) (*OwnershipResponse, error) {
	out := new(OwnershipResponse)
	return out, c.invoke(ctx, MethodRegisterOwnership, req, out)
}

func (c *Client) ListOwnership(ctx context.Context, req *ListOwnershipRequest) (*ListOwnershipResponse, error) {
	out := new(ListOwnershipResponse)
	return out, c.invoke(ctx, MethodListOwnership, req, out)
}

func (c *Client) ListAuditLog(ctx context.Context, req *ListAuditLogRequest) (*ListAuditLogResponse, error) {
	out := new(ListAuditLogResponse)
	return out, c.invoke(ctx, MethodListAuditLog, req, out)
}

func (c *Client) CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error) {
	out := new(CreateTokenResponse)
	return out, c.invoke(ctx, MethodCreateToken, req, out)
}
