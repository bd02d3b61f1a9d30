// ABOUTME: Hand-written gRPC service descriptor for the IdentityService
// ABOUTME: Lists every method, which ones need operator tokens, and which skip auth

package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "coven.identity.v1.IdentityService"

// FullMethod returns the full gRPC method name of an IdentityService method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Method names.
const (
	MethodHealth                    = "Health"
	MethodProvisionUser             = "ProvisionUser"
	MethodGetUser                   = "GetUser"
	MethodSuspendUser               = "SuspendUser"
	MethodCreateIdentity            = "CreateIdentity"
	MethodGetIdentity               = "GetIdentity"
	MethodListIdentities            = "ListIdentities"
	MethodRequestVerification       = "RequestVerification"
	MethodConfirmVerification       = "ConfirmVerification"
	MethodCreateWorkspace           = "CreateWorkspace"
	MethodEnsureIndividualWorkspace = "EnsureIndividualWorkspace"
	MethodGetWorkspace              = "GetWorkspace"
	MethodListMembers               = "ListMembers"
	MethodGrantMembership           = "GrantMembership"
	MethodRevokeMembership          = "RevokeMembership"
	MethodCreateGroup               = "CreateGroup"
	MethodGetGroup                  = "GetGroup"
	MethodListGroupMembers          = "ListGroupMembers"
	MethodAddGroupMember            = "AddGroupMember"
	MethodRemoveGroupMember         = "RemoveGroupMember"
	MethodGrantACL                  = "GrantACL"
	MethodRevokeACL                 = "RevokeACL"
	MethodListGrants                = "ListGrants"
	MethodResolve                   = "Resolve"
	MethodMerge                     = "Merge"
	MethodSplit                     = "Split"
	MethodRemove                    = "Remove"
	MethodGetOperation              = "GetOperation"
	MethodListOperations            = "ListOperations"
	MethodMarkRolledBack            = "MarkRolledBack"
	MethodRegisterOwnership         = "RegisterOwnership"
	MethodListOwnership             = "ListOwnership"
	MethodListAuditLog              = "ListAuditLog"
	MethodCreateToken               = "CreateToken"
)

// PublicMethods skip authentication.
var PublicMethods = []string{
	FullMethod(MethodHealth),
}

// OperatorMethods refuse user tokens.
var OperatorMethods = []string{
	FullMethod(MethodProvisionUser),
	FullMethod(MethodSuspendUser),
	FullMethod(MethodCreateIdentity),
	FullMethod(MethodGetIdentity),
	FullMethod(MethodRequestVerification),
	FullMethod(MethodConfirmVerification),
	FullMethod(MethodCreateWorkspace),
	FullMethod(MethodMerge),
	FullMethod(MethodSplit),
	FullMethod(MethodRemove),
	FullMethod(MethodGetOperation),
	FullMethod(MethodListOperations),
	FullMethod(MethodMarkRolledBack),
	FullMethod(MethodRegisterOwnership),
	FullMethod(MethodListOwnership),
	FullMethod(MethodListAuditLog),
	FullMethod(MethodCreateToken),
}

// unary builds the method descriptor of one request/response RPC.
func unary[Req, Resp any](name string, call func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(*Service)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the IdentityService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodHealth, (*Service).Health),
		unary(MethodProvisionUser, (*Service).ProvisionUser),
		unary(MethodGetUser, (*Service).GetUser),
		unary(MethodSuspendUser, (*Service).SuspendUser),
		unary(MethodCreateIdentity, (*Service).CreateIdentity),
		unary(MethodGetIdentity, (*Service).GetIdentity),
		unary(MethodListIdentities, (*Service).ListIdentities),
		unary(MethodRequestVerification, (*Service).RequestVerification),
		unary(MethodConfirmVerification, (*Service).ConfirmVerification),
		unary(MethodCreateWorkspace, (*Service).CreateWorkspace),
		unary(MethodEnsureIndividualWorkspace, (*Service).EnsureIndividualWorkspace),
		unary(MethodGetWorkspace, (*Service).GetWorkspace),
		unary(MethodListMembers, (*Service).ListMembers),
		unary(MethodGrantMembership, (*Service).GrantMembership),
		unary(MethodRevokeMembership, (*Service).RevokeMembership),
		unary(MethodCreateGroup, (*Service).CreateGroup),
		unary(MethodGetGroup, (*Service).GetGroup),
		unary(MethodListGroupMembers, (*Service).ListGroupMembers),
		unary(MethodAddGroupMember, (*Service).AddGroupMember),
		unary(MethodRemoveGroupMember, (*Service).RemoveGroupMember),
		unary(MethodGrantACL, (*Service).GrantACL),
		unary(MethodRevokeACL, (*Service).RevokeACL),
		unary(MethodListGrants, (*Service).ListGrants),
		unary(MethodResolve, (*Service).Resolve),
		unary(MethodMerge, (*Service).Merge),
		unary(MethodSplit, (*Service).Split),
		unary(MethodRemove, (*Service).Remove),
		unary(MethodGetOperation, (*Service).GetOperation),
		unary(MethodListOperations, (*Service).ListOperations),
		unary(MethodMarkRolledBack, (*Service).MarkRolledBack),
		unary(MethodRegisterOwnership, (*Service).RegisterOwnership),
		unary(MethodListOwnership, (*Service).ListOwnership),
		unary(MethodListAuditLog, (*Service).ListAuditLog),
		unary(MethodCreateToken, (*Service).CreateToken),
	},
	Metadata: "coven/identity/v1/identity.json",
}

// Register adds svc to a gRPC server. The server must use Codec.
func Register(s grpc.ServiceRegistrar, svc *Service) {
	s.RegisterService(&ServiceDesc, svc)
}
