// ABOUTME: Interceptor that reserves privileged IdentityService methods for operators
// ABOUTME: Chained after UnaryInterceptor so the caller is already known

package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RequireOperator refuses user tokens on the listed full method names.
func RequireOperator(methods ...string) grpc.UnaryServerInterceptor {
	gated := make(map[string]bool, len(methods))
	for _, m := range methods {
		gated[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !gated[info.FullMethod] {
			return handler(ctx, req)
		}

		switch ac := FromContext(ctx); {
		case ac == nil:
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		case !ac.IsOperator():
			return nil, status.Errorf(codes.PermissionDenied, "%s requires an operator token", info.FullMethod)
		}
		return handler(ctx, req)
	}
}
