// ABOUTME: Unit tests for the operator gate interceptor
// ABOUTME: Tests that gated methods refuse user tokens and pass operators

package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

const gatedMethod = "/coven.identity.v1.IdentityService/Merge"

func TestOperatorGate(t *testing.T) {
	interceptor := RequireOperator(gatedMethod)

	tests := []struct {
		name   string
		auth   *AuthContext
		method string
		want   codes.Code
	}{
		{name: "operator on gated method", auth: &AuthContext{PrincipalID: "ops", Kind: KindOperator}, method: gatedMethod, want: codes.OK},
		{name: "user on gated method", auth: &AuthContext{PrincipalID: "user-a", Kind: KindUser}, method: gatedMethod, want: codes.PermissionDenied},
		{name: "no auth context on gated method", auth: nil, method: gatedMethod, want: codes.Unauthenticated},
		{name: "user on open method", auth: &AuthContext{PrincipalID: "user-a", Kind: KindUser}, method: "/coven.identity.v1.IdentityService/Resolve", want: codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.auth != nil {
				ctx = WithAuth(ctx, tt.auth)
			}

			handlerCalled := false
			handler := func(ctx context.Context, req any) (any, error) {
				handlerCalled = true
				return "success", nil
			}

			_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if tt.want == codes.OK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !handlerCalled {
					t.Error("handler was not called")
				}
				return
			}
			requireCode(t, err, tt.want)
			if handlerCalled {
				t.Error("handler should not be called")
			}
		})
	}
}
