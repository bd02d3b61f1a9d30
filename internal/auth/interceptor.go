// ABOUTME: gRPC interceptors that turn a bearer token into an AuthContext
// ABOUTME: User tokens are refused once the account is suspended

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/store"
)

// UserLookup retrieves persistent users so user tokens of suspended
// accounts can be refused.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*store.User, error)
}

type authenticator struct {
	tokens TokenVerifier
	users  UserLookup
	logger *slog.Logger
}

// UnaryInterceptor authenticates every call except the methods listed in
// public. users may be nil, in which case account status is not checked.
// Rejections are logged when logger is non-nil.
func UnaryInterceptor(tokens TokenVerifier, users UserLookup, logger *slog.Logger, public ...string) grpc.UnaryServerInterceptor {
	a := &authenticator{tokens: tokens, users: users, logger: logger}
	skip := make(map[string]bool, len(public))
	for _, m := range public {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}
		ac, err := a.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(WithAuth(ctx, ac), req)
	}
}

// NoAuthUnaryInterceptor treats every caller as an operator. It is used
// only when no signing secret is configured.
func NoAuthUnaryInterceptor() grpc.UnaryServerInterceptor {
	anonymous := &AuthContext{PrincipalID: "anonymous", Kind: KindOperator}
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(WithAuth(ctx, anonymous), req)
	}
}

func (a *authenticator) authenticate(ctx context.Context, method string) (*AuthContext, error) {
	raw, err := bearerToken(ctx)
	if err != nil {
		a.reject(ctx, method, "bad_credentials", "error", err.Error())
		return nil, err
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.reject(ctx, method, "token_rejected", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	if claims.Kind == KindUser {
		if err := a.checkUser(ctx, claims.Subject); err != nil {
			a.reject(ctx, method, "user_inactive", "user_id", claims.Subject)
			return nil, err
		}
	}
	return &AuthContext{PrincipalID: claims.Subject, Kind: claims.Kind}, nil
}

// checkUser rejects user tokens whose account is unknown or suspended.
func (a *authenticator) checkUser(ctx context.Context, userID string) error {
	if a.users == nil {
		return nil
	}
	u, err := a.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.Unauthenticated, "user not found")
	case err != nil:
		return status.Errorf(codes.Internal, "looking up user: %v", err)
	case u.Status != store.UserStatusActive:
		return status.Error(codes.PermissionDenied, "user is suspended")
	}
	return nil
}

func (a *authenticator) reject(ctx context.Context, method, reason string, attrs ...any) {
	if a.logger == nil {
		return
	}
	fields := []any{"method", method, "reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fields = append(fields, "peer_addr", p.Addr.String())
	}
	a.logger.Warn("request rejected", append(fields, attrs...)...)
}

// bearerToken reads the token from the "authorization" metadata key.
func bearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", status.Error(codes.Unauthenticated, "missing authorization header")
	}
	token, found := strings.CutPrefix(values[0], "Bearer ")
	if !found || token == "" {
		return "", status.Error(codes.Unauthenticated, "invalid authorization header format")
	}
	return token, nil
}
