// ABOUTME: IdentityService handler for token issuance
// ABOUTME: Operators mint operator tokens for adapters and user tokens for active users

package api

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/store"
)

// CreateToken generates a JWT for an operator name or an active user.
func (s *Service) CreateToken(ctx context.Context, req *CreateTokenRequest) (*CreateTokenResponse, error) {
	authCtx := auth.MustFromContext(ctx)

	if req.Subject == "" {
		return nil, status.Error(codes.InvalidArgument, "subject required")
	}
	kind := auth.PrincipalKind(req.Kind)
	if kind != auth.KindOperator && kind != auth.KindUser {
		return nil, status.Error(codes.InvalidArgument, "kind must be operator or user")
	}

	// Check token generator is configured
	if s.tokens == nil {
		return nil, status.Error(codes.FailedPrecondition, "token generation not configured (no jwt_secret)")
	}

	if kind == auth.KindUser {
		u, err := s.identities.GetUser(ctx, req.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, status.Error(codes.NotFound, "user not found")
			}
			return nil, s.fail("CreateToken", err)
		}
		if u.Status != store.UserStatusActive {
			return nil, status.Errorf(codes.FailedPrecondition, "user status is %s, must be active", u.Status)
		}
	}

	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
		if ttl > maxTokenTTL {
			return nil, status.Errorf(codes.InvalidArgument, "ttl_seconds exceeds maximum of %d", int64(maxTokenTTL.Seconds()))
		}
	}

	token, err := s.tokens.Generate(req.Subject, kind, ttl)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate token")
	}
	expiresAt := s.now().Add(ttl)

	if err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			ActorUserID: store.SystemActor,
			Action:      store.AuditCreateToken,
			TargetType:  "principal",
			TargetID:    req.Subject,
			Timestamp:   s.now(),
			Detail: map[string]any{
				"kind":        string(kind),
				"issued_by":   authCtx.PrincipalID,
				"ttl_seconds": int64(ttl.Seconds()),
				"expires_at":  expiresAt.Format(time.RFC3339),
			},
		})
	}); err != nil {
		s.logger.Warn("failed to audit token creation", "subject", req.Subject, "error", err)
	}

	return &CreateTokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}
