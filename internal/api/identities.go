// ABOUTME: IdentityService handlers for users, identities, and verification
// ABOUTME: Confirmation attempts are rate limited per identity before the code is checked

package api

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/store"
)

// ProvisionUser creates a persistent user.
func (s *Service) ProvisionUser(ctx context.Context, req *ProvisionUserRequest) (*UserResponse, error) {
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	u, err := s.identities.ProvisionUser(ctx, req.UserID, actor)
	if err != nil {
		return nil, s.fail("ProvisionUser", err)
	}
	return &UserResponse{User: userToWire(u)}, nil
}

// GetUser returns a user. Users may only look up themselves.
func (s *Service) GetUser(ctx context.Context, req *UserRequest) (*UserResponse, error) {
	userID, err := s.self(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	u, err := s.identities.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail("GetUser", err)
	}
	return &UserResponse{User: userToWire(u)}, nil
}

// SuspendUser suspends a user. Suspended users resolve to no permission.
func (s *Service) SuspendUser(ctx context.Context, req *UserRequest) (*Empty, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	actor, err := s.actor(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}
	if err := s.identities.SuspendUser(ctx, req.UserID, actor); err != nil {
		return nil, s.fail("SuspendUser", err)
	}
	return &Empty{}, nil
}

// CreateIdentity creates the anonymous identity of a new thread.
func (s *Service) CreateIdentity(ctx context.Context, req *CreateIdentityRequest) (*IdentityResponse, error) {
	ident, err := s.identities.CreateIdentity(ctx, req.Channel, req.ThreadID)
	if err != nil {
		return nil, s.fail("CreateIdentity", err)
	}
	return &IdentityResponse{Identity: identityToWire(ident)}, nil
}

// GetIdentity looks an identity up by ID or by thread.
func (s *Service) GetIdentity(ctx context.Context, req *GetIdentityRequest) (*IdentityResponse, error) {
	var ident *store.Identity
	var err error
	switch {
	case req.IdentityID != "" && req.ThreadID != "":
		return nil, status.Error(codes.InvalidArgument, "only one of identity_id and thread_id may be set")
	case req.IdentityID != "":
		ident, err = s.identities.GetIdentity(ctx, req.IdentityID)
	case req.ThreadID != "":
		ident, err = s.identities.GetIdentityByThread(ctx, req.ThreadID)
	default:
		return nil, status.Error(codes.InvalidArgument, "identity_id or thread_id required")
	}
	if err != nil {
		return nil, s.fail("GetIdentity", err)
	}
	return &IdentityResponse{Identity: identityToWire(ident)}, nil
}

// ListIdentities returns the identities bound to a user. Users may only
// list their own.
func (s *Service) ListIdentities(ctx context.Context, req *UserRequest) (*ListIdentitiesResponse, error) {
	userID, err := s.self(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	idents, err := s.identities.ListIdentitiesByUser(ctx, userID)
	if err != nil {
		return nil, s.fail("ListIdentities", err)
	}
	return &ListIdentitiesResponse{Identities: identitiesToWire(idents)}, nil
}

// RequestVerification issues a code for out-of-band delivery by the caller.
func (s *Service) RequestVerification(ctx context.Context, req *RequestVerificationRequest) (*RequestVerificationResponse, error) {
	if req.IdentityID == "" {
		return nil, status.Error(codes.InvalidArgument, "identity_id required")
	}
	code, err := s.identities.RequestVerification(ctx, req.IdentityID, req.Method, req.Contact)
	if err != nil {
		return nil, s.fail("RequestVerification", err)
	}
	return &RequestVerificationResponse{Code: code}, nil
}

// ConfirmVerification checks a code and binds the identity. On success a
// user token is returned when token generation is configured.
func (s *Service) ConfirmVerification(ctx context.Context, req *ConfirmVerificationRequest) (*ConfirmVerificationResponse, error) {
	if req.IdentityID == "" || req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "identity_id and code required")
	}

	if s.attempts != nil && !s.attempts.Allow(req.IdentityID) {
		s.logger.Warn("verification attempt limit reached", "identity_id", req.IdentityID)
		return nil, status.Error(codes.ResourceExhausted, "too many verification attempts, try again later")
	}

	ident, err := s.identities.ConfirmVerification(ctx, req.IdentityID, req.Code, req.TargetUserID)
	if err != nil {
		return nil, s.fail("ConfirmVerification", err)
	}
	if s.attempts != nil {
		s.attempts.Reset(req.IdentityID)
	}

	resp := &ConfirmVerificationResponse{Identity: identityToWire(ident)}
	if s.tokens != nil {
		token, err := s.tokens.Generate(*ident.PersistentUserID, auth.KindUser, s.tokenTTL)
		if err != nil {
			s.logger.Error("failed to issue user token", "user_id", *ident.PersistentUserID, "error", err)
			return nil, status.Error(codes.Internal, "failed to generate token")
		}
		expires := s.now().Add(s.tokenTTL)
		resp.Token = token
		resp.TokenExpiresAt = &expires
	}
	return resp, nil
}
