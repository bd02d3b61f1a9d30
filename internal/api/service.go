// ABOUTME: IdentityService implementation over the identity subsystem components
// ABOUTME: Resolves the acting user from the auth context and maps errors to gRPC codes

package api

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/access"
	"github.com/2389/coven-identity/internal/acl"
	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/identity"
	"github.com/2389/coven-identity/internal/merge"
	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// Default TTL for tokens: 30 days.
const defaultTokenTTL = 30 * 24 * time.Hour

// Maximum TTL for tokens: 365 days.
const maxTokenTTL = 365 * 24 * time.Hour

// TokenGenerator generates JWT tokens.
type TokenGenerator interface {
	Generate(subject string, kind auth.PrincipalKind, ttl time.Duration) (string, error)
}

// AttemptLimiter bounds confirmation attempts per identity.
type AttemptLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

// Deps wires the service to its components. Tokens and Attempts are optional.
type Deps struct {
	Store      store.Store
	Identities *identity.Registry
	Workspaces *workspace.Registry
	ACL        *acl.Store
	Resolver   *access.Resolver
	Engine     *merge.Engine
	Tokens     TokenGenerator
	TokenTTL   time.Duration // TTL of user tokens issued on confirmation
	Attempts   AttemptLimiter
	Logger     *slog.Logger
	Now        func() time.Time
}

// Service implements the IdentityService RPCs.
type Service struct {
	store      store.Store
	identities *identity.Registry
	workspaces *workspace.Registry
	acl        *acl.Store
	resolver   *access.Resolver
	engine     *merge.Engine
	tokens     TokenGenerator
	tokenTTL   time.Duration
	attempts   AttemptLimiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service from its dependencies.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	ttl := d.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		store:      d.Store,
		identities: d.Identities,
		workspaces: d.Workspaces,
		acl:        d.ACL,
		resolver:   d.Resolver,
		engine:     d.Engine,
		tokens:     d.Tokens,
		tokenTTL:   ttl,
		attempts:   d.Attempts,
		logger:     logger.With("component", "api"),
		now:        func() time.Time { return now().UTC() },
	}
}

// actor returns the user a request acts as. See auth.AuthContext.ActorFor.
func (s *Service) actor(ctx context.Context, requested string) (string, error) {
	authCtx := auth.FromContext(ctx)
	if authCtx == nil {
		return "", status.Error(codes.Unauthenticated, "authentication required")
	}
	actor, err := authCtx.ActorFor(requested)
	if err != nil {
		return "", status.Error(codes.PermissionDenied, err.Error())
	}
	return actor, nil
}

// self resolves a user-scoped request: users may only name themselves,
// operators must name a user.
func (s *Service) self(ctx context.Context, userID string) (string, error) {
	actor, err := s.actor(ctx, userID)
	if err != nil {
		return "", err
	}
	if actor == store.SystemActor {
		return "", status.Error(codes.InvalidArgument, "user_id required")
	}
	return actor, nil
}

func (s *Service) fail(method string, err error) error {
	return toStatus(s.logger, method, err)
}

// Health reports whether the store is reachable.
func (s *Service) Health(ctx context.Context, _ *Empty) (*HealthResponse, error) {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return nil, status.Error(codes.Unavailable, "store unavailable")
	}
	return &HealthResponse{Status: "ok"}, nil
}
