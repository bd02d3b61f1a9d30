// ABOUTME: End-to-end IdentityService tests over an in-memory gRPC connection
// ABOUTME: Exercise auth, the JSON codec, error mapping, and the main identity flows

package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/2389/coven-identity/internal/access"
	"github.com/2389/coven-identity/internal/acl"
	"github.com/2389/coven-identity/internal/attempts"
	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/identity"
	"github.com/2389/coven-identity/internal/merge"
	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

// testSecret is a 32-byte secret that meets MinSecretLength requirement.
var testSecret = []byte("identity-api-test-secret-32byte!")

type testEnv struct {
	store    *store.MockStore
	verifier *auth.JWTVerifier
	conn     *grpc.ClientConn
	operator *Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := store.NewMockStore()
	verifier, err := auth.NewJWTVerifier(testSecret)
	require.NoError(t, err)

	limiter := attempts.New(attempts.Config{MaxAttempts: 3, Window: time.Hour})
	t.Cleanup(limiter.Close)

	identities := identity.NewRegistry(identity.Config{Store: s, BcryptCost: bcrypt.MinCost})
	svc := NewService(Deps{
		Store:      s,
		Identities: identities,
		Workspaces: workspace.NewRegistry(workspace.Config{Store: s}),
		ACL:        acl.New(acl.Config{Store: s}),
		Resolver:   access.NewResolver(access.Config{Store: s}),
		Engine:     merge.New(merge.Config{Store: s}),
		Tokens:     verifier,
		TokenTTL:   time.Hour,
		Attempts:   limiter,
	})

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(
			auth.UnaryInterceptor(verifier, identities, nil, PublicMethods...),
			auth.RequireOperator(OperatorMethods...),
		),
	)
	Register(server, svc)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	opToken, err := verifier.Generate("test-operator", auth.KindOperator, time.Hour)
	require.NoError(t, err)

	return &testEnv{store: s, verifier: verifier, conn: conn, operator: NewClient(conn, opToken)}
}

func (e *testEnv) userClient(t *testing.T, userID string) *Client {
	t.Helper()
	token, err := e.verifier.Generate(userID, auth.KindUser, time.Hour)
	require.NoError(t, err)
	return NewClient(e.conn, token)
}

func (e *testEnv) provision(t *testing.T, userID string) {
	t.Helper()
	_, err := e.operator.ProvisionUser(context.Background(), &ProvisionUserRequest{UserID: userID})
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "error: %v", err)
}

func TestHealth_NeedsNoToken(t *testing.T) {
	env := newTestEnv(t)
	resp, err := NewClient(env.conn, "").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestAuth_Required(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewClient(env.conn, "").ProvisionUser(context.Background(), &ProvisionUserRequest{UserID: "user-a"})
	requireCode(t, err, codes.Unauthenticated)

	_, err = NewClient(env.conn, "garbage").ProvisionUser(context.Background(), &ProvisionUserRequest{UserID: "user-a"})
	requireCode(t, err, codes.Unauthenticated)
}

func TestVerificationFlow_IssuesUserToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.operator.CreateIdentity(ctx, &CreateIdentityRequest{Channel: "telegram", ThreadID: "tg-100"})
	require.NoError(t, err)
	assert.Equal(t, "anonymous", created.Identity.VerificationStatus)

	issued, err := env.operator.RequestVerification(ctx, &RequestVerificationRequest{
		IdentityID: created.Identity.ID,
		Method:     "email",
		Contact:    "ada@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Code)

	confirmed, err := env.operator.ConfirmVerification(ctx, &ConfirmVerificationRequest{
		IdentityID: created.Identity.ID,
		Code:       issued.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, "verified", confirmed.Identity.VerificationStatus)
	require.NotEmpty(t, confirmed.Identity.PersistentUserID)
	require.NotEmpty(t, confirmed.Token)
	require.NotNil(t, confirmed.TokenExpiresAt)

	claims, err := env.verifier.Verify(confirmed.Token)
	require.NoError(t, err)
	assert.Equal(t, confirmed.Identity.PersistentUserID, claims.Subject)
	assert.Equal(t, auth.KindUser, claims.Kind)

	// The new user can use the token for user-scoped calls.
	user := NewClient(env.conn, confirmed.Token)
	ws, err := user.EnsureIndividualWorkspace(ctx, &UserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "individual", ws.Workspace.Type)
	assert.Equal(t, Owner{Kind: "user", ID: claims.Subject}, ws.Workspace.Owner)

	idents, err := user.ListIdentities(ctx, &UserRequest{})
	require.NoError(t, err)
	require.Len(t, idents.Identities, 1)
	assert.Equal(t, "tg-100", idents.Identities[0].ThreadID)

	// But not operator methods.
	_, err = user.Merge(ctx, &MergeRequest{SourceThreadIDs: []string{"tg-100"}, TargetUserID: claims.Subject})
	requireCode(t, err, codes.PermissionDenied)
}

func TestConfirmVerification_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.operator.CreateIdentity(ctx, &CreateIdentityRequest{Channel: "slack", ThreadID: "sl-1"})
	require.NoError(t, err)

	// No code pending yet.
	_, err = env.operator.ConfirmVerification(ctx, &ConfirmVerificationRequest{IdentityID: created.Identity.ID, Code: "000000"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.operator.ConfirmVerification(ctx, &ConfirmVerificationRequest{IdentityID: "anon_slack_missing", Code: "000000"})
	requireCode(t, err, codes.NotFound)
}

func TestConfirmVerification_AttemptLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.operator.CreateIdentity(ctx, &CreateIdentityRequest{Channel: "telegram", ThreadID: "tg-brute"})
	require.NoError(t, err)
	issued, err := env.operator.RequestVerification(ctx, &RequestVerificationRequest{
		IdentityID: created.Identity.ID, Method: "sms", Contact: "+15550100",
	})
	require.NoError(t, err)

	wrong := "x" + issued.Code
	for range 3 {
		_, err := env.operator.ConfirmVerification(ctx, &ConfirmVerificationRequest{IdentityID: created.Identity.ID, Code: wrong})
		requireCode(t, err, codes.InvalidArgument)
	}

	// The limit holds even for the right code.
	_, err = env.operator.ConfirmVerification(ctx, &ConfirmVerificationRequest{IdentityID: created.Identity.ID, Code: issued.Code})
	requireCode(t, err, codes.ResourceExhausted)

	got, err := env.operator.GetIdentity(ctx, &GetIdentityRequest{ThreadID: "tg-brute"})
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Identity.VerificationStatus)
}

func TestResolve_MembershipAndGrant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provision(t, "user-a")
	env.provision(t, "user-b")

	userA := env.userClient(t, "user-a")
	ws, err := userA.EnsureIndividualWorkspace(ctx, &UserRequest{})
	require.NoError(t, err)
	wsID := ws.Workspace.ID

	require.NoError(t, userA.GrantMembership(ctx, &MembershipRequest{WorkspaceID: wsID, UserID: "user-b", Role: "reader"}))

	future := time.Now().Add(time.Hour).UTC()
	granted, err := userA.GrantACL(ctx, &GrantRequest{
		WorkspaceID: wsID, ResourceType: "file", ResourceID: "F1",
		Target: Target{UserID: "user-b"}, Permission: "write", ExpiresAt: &future,
	})
	require.NoError(t, err)
	assert.Equal(t, "write", granted.Grant.Permission)

	userB := env.userClient(t, "user-b")
	r, err := userB.Resolve(ctx, &ResolveRequest{WorkspaceID: wsID, ResourceType: "file", ResourceID: "F1"})
	require.NoError(t, err)
	assert.Equal(t, "write", r.Permission)
	assert.Equal(t, "reader", r.Role)

	r, err = userB.Resolve(ctx, &ResolveRequest{WorkspaceID: wsID, ResourceType: "file", ResourceID: "F2"})
	require.NoError(t, err)
	assert.Equal(t, "read", r.Permission)

	// Users may not resolve for someone else; operators may.
	_, err = userB.Resolve(ctx, &ResolveRequest{UserID: "user-a", WorkspaceID: wsID, ResourceType: "file", ResourceID: "F1"})
	requireCode(t, err, codes.PermissionDenied)

	r, err = env.operator.Resolve(ctx, &ResolveRequest{UserID: "user-a", WorkspaceID: wsID, ResourceType: "file", ResourceID: "F1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", r.Permission)

	// user-b is not an admin of the workspace.
	err = userB.GrantMembership(ctx, &MembershipRequest{WorkspaceID: wsID, UserID: "user-b", Role: "admin"})
	requireCode(t, err, codes.PermissionDenied)

	// Nor can user-b act as user-a.
	err = userB.GrantMembership(ctx, &MembershipRequest{WorkspaceID: wsID, UserID: "user-b", Role: "admin", ActorUserID: "user-a"})
	requireCode(t, err, codes.PermissionDenied)
}

func TestMerge_ConflictIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, thread := range []string{"T1", "T2"} {
		_, err := env.operator.CreateIdentity(ctx, &CreateIdentityRequest{Channel: "telegram", ThreadID: thread})
		require.NoError(t, err)
	}

	merged, err := env.operator.Merge(ctx, &MergeRequest{SourceThreadIDs: []string{"T1"}, TargetUserID: "user-a", Channel: "telegram"})
	require.NoError(t, err)
	assert.Equal(t, "completed", merged.Operation.Status)
	assert.Equal(t, []string{"T1"}, merged.Operation.AffectedThreadIDs)

	_, err = env.operator.Merge(ctx, &MergeRequest{SourceThreadIDs: []string{"T2", "T1"}, TargetUserID: "user-b"})
	requireCode(t, err, codes.AlreadyExists)

	failed, err := env.operator.ListOperations(ctx, &ListOperationsRequest{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed.Operations, 1)
	assert.Equal(t, "user-b", failed.Operations[0].TargetUserID)
	assert.NotEmpty(t, failed.Operations[0].ErrorMessage)

	// T2 stayed unbound.
	t2, err := env.operator.GetIdentity(ctx, &GetIdentityRequest{ThreadID: "T2"})
	require.NoError(t, err)
	assert.Empty(t, t2.Identity.PersistentUserID)

	rolled, err := env.operator.MarkRolledBack(ctx, &RollbackRequest{OperationID: merged.Operation.ID, Reason: "wrong person"})
	require.NoError(t, err)
	assert.Equal(t, "rolled_back", rolled.Operation.Status)

	audit, err := env.operator.ListAuditLog(ctx, &ListAuditLogRequest{Action: string(store.AuditRollbackOperation)})
	require.NoError(t, err)
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, merged.Operation.ID, audit.Entries[0].TargetID)
}

func TestOwnership_RegisterThenMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.operator.CreateIdentity(ctx, &CreateIdentityRequest{Channel: "slack", ThreadID: "S1"})
	require.NoError(t, err)
	_, err = env.operator.RegisterOwnership(ctx, &RegisterOwnershipRequest{ResourceKind: "file_path", ResourceID: "/a.md", ThreadID: "S1"})
	require.NoError(t, err)

	_, err = env.operator.Merge(ctx, &MergeRequest{SourceThreadIDs: []string{"S1"}, TargetUserID: "user-m"})
	require.NoError(t, err)

	rows, err := env.operator.ListOwnership(ctx, &ListOwnershipRequest{UserID: "user-m"})
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "/a.md", rows.Rows[0].ResourceID)
}

func TestCreateToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provision(t, "user-a")

	resp, err := env.operator.CreateToken(ctx, &CreateTokenRequest{Subject: "user-a", Kind: "user", TTLSeconds: 60})
	require.NoError(t, err)
	claims, err := env.verifier.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.Subject)

	_, err = env.operator.CreateToken(ctx, &CreateTokenRequest{Subject: "user-missing", Kind: "user"})
	requireCode(t, err, codes.NotFound)

	_, err = env.operator.CreateToken(ctx, &CreateTokenRequest{Subject: "x", Kind: "agent"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.operator.CreateToken(ctx, &CreateTokenRequest{Subject: "adapter", Kind: "operator", TTLSeconds: int64((400 * 24 * time.Hour).Seconds())})
	requireCode(t, err, codes.InvalidArgument)

	// Suspended users lose access even with a valid token.
	userA := NewClient(env.conn, resp.Token)
	require.NoError(t, env.operator.SuspendUser(ctx, &UserRequest{UserID: "user-a"}))
	_, err = userA.GetUser(ctx, &UserRequest{})
	requireCode(t, err, codes.PermissionDenied)
}

func TestListAuditLog_UnknownAction(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.operator.ListAuditLog(context.Background(), &ListAuditLogRequest{Action: "drop_tables"})
	requireCode(t, err, codes.InvalidArgument)
}
