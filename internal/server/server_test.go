// ABOUTME: Tests for the Server orchestrator lifecycle and wiring
// ABOUTME: Runs real TCP listeners against a temp SQLite database

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/api"
	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/config"
)

const testSecret = "server-test-secret-at-least-32-bytes"

// freeAddr reserves and releases a loopback port.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// testConfig creates a config with free ports and a temp database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.GRPCAddr = freeAddr(t)
	cfg.Server.HTTPAddr = freeAddr(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "identity.db")
	cfg.Verification.BcryptCost = bcrypt.MinCost
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer runs srv until the test ends and waits for the HTTP listener.
func startServer(t *testing.T, cfg *config.Config) {
	t.Helper()
	srv, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}

func dial(t *testing.T, cfg *config.Config) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(cfg.Server.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNew_BadDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "postgres"
	_, err := New(cfg, testLogger())
	require.Error(t, err)
}

func TestNew_WeakSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"
	_, err := New(cfg, testLogger())
	require.ErrorIs(t, err, auth.ErrWeakSecret)
}

func TestRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestRun_AddressInUse(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	require.NoError(t, err)
	defer ln.Close()

	srv, err := New(cfg, testLogger())
	require.NoError(t, err)
	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gRPC address")
}

func TestHealthEndpoints(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg)

	for _, path := range []string{"/health", "/health/ready"} {
		resp, err := http.Get("http://" + cfg.Server.HTTPAddr + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "%s: %s", path, body)
	}
}

func TestGRPC_NoAuthActsAsOperator(t *testing.T) {
	cfg := testConfig(t)
	startServer(t, cfg)

	client := api.NewClient(dial(t, cfg), "")
	ctx := context.Background()

	created, err := client.CreateIdentity(ctx, &api.CreateIdentityRequest{Channel: "telegram", ThreadID: "T1"})
	require.NoError(t, err)

	op, err := client.Merge(ctx, &api.MergeRequest{SourceThreadIDs: []string{"T1"}, TargetUserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "completed", op.Operation.Status)

	got, err := client.GetIdentity(ctx, &api.GetIdentityRequest{IdentityID: created.Identity.ID})
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Identity.PersistentUserID)

	// Without a secret there is nothing to sign tokens with.
	_, err = client.CreateToken(ctx, &api.CreateTokenRequest{Subject: "adapter", Kind: "operator"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_WithAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = testSecret
	startServer(t, cfg)

	conn := dial(t, cfg)
	ctx := context.Background()

	health, err := api.NewClient(conn, "").Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	_, err = api.NewClient(conn, "").CreateIdentity(ctx, &api.CreateIdentityRequest{Channel: "slack", ThreadID: "S1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	token, err := verifier.Generate("adapter", auth.KindOperator, time.Hour)
	require.NoError(t, err)

	operator := api.NewClient(conn, token)
	_, err = operator.CreateIdentity(ctx, &api.CreateIdentityRequest{Channel: "slack", ThreadID: "S1"})
	require.NoError(t, err)

	minted, err := operator.CreateToken(ctx, &api.CreateTokenRequest{Subject: "adapter-2", Kind: "operator", TTLSeconds: 60})
	require.NoError(t, err)
	claims, err := verifier.Verify(minted.Token)
	require.NoError(t, err)
	assert.Equal(t, "adapter-2", claims.Subject)
}
