// ABOUTME: First-run setup: config with a fresh signing secret, public workspace, operator token
// ABOUTME: Safe to re-run; existing config and workspace are reused

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/config"
	"github.com/2389/coven-identity/internal/server"
	"github.com/2389/coven-identity/internal/store"
	"github.com/2389/coven-identity/internal/workspace"
)

const maxOperatorNameLen = 100

// parseNameFlag reads an optional --name (or -n) in "--name v" or
// "--name=v" form. The default principal is "operator".
func parseNameFlag(args []string) (string, error) {
	name := "operator"
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if v, ok := strings.CutPrefix(arg, "--name="); ok {
			name = v
			continue
		}
		switch {
		case arg == "--name" || arg == "-n":
			if i+1 == len(args) {
				return "", errors.New("--name requires a value")
			}
			i++
			name = args[i]
		case strings.HasPrefix(arg, "-"):
			return "", fmt.Errorf("unknown flag: %s", arg)
		default:
			return "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.New("operator name cannot be empty")
	case name == store.SystemActor:
		return "", fmt.Errorf("operator name %q is reserved", name)
	case len(name) > maxOperatorNameLen:
		return "", fmt.Errorf("operator name exceeds %d characters", maxOperatorNameLen)
	}
	return name, nil
}

// writeBootstrapConfig saves a local-only config with a random 32-byte
// signing secret and makes sure the database directory exists.
func writeBootstrapConfig(configPath, dbPath string) error {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	cfg := config.Default()
	cfg.Server.GRPCAddr = "localhost:50061"
	cfg.Server.HTTPAddr = "localhost:8081"
	cfg.Database.Path = dbPath
	cfg.Auth.JWTSecret = base64.StdEncoding.EncodeToString(secret)

	if err := config.Save(configPath, cfg, "coven-identity configuration\nGenerated by coven-identity bootstrap"); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// ensurePublicWorkspace creates the singleton public workspace, or loads
// it when an earlier run already did.
func ensurePublicWorkspace(ctx context.Context, s store.Store) (*store.Workspace, bool, error) {
	registry := workspace.NewRegistry(workspace.Config{Store: s})
	ws, err := registry.CreateWorkspace(ctx, workspace.CreateRequest{
		Type:        store.WorkspacePublic,
		Owner:       store.OwnerRef{Kind: store.OwnerPublic, ID: store.PublicOwnerID},
		Name:        "Public",
		ActorUserID: store.SystemActor,
	})
	if err == nil {
		return ws, true, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, false, fmt.Errorf("creating public workspace: %w", err)
	}

	err = s.View(ctx, func(tx store.Tx) error {
		var getErr error
		ws, getErr = tx.GetPublicWorkspace(ctx)
		return getErr
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading public workspace: %w", err)
	}
	return ws, false, nil
}

// issueOperatorToken signs an operator token for name and audits it.
func issueOperatorToken(ctx context.Context, s store.Store, cfg *config.Config, name string) (string, time.Time, error) {
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(name, auth.KindOperator, cfg.Auth.TokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(cfg.Auth.TokenTTL)
	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.AppendAuditLog(ctx, &store.AuditEntry{
			Action:     store.AuditCreateToken,
			TargetType: "principal",
			TargetID:   name,
			Timestamp:  now,
			Detail: map[string]any{
				"kind":       string(auth.KindOperator),
				"issued_by":  "bootstrap",
				"expires_at": expiresAt.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("recording token issuance: %w", err)
	}
	return token, expiresAt, nil
}

func runBootstrap(ctx context.Context, args []string) error {
	name, err := parseNameFlag(args)
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen)
	info := color.New(color.FgCyan)

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeBootstrapConfig(configPath, filepath.Join(getDataPath(), "identity.db")); err != nil {
			return err
		}
		ok.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		info.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("bootstrap needs auth.jwt_secret set in %s", configPath)
	}

	s, err := server.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	ok.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	public, created, err := ensurePublicWorkspace(ctx, s)
	if err != nil {
		return err
	}
	if created {
		ok.Printf("  ✓ Created public workspace: %s\n", public.ID)
	} else {
		info.Printf("  Public workspace exists: %s\n", public.ID)
	}

	token, expiresAt, err := issueOperatorToken(ctx, s, cfg, name)
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(filepath.Dir(configPath), "identity-token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	ok.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	ok.Println("  Bootstrap complete")
	fmt.Printf("  Operator:         %s\n", name)
	fmt.Printf("  Public workspace: %s\n", public.ID)
	fmt.Printf("  Token expires:    %s\n", expiresAt.Format("Jan 02, 2006"))
	fmt.Println()
	color.New(color.FgYellow).Println("  Next:")
	fmt.Println("    coven-identity serve")
	fmt.Println("    coven-identity-admin status")
	return nil
}
