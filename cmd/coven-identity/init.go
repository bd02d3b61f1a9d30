// ABOUTME: Interactive config generation for coven-identity init
// ABOUTME: Prompts over the defaults and leaves the signing secret to the environment

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/coven-identity/internal/config"
)

// prompter asks questions on out and reads answers from in. An empty
// answer or a closed input keeps the default.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(question, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return def
	}
	if line = strings.TrimSpace(line); line == "" {
		return def
	}
	return line
}

func (p *prompter) confirm(question string) bool {
	return isYes(p.ask(question, "no"))
}

func (p *prompter) section(title string) {
	fmt.Fprintf(p.out, "\n--- %s ---\n", title)
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}

// askConfig fills a config from the defaults. The JWT secret is written
// as a reference to $COVEN_IDENTITY_JWT_SECRET so it never lands on disk.
func askConfig(p *prompter, dataDir string) (*config.Config, error) {
	cfg := config.Default()
	cfg.Server.GRPCAddr = "localhost:50061"
	cfg.Server.HTTPAddr = "localhost:8081"
	cfg.Database.Path = filepath.Join(dataDir, "identity.db")
	cfg.Auth.JWTSecret = "${COVEN_IDENTITY_JWT_SECRET}"

	p.section("Server")
	cfg.Server.GRPCAddr = p.ask("gRPC address", cfg.Server.GRPCAddr)
	cfg.Server.HTTPAddr = p.ask("HTTP address", cfg.Server.HTTPAddr)

	p.section("Database")
	cfg.Database.Path = p.ask("SQLite database path", cfg.Database.Path)
	cfg.Database.Driver = p.ask("SQLite driver (sqlite/sqlite3)", cfg.Database.Driver)

	p.section("Tailscale")
	if cfg.Tailscale.Enabled = p.confirm("Enable Tailscale?"); cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = p.ask("Tailscale hostname", cfg.Tailscale.Hostname)
		cfg.Tailscale.AuthKey = p.ask("Tailscale auth key (empty uses TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = p.confirm("Ephemeral node?")
	}

	p.section("Verification")
	cfg.Verification.CodeTTLRaw = p.ask("Code lifetime", cfg.Verification.CodeTTLRaw)
	attempts, err := strconv.Atoi(p.ask("Confirm attempts per window", strconv.Itoa(cfg.Verification.MaxAttempts)))
	if err != nil || attempts < 1 {
		return nil, fmt.Errorf("confirm attempts must be a positive number")
	}
	cfg.Verification.MaxAttempts = attempts

	p.section("Logging")
	cfg.Logging.Level = p.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = p.ask("Log format (text/json)", cfg.Logging.Format)
	return cfg, nil
}

func runInit() error {
	p := &prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}

	fmt.Println("coven-identity configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	path := p.ask("Config file path", getConfigPath())
	if _, err := os.Stat(path); err == nil && !p.confirm("File exists. Overwrite?") {
		fmt.Println("Aborted.")
		return nil
	}

	cfg, err := askConfig(p, getDataPath())
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg, "coven-identity configuration\nGenerated by coven-identity init"); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", path)
	fmt.Println("Set COVEN_IDENTITY_JWT_SECRET (32+ bytes) or run bootstrap, then start the server:")
	fmt.Println("  coven-identity serve")
	return nil
}
