// ABOUTME: Entry point for the coven-identity server binary
// ABOUTME: Dispatches serve, init, bootstrap, health, and version subcommands

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-identity/internal/config"
	"github.com/2389/coven-identity/internal/server"
)

// version is overwritten at release time.
var version = "dev"

const banner = `
                                     _     _            _   _ _
  ___ _____   _____ _ __            (_) __| | ___ _ __ | |_(_) |_ _   _
 / __/ _ \ \ / / _ \ '_ \   _____   | |/ _' |/ _ \ '_ \| __| | __| | | |
| (_| (_) \ V /  __/ | | | |_____|  | | (_| |  __/ | | | |_| | |_| |_| |
 \___\___/ \_/ \___|_| |_|          |_|\__,_|\___|_| |_|\__|_|\__|\__, |
                                                                  |___/
`

const usage = `Usage: coven-identity <command>

Commands:
  serve                  Start the identity server
  init                   Create a new config file interactively
  bootstrap [--name N]   Create the public workspace and an operator token
  health                 Check server health
  version                Print the version
`

// getConfigPath resolves the config file: $COVEN_IDENTITY_CONFIG, then
// $XDG_CONFIG_HOME/coven/identity.yaml, then ~/.config/coven/identity.yaml.
func getConfigPath() string {
	if p := os.Getenv("COVEN_IDENTITY_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "identity.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "coven", "identity.yaml")
}

// getDataPath resolves the data directory under $XDG_DATA_HOME or
// ~/.local/share.
func getDataPath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "coven")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands := map[string]func() error{
		"serve":     func() error { return runServe(ctx) },
		"init":      runInit,
		"bootstrap": func() error { return runBootstrap(ctx, os.Args[2:]) },
		"health":    func() error { return runHealth(ctx) },
		"version": func() error {
			fmt.Println(version)
			return nil
		},
	}

	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printStartup(configPath, cfg)

	logger := server.NewLogger(cfg.Logging, os.Stdout)
	logger.Info("starting coven-identity",
		"version", version,
		"grpc_addr", cfg.Server.GRPCAddr,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// printStartup shows the banner and where the server will listen.
func printStartup(configPath string, cfg *config.Config) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	arrow := color.New(color.FgGreen).Sprint("    ▶ ")

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	fmt.Printf("%sConfig:    %s\n", arrow, configPath)
	fmt.Printf("%sDatabase:  %s (%s)\n", arrow, cfg.Database.Path, cfg.Database.Driver)
	if cfg.Tailscale.Enabled {
		mode := ""
		if cfg.Tailscale.Ephemeral {
			mode = gray.Sprint(" (ephemeral)")
		}
		fmt.Printf("%sTailscale: %s%s\n", arrow, cyan.Sprint(cfg.Tailscale.Hostname), mode)
	} else {
		fmt.Printf("%sgRPC:      %s\n", arrow, cfg.Server.GRPCAddr)
		fmt.Printf("%sHTTP:      %s\n", arrow, cfg.Server.HTTPAddr)
	}
	if cfg.Auth.JWTSecret == "" {
		color.New(color.FgYellow).Println("    ! auth disabled: every caller acts as an operator")
	}
	fmt.Println()
}

// runHealth asks a running server's readiness endpoint whether its store
// answers.
func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+cfg.Server.HTTPAddr+"/health/ready", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Println("healthy")
	return nil
}
