// ABOUTME: Operator CLI for coven-identity users, identities, workspaces, and merges
// ABOUTME: Talks to IdentityService over gRPC with a bearer token

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/2389/coven-identity/internal/api"
)

const banner = `
                                    _     _                   _           _
  ___ _____   _____ _ __           (_) __| |       __ _  __| |_ __ ___ (_)_ __
 / __/ _ \ \ / / _ \ '_ \  _____   | |/ _' | ____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| (_) \ V /  __/ | | ||_____|  | | (_| ||____| (_| | (_| | | | | | | | | | |
 \___\___/ \_/ \___|_| |_|         |_|\__,_|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

// requestTimeout bounds every RPC made by the CLI.
const requestTimeout = 10 * time.Second

// command runs one CLI command against a connected client.
type command func(ctx context.Context, c *api.Client, f *flags) error

var commands = map[string]command{
	"status":     cmdStatus,
	"users":      cmdUsers,
	"identities": cmdIdentities,
	"verify":     cmdVerify,
	"workspaces": cmdWorkspaces,
	"groups":     cmdGroups,
	"grants":     cmdGrants,
	"resolve":    cmdResolve,
	"merge":      cmdMerge,
	"split":      cmdSplit,
	"remove":     cmdRemove,
	"ops":        cmdOps,
	"ownership":  cmdOwnership,
	"audit":      cmdAudit,
	"token":      cmdToken,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := execute(run, os.Args[2:]); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(run command, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	addr := getEnv("COVEN_IDENTITY_GRPC", "localhost:50061")
	conn, err := createClient(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return run(ctx, api.NewClient(conn, getToken()), f)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: coven-identity-admin <command> [subcommand] [--flag value ...]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                                          Server health and reachability")
	fmt.Println("  users provision|get|suspend <user-id>           Manage persistent users")
	fmt.Println("  identities create --channel C --thread T        Create an anonymous identity")
	fmt.Println("  identities get <identity-id> | --thread T       Show an identity")
	fmt.Println("  identities list --user U                        Identities bound to a user")
	fmt.Println("  verify request --identity I --method M --contact X")
	fmt.Println("  verify confirm --identity I --code C [--user U]")
	fmt.Println("  workspaces create --type T --owner-kind K --owner O [--name N]")
	fmt.Println("  workspaces get|members <workspace-id>")
	fmt.Println("  workspaces individual --user U                  Ensure a user's individual workspace")
	fmt.Println("  workspaces grant --workspace W --user U --role R")
	fmt.Println("  workspaces revoke --workspace W --user U")
	fmt.Println("  groups create --name N --creator U")
	fmt.Println("  groups get|members <group-id>")
	fmt.Println("  groups add --group G --user U [--role R]")
	fmt.Println("  groups remove --group G --user U")
	fmt.Println("  grants create --workspace W --type T --resource R (--user U|--group G) --permission P [--expires 24h]")
	fmt.Println("  grants list --workspace W --type T --resource R")
	fmt.Println("  grants revoke --workspace W --type T --resource R (--user U|--group G)")
	fmt.Println("  resolve --user U --workspace W --type T --resource R")
	fmt.Println("  merge --threads T1,T2 --user U [--channel C]")
	fmt.Println("  split --user U --threads T1,T2")
	fmt.Println("  remove (--user U|--threads T1,T2) --policy delete|anonymize")
	fmt.Println("  ops list [--user U] [--type T] [--status S] [--limit N]")
	fmt.Println("  ops get <operation-id>")
	fmt.Println("  ops rollback <operation-id> --reason R")
	fmt.Println("  ownership register --kind K --resource R --thread T")
	fmt.Println("  ownership list [--kind K] [--thread T] [--user U]")
	fmt.Println("  audit [--action A] [--actor U] [--target-type T] [--target T] [--limit N]")
	fmt.Println("  token create --subject S --kind operator|user [--ttl DAYS]")
	fmt.Println()
	yellow.Println("Global flags:")
	fmt.Println("  --as U                   Act on behalf of user U (operator tokens only)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  COVEN_IDENTITY_GRPC      Server gRPC address (default: localhost:50061)")
	fmt.Println("  COVEN_IDENTITY_TOKEN     JWT token (default: ~/.config/coven/identity-token)")
	fmt.Println()
}

// createClient creates a gRPC client connection
func createClient(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return conn, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getToken returns the JWT token from COVEN_IDENTITY_TOKEN or the token
// file written by coven-identity bootstrap.
func getToken() string {
	if token := os.Getenv("COVEN_IDENTITY_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "coven", "identity-token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// flags holds "--name value" / "--name=value" pairs and positional args.
type flags struct {
	values     map[string]string
	positional []string
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{values: make(map[string]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			f.positional = append(f.positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			f.values[k] = v
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s requires a value", name)
		}
		f.values[name] = args[i+1]
		i++
	}
	return f, nil
}

func (f *flags) get(name string) string {
	return f.values[name]
}

// require returns an error naming the first missing flag.
func (f *flags) require(names ...string) error {
	for _, name := range names {
		if f.values[name] == "" {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

// list splits a comma-separated flag value.
func (f *flags) list(name string) []string {
	var out []string
	for _, part := range strings.Split(f.values[name], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// int parses an optional integer flag.
func (f *flags) int(name string) (int, error) {
	v := f.values[name]
	if v == "" {
		return 0, nil
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return n, nil
}

// subcommand splits off the first positional argument.
func (f *flags) subcommand(fallback string) string {
	if len(f.positional) == 0 {
		return fallback
	}
	sub := f.positional[0]
	f.positional = f.positional[1:]
	return sub
}

// arg returns the first positional argument or an error describing it.
func (f *flags) arg(what string) (string, error) {
	if len(f.positional) == 0 || f.positional[0] == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return f.positional[0], nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	return t.Local().Format("Jan 02 15:04")
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func header(title string) {
	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  " + title)
	cyan.Println("  " + strings.Repeat("-", len(title)))
}

var errUnknownSubcommand = errors.New("unknown subcommand")

func unknown(cmd, sub, options string) error {
	return fmt.Errorf("%w %q for %s (use %s)", errUnknownSubcommand, sub, cmd, options)
}
