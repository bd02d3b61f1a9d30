// Package server wires the coven-identity process together.
//
// New opens the configured SQLite store, builds the Identity Registry,
// Workspace Registry, ACL Store, Permission Resolver, and Merge Engine
// over it, and registers IdentityService on a gRPC server. When
// auth.jwt_secret is set every call except Health needs a bearer token,
// and operator-only methods refuse user tokens. Without a secret the
// server runs open and every caller acts as an operator.
//
// Run listens on the configured TCP addresses, or on a tsnet node when
// tailscale is enabled, and serves two HTTP endpoints:
//
//	/health        200 while the process is up
//	/health/ready  200 while the store answers a ping, 503 otherwise
//
// NewLogger builds the process logger from the logging section: a JSON
// handler for format "json", a colorized text handler otherwise.
package server
