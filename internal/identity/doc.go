// Package identity implements the Identity Registry.
//
// Every communication thread gets one Identity, created anonymous. A
// caller may request verification, which stores a bcrypt hash of a fresh
// numeric code and moves the identity to pending. Confirming the code
// binds the identity to a persistent user (an existing one supplied by
// the caller, the one it is already merged into, or a newly provisioned
// one) and moves it to verified.
//
// Transitions only move forward: anonymous -> pending -> verified.
// Verified is terminal.
package identity
