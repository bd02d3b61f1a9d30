// Package access implements the Permission Resolver.
//
// Resolution is split in two: LoadFacts reads the workspace, the user's
// direct and group memberships, and the active grants on a resource in a
// single read transaction; Decide is a pure function over those facts.
// Readers therefore see either the state before or after a merge, never
// a half-applied one.
package access
