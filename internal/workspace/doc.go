// Package workspace implements the Workspace Registry and team groups.
//
// A workspace has exactly one owner reference (a user, a group, or the
// public system owner) that must agree with its type. The owner of an
// individual workspace holds an admin membership that cannot be revoked
// or demoted. Group workspaces derive roles from group membership.
package workspace
