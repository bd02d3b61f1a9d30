// Package store provides persistent storage for coven-identity using SQLite.
//
// # Architecture
//
// The store exposes two interfaces:
//
//   - Store: runs View (read snapshot) and Update (serialized write) transactions
//   - Tx: repository operations available inside a transaction
//
// Registries never hold a *sql.DB. They receive a Store and do all of their
// reads and writes through the Tx handed to a callback, so an operation that
// touches several relations commits or rolls back as one unit.
//
// SQLiteStore implements Store with database/sql. MockStore implements it in
// memory by running Update against a copy of its maps and swapping the copy
// in only when the callback succeeds.
//
// # Data Models
//
//   - User: canonical account, suspended rather than deleted
//   - Identity: one per thread, with the anonymous/pending/verified state machine
//   - Group, GroupMember: team construct with admin/member roles
//   - Workspace, WorkspaceMember: access boundary with exactly one owner reference
//   - ACLGrant: resource-scoped read/write override with optional expiry
//   - MergeOperation: append-only record of merge, split, and remove attempts
//   - ResourceOwnership: thread/user ownership of collaborator resources
//   - AuditEntry: administrative mutations
//
// # SQLite Configuration
//
// Two drivers are registered: "sqlite" (modernc.org/sqlite, pure Go) and
// "sqlite3" (github.com/mattn/go-sqlite3, cgo). Both are opened with WAL,
// foreign keys, and a busy timeout applied through the DSN so that every
// pooled connection gets them.
//
// Update begins with BEGIN IMMEDIATE, taking the write lock before the first
// read. Two Updates never interleave, which gives every identity read inside
// a merge the row-level lock it needs. View begins a deferred transaction and
// reads from a WAL snapshot, so it never observes half of an Update.
//
// Timestamps are stored as fixed-width UTC text and compare lexically.
//
// # Error Handling
//
// Sentinel errors live in errors.go: ErrValidation, ErrConflict, ErrNotFound,
// ErrPermissionDenied, ErrExpiredCode, ErrInvalidCode. Constraint failures
// from SQLite are mapped onto ErrConflict (UNIQUE) and ErrValidation (CHECK,
// FOREIGN KEY). Wrap with fmt.Errorf("%w: ...") and test with errors.Is.
//
// # Testing
//
// Use NewMockStore() for unit tests of the registries. Use
// NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration
// tests with real SQLite.
package store
