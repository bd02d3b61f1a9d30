// Package merge implements the Merge/Split/Remove Engine.
//
// Every attempt is recorded as a MergeOperation before it starts. The
// work then runs in one transaction that locks each source identity,
// checks every precondition, applies the identity and ownership changes,
// and marks the operation completed. If anything fails the transaction is
// discarded and the operation is marked failed with the same error that
// is returned to the caller. Operation rows are never deleted.
package merge
