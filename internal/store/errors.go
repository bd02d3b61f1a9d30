// ABOUTME: Sentinel errors shared by the store and the registries built on it
// ABOUTME: Callers wrap these with fmt.Errorf("%w: ...") and test with errors.Is

package store

import "errors"

var (
	// ErrValidation reports malformed input, such as two owner references set.
	ErrValidation = errors.New("validation failed")

	// ErrConflict reports a uniqueness or ownership violation.
	ErrConflict = errors.New("conflict")

	// ErrNotFound reports an unknown identity, workspace, group, user, or operation.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied reports that the caller lacks admin for a mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrExpiredCode reports a verification code used after its expiry.
	ErrExpiredCode = errors.New("verification code expired")

	// ErrInvalidCode reports a verification code that does not match.
	ErrInvalidCode = errors.New("invalid verification code")
)
