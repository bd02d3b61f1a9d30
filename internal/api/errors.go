// ABOUTME: Maps domain errors to gRPC status codes
// ABOUTME: Unexpected errors become Internal without leaking their message

package api

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-identity/internal/auth"
	"github.com/2389/coven-identity/internal/store"
)

// toStatus converts a domain error into a gRPC status error. Errors that
// already carry a status pass through.
func toStatus(logger *slog.Logger, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrInvalidCode):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, store.ErrExpiredCode):
		code = codes.FailedPrecondition
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, store.ErrPermissionDenied), errors.Is(err, auth.ErrActorMismatch):
		code = codes.PermissionDenied
	default:
		logger.Error("request failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
