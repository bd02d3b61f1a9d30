// Package api exposes the identity subsystem as the gRPC IdentityService.
//
// Messages are plain Go structs carried by a JSON codec (see Codec), and
// the service descriptor is written by hand in desc.go. Every domain error
// is mapped to a gRPC status:
//
//	validation, invalid code   -> InvalidArgument
//	conflict                   -> AlreadyExists
//	expired code               -> FailedPrecondition
//	not found                  -> NotFound
//	permission denied          -> PermissionDenied
//	too many confirm attempts  -> ResourceExhausted
//	anything else              -> Internal
//
// Mutations take an optional actor_user_id. Operator tokens may name any
// actor and default to the system actor; user tokens always act as the
// token's user. Methods in OperatorMethods refuse user tokens.
package api
