// Package auth authenticates RPC callers of coven-identity.
//
// # Tokens
//
// Callers present an HS256 JWT in the "authorization: Bearer <token>"
// metadata header. Tokens carry the principal in "sub" and its kind in
// "kind":
//
//   - operator: channel adapters and administrators. An operator may act
//     on behalf of any user by naming an actor_user_id; without one it
//     acts as the system actor.
//   - user: a persistent user, issued after a successful verification.
//     A user acts only as itself and is refused once suspended.
//
// # gRPC Interceptors
//
//	UnaryInterceptor(verifier, users, logger, publicMethods...)
//	RequireOperator(operatorMethods...)
//
// The first authenticates and stores an AuthContext in the request
// context; the second refuses user tokens on operator-only methods.
package auth
