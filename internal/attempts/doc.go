// Package attempts limits how often a verification code may be tried
// for the same identity. Failed confirmations do not consume the code,
// so the RPC layer consults a Limiter before each attempt.
package attempts
