// ABOUTME: The authenticated caller of a request and the user it acts as
// ABOUTME: Interceptors attach it; handlers read it with FromContext

package auth

import (
	"context"
	"errors"

	"github.com/2389/coven-identity/internal/store"
)

// ErrActorMismatch is returned when a user principal asks to act as
// somebody else.
var ErrActorMismatch = errors.New("user principals may only act as themselves")

// AuthContext is the caller of a request. PrincipalID is an operator name
// for operator tokens and a persistent user ID for user tokens.
type AuthContext struct {
	PrincipalID string
	Kind        PrincipalKind
}

// IsOperator reports whether the caller holds an operator token.
func (a *AuthContext) IsOperator() bool {
	return a.Kind == KindOperator
}

// ActorFor returns the user ID a request runs as. Operators may name any
// actor and default to store.SystemActor. Users always act as themselves
// and may only name their own ID.
func (a *AuthContext) ActorFor(requested string) (string, error) {
	if a.IsOperator() {
		if requested == "" {
			return store.SystemActor, nil
		}
		return requested, nil
	}
	if requested != "" && requested != a.PrincipalID {
		return "", ErrActorMismatch
	}
	return a.PrincipalID, nil
}

type ctxKey struct{}

// WithAuth attaches ac to ctx.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the caller attached by the interceptors, or nil.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(ctxKey{}).(*AuthContext)
	return ac
}

// MustFromContext is FromContext for handlers that only run behind the
// interceptors. It panics when no caller is attached.
func MustFromContext(ctx context.Context) *AuthContext {
	ac := FromContext(ctx)
	if ac == nil {
		panic("auth: no caller in context")
	}
	return ac
}
