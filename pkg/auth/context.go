package auth

import "context"

type contextKey struct{}

// NewContext attaches principal to ctx so downstream handlers (REST,
// GraphQL) can recover who is calling without threading it through
// every function signature.
func NewContext(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, principal)
}

// FromContext recovers the Principal NewContext attached to ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
