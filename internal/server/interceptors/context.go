package interceptors

import (
	"context"

	"session-authority/internal/claims"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying verified access claims.
// Handlers read them via Principal, GetUserID and GetSessionID.
func WithPrincipal(ctx context.Context, cl *claims.Claims) context.Context {
	return context.WithValue(ctx, principalKey, cl)
}

// Principal returns the verified claims and true if set; otherwise nil, false.
func Principal(ctx context.Context) (*claims.Claims, bool) {
	cl, ok := ctx.Value(principalKey).(*claims.Claims)
	return cl, ok && cl != nil
}

// GetUserID returns the principal's subject and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	cl, ok := Principal(ctx)
	if !ok || cl.Subject == "" {
		return "", false
	}
	return cl.Subject, true
}

// GetSessionID returns the session id stamped into the principal's token.
func GetSessionID(ctx context.Context) (string, bool) {
	cl, ok := Principal(ctx)
	if !ok {
		return "", false
	}
	sid := cl.ExtraString("sid")
	return sid, sid != ""
}
