package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"session-authority/internal/authz"
	"session-authority/internal/claims"
	"session-authority/internal/server/interceptors"
)

// RequirePrincipal returns the verified caller attached by the auth interceptor.
// Returns Unauthenticated when none is present.
func RequirePrincipal(ctx context.Context) (*claims.Claims, error) {
	cl, ok := interceptors.Principal(ctx)
	if !ok || cl.Subject == "" {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return cl, nil
}

// RequireScopes ensures the caller is authenticated and satisfies req.
func RequireScopes(ctx context.Context, req authz.Requirement) (*claims.Claims, error) {
	cl, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if authz.Decide(cl, req) != nil {
		return nil, status.Error(codes.PermissionDenied, "insufficient scope")
	}
	return cl, nil
}
