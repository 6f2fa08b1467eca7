package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"session-authority/internal/authz"
	"session-authority/internal/claims"
)

// RequireSelfOrAdmin ensures the caller owns the resource (ownerID equals the
// caller's subject) or holds an admin scope.
// Returns the caller on success; returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
func RequireSelfOrAdmin(ctx context.Context, ownerID string) (*claims.Claims, error) {
	cl, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if cl.Subject == ownerID || authz.AdminRequirement.Allows(cl.Scopes) {
		return cl, nil
	}
	return nil, status.Error(codes.PermissionDenied, "session belongs to another user")
}
