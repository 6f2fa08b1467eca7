package interceptors

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"session-authority/internal/authz"
	"session-authority/internal/claims"
	"session-authority/internal/session/repository"
)

// InternalKeyHeader carries the shared key of the trusted HTTP tier.
const InternalKeyHeader = "x-internal-key"

// Access says how a method authenticates its caller.
type Access int

const (
	// Deny is the zero value: methods missing from the policy are rejected.
	Deny Access = iota
	// Public methods need no credentials.
	Public
	// Internal methods require the x-internal-key metadata.
	Internal
	// Bearer methods require a session-backed access token.
	Bearer
	// OptionalBearer methods attach a principal when a valid token is present.
	OptionalBearer
)

// MethodPolicy is the access rule for one full method name.
type MethodPolicy struct {
	Access  Access
	Require authz.Requirement
}

// Policy maps full method names to their rule.
type Policy map[string]MethodPolicy

// AccessVerifier verifies an access token against its session.
// *service.Authority implements it.
type AccessVerifier interface {
	VerifyAccessTokenWithSession(ctx context.Context, token string) (*claims.Claims, error)
}

// AuthUnary returns a unary server interceptor that enforces policy. Verified
// claims are stored in the context for handlers. Every token failure is
// reported as the same Unauthenticated status; store outages are Unavailable.
func AuthUnary(verifier AccessVerifier, policy Policy, internalKey string, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		rule, ok := policy[info.FullMethod]
		if !ok {
			return nil, status.Error(codes.PermissionDenied, "method not allowed")
		}
		switch rule.Access {
		case Public:
			return handler(ctx, req)
		case Internal:
			if !internalKeyMatches(ctx, internalKey) {
				return nil, status.Error(codes.Unauthenticated, "missing or invalid internal key")
			}
			return handler(ctx, req)
		case Bearer, OptionalBearer:
			cl, err := authenticate(ctx, verifier)
			if err != nil {
				if rule.Access == OptionalBearer && !errors.Is(err, repository.ErrStoreUnavailable) {
					cl = nil
				} else {
					return nil, toStatus(ctx, logger, info.FullMethod, err)
				}
			}
			if rule.Access == Bearer {
				err = authz.Decide(cl, rule.Require)
			} else {
				err = authz.DecideOptional(cl, rule.Require)
			}
			if err != nil {
				return nil, toStatus(ctx, logger, info.FullMethod, err)
			}
			if cl != nil {
				ctx = WithPrincipal(ctx, cl)
			}
			return handler(ctx, req)
		default:
			return nil, status.Error(codes.PermissionDenied, "method not allowed")
		}
	}
}

func authenticate(ctx context.Context, verifier AccessVerifier) (*claims.Claims, error) {
	token, err := authz.ExtractBearer(firstMetadata(ctx, "authorization"))
	if err != nil {
		return nil, err
	}
	return verifier.VerifyAccessTokenWithSession(ctx, token)
}

func toStatus(ctx context.Context, logger *slog.Logger, method string, err error) error {
	switch {
	case errors.Is(err, authz.ErrForbidden):
		return status.Error(codes.PermissionDenied, "insufficient scope")
	case errors.Is(err, repository.ErrStoreUnavailable):
		logger.Error("session store unavailable", "method", method, "error", err)
		return status.Error(codes.Unavailable, "session store unavailable")
	default:
		logger.Debug("authentication failed", "method", method, "client_ip", ClientIP(ctx), "error", err)
		return status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
}

func internalKeyMatches(ctx context.Context, want string) bool {
	if want == "" {
		return false
	}
	got := firstMetadata(ctx, InternalKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
