package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"session-authority/internal/security"
	"session-authority/internal/session/service"
)

// toStatus maps authority errors to gRPC status. Token failures share one
// code and message so callers cannot tell them apart.
func (s *Server) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, security.ErrSignatureInvalid),
		errors.Is(err, security.ErrTokenMalformed),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrInvalidToken):
		s.logger.Debug("token rejected", "method", method, "error", err)
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, "invalid argument")
	case errors.Is(err, service.ErrSessionNotFound):
		return status.Error(codes.NotFound, "session not found")
	case errors.Is(err, service.ErrStoreUnavailable):
		s.logger.Error("session store unavailable", "method", method, "error", err)
		return status.Error(codes.Unavailable, "session store unavailable")
	default:
		s.logger.Error("session rpc failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
