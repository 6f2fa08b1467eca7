package service

import (
	"errors"
	"fmt"

	"session-authority/internal/session/repository"
)

// Sentinel errors for the authority; the handler maps them to gRPC codes.
// Codec failures (security.ErrSignatureInvalid, security.ErrTokenMalformed) are
// returned unchanged.
var (
	// ErrInvalidToken covers a well-signed token whose session is missing,
	// revoked, or owned by another user.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshReuse is returned when a superseded refresh token is presented.
	// The session it belonged to has been revoked.
	ErrRefreshReuse     = fmt.Errorf("%w: refresh token reuse detected", ErrInvalidToken)
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)
