package repository

import (
	"context"
	"errors"
	"time"

	"session-authority/internal/session/domain"
)

var (
	// ErrStoreUnavailable wraps any failure to reach or query the backing store.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrConflict is returned by Create when the id or a jti is already taken.
	ErrConflict = errors.New("session already exists")
	// ErrRotationConflict is returned by Rotate when the session is no longer
	// active or its refresh jti has already been replaced.
	ErrRotationConflict = errors.New("session rotation conflict")
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when
// no row matches; an error always means the store itself failed.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	FindByAccessJTI(ctx context.Context, jti string) (*domain.Session, error)
	FindByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error)
	// Revoke deactivates one session. Revoking an inactive or missing session is a no-op.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllForUser deactivates every active session of userID and returns how many changed.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// Rotate swaps the jti pair only if the session is active and still holds oldRefreshJTI.
	Rotate(ctx context.Context, id, oldRefreshJTI, newAccessJTI, newRefreshJTI string, at time.Time) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	// ListActiveByUser returns active sessions, most recently active first.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// SweepExpired deletes sessions created before cutoff, active or not.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
