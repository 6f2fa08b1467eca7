package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"session-authority/internal/session/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
// Every method holds one mutex, which gives Rotate the same compare-and-swap
// semantics as the conditional UPDATE in Postgres.
type MemoryRepository struct {
	mu        sync.Mutex
	byID      map[string]*domain.Session
	byAccess  map[string]string
	byRefresh map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]*domain.Session),
		byAccess:  make(map[string]string),
		byRefresh: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID]; ok {
		return ErrConflict
	}
	if _, ok := r.byAccess[s.AccessJTI]; ok {
		return ErrConflict
	}
	if _, ok := r.byRefresh[s.RefreshJTI]; ok {
		return ErrConflict
	}
	c := s.Clone()
	r.byID[c.ID] = c
	r.byAccess[c.AccessJTI] = c.ID
	r.byRefresh[c.RefreshJTI] = c.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByAccessJTI(ctx context.Context, jti string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byAccess[jti]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) FindByRefreshJTI(ctx context.Context, jti string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRefresh[jti]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		revoke(s, at)
	}
	return nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.UserID == userID && s.IsActive {
			revoke(s, at)
			n++
		}
	}
	return n, nil
}

func revoke(s *domain.Session, at time.Time) {
	if !s.IsActive {
		return
	}
	s.IsActive = false
	t := at
	s.RevokedAt = &t
}

func (r *MemoryRepository) Rotate(ctx context.Context, id, oldRefreshJTI, newAccessJTI, newRefreshJTI string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || !s.IsActive || s.RefreshJTI != oldRefreshJTI {
		return ErrRotationConflict
	}
	if _, taken := r.byAccess[newAccessJTI]; taken {
		return ErrConflict
	}
	if _, taken := r.byRefresh[newRefreshJTI]; taken {
		return ErrConflict
	}
	delete(r.byAccess, s.AccessJTI)
	delete(r.byRefresh, s.RefreshJTI)
	s.AccessJTI = newAccessJTI
	s.RefreshJTI = newRefreshJTI
	s.LastActiveAt = at
	r.byAccess[newAccessJTI] = id
	r.byRefresh[newRefreshJTI] = id
	return nil
}

func (r *MemoryRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && s.IsActive && at.After(s.LastActiveAt) {
		s.LastActiveAt = at
	}
	return nil
}

func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.UserID == userID && s.IsActive {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActiveAt.Equal(out[j].LastActiveAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (r *MemoryRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.CreatedAt.Before(cutoff) {
			delete(r.byAccess, s.AccessJTI)
			delete(r.byRefresh, s.RefreshJTI)
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}
