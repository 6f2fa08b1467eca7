package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"session-authority/internal/claims"
	"session-authority/internal/session/domain"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var seq atomic.Int64

func newSession(userID string, createdAt time.Time) *domain.Session {
	n := seq.Add(1)
	return &domain.Session{
		ID:           fmt.Sprintf("sess-%d-%d", time.Now().UnixNano(), n),
		UserID:       userID,
		AccessJTI:    fmt.Sprintf("a-%d-%d", time.Now().UnixNano(), n),
		RefreshJTI:   fmt.Sprintf("r-%d-%d", time.Now().UnixNano(), n),
		Email:        userID + "@example.com",
		Role:         claims.RoleUser,
		Scopes:       claims.DefaultScopesForRole(claims.RoleUser),
		CreatedAt:    createdAt,
		LastActiveAt: createdAt,
		IsActive:     true,
		DeviceInfo:   "firefox",
	}
}

// runRepositoryContract exercises behavior every Repository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("create and lookups", func(t *testing.T) {
		r := newRepo(t)
		s := newSession("u-lookup", base)
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		for name, get := range map[string]func() (*domain.Session, error){
			"id":      func() (*domain.Session, error) { return r.GetByID(ctx, s.ID) },
			"access":  func() (*domain.Session, error) { return r.FindByAccessJTI(ctx, s.AccessJTI) },
			"refresh": func() (*domain.Session, error) { return r.FindByRefreshJTI(ctx, s.RefreshJTI) },
		} {
			got, err := get()
			if err != nil {
				t.Fatalf("%s lookup: %v", name, err)
			}
			if got == nil || got.ID != s.ID || !got.IsActive || got.DeviceInfo != "firefox" {
				t.Errorf("%s lookup = %+v", name, got)
			}
			if len(got.Scopes) != len(s.Scopes) || got.Role != claims.RoleUser {
				t.Errorf("%s lookup grant = %v %v", name, got.Role, got.Scopes)
			}
		}
		missing, err := r.FindByAccessJTI(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("missing lookup = %v, %v; want nil, nil", missing, err)
		}
		if err := r.Create(ctx, s); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate Create: want ErrConflict, got %v", err)
		}
	})

	t.Run("revoke is idempotent and terminal", func(t *testing.T) {
		r := newRepo(t)
		s := newSession("u-revoke", base)
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := r.Revoke(ctx, s.ID, base.Add(time.Minute)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if err := r.Revoke(ctx, s.ID, base.Add(time.Hour)); err != nil {
			t.Fatalf("second Revoke: %v", err)
		}
		got, _ := r.GetByID(ctx, s.ID)
		if got.IsActive || got.RevokedAt == nil || !got.RevokedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("after revoke = %+v", got)
		}
		if err := r.Rotate(ctx, s.ID, s.RefreshJTI, "a-new", "r-new", base); !errors.Is(err, ErrRotationConflict) {
			t.Errorf("Rotate on revoked: want ErrRotationConflict, got %v", err)
		}
		if err := r.Revoke(ctx, "missing", base); err != nil {
			t.Errorf("Revoke missing: %v", err)
		}
	})

	t.Run("revoke all for user", func(t *testing.T) {
		r := newRepo(t)
		user := fmt.Sprintf("u-all-%d", seq.Add(1))
		for i := 0; i < 3; i++ {
			if err := r.Create(ctx, newSession(user, base)); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		other := newSession(user+"-other", base)
		if err := r.Create(ctx, other); err != nil {
			t.Fatalf("Create other: %v", err)
		}
		n, err := r.RevokeAllForUser(ctx, user, base)
		if err != nil || n != 3 {
			t.Fatalf("RevokeAllForUser = %d, %v; want 3", n, err)
		}
		n, err = r.RevokeAllForUser(ctx, user, base)
		if err != nil || n != 0 {
			t.Errorf("second RevokeAllForUser = %d, %v; want 0", n, err)
		}
		active, _ := r.ListActiveByUser(ctx, user)
		if len(active) != 0 {
			t.Errorf("active after revoke all = %d", len(active))
		}
		still, _ := r.GetByID(ctx, other.ID)
		if !still.IsActive {
			t.Error("other user's session was revoked")
		}
	})

	t.Run("rotate swaps pair once", func(t *testing.T) {
		r := newRepo(t)
		s := newSession("u-rotate", base)
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		newAccess, newRefresh := s.AccessJTI+"-2", s.RefreshJTI+"-2"
		if err := r.Rotate(ctx, s.ID, s.RefreshJTI, newAccess, newRefresh, base.Add(time.Minute)); err != nil {
			t.Fatalf("Rotate: %v", err)
		}
		if err := r.Rotate(ctx, s.ID, s.RefreshJTI, newAccess+"x", newRefresh+"x", base); !errors.Is(err, ErrRotationConflict) {
			t.Errorf("stale Rotate: want ErrRotationConflict, got %v", err)
		}
		if old, _ := r.FindByRefreshJTI(ctx, s.RefreshJTI); old != nil {
			t.Error("old refresh jti still resolves")
		}
		got, _ := r.FindByAccessJTI(ctx, newAccess)
		if got == nil || got.RefreshJTI != newRefresh || !got.LastActiveAt.Equal(base.Add(time.Minute)) {
			t.Errorf("after rotate = %+v", got)
		}
	})

	t.Run("concurrent rotate has one winner", func(t *testing.T) {
		r := newRepo(t)
		s := newSession("u-race", base)
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := r.Rotate(ctx, s.ID, s.RefreshJTI, fmt.Sprintf("%s-%d", s.AccessJTI, i), fmt.Sprintf("%s-%d", s.RefreshJTI, i), base)
				if err == nil {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		if wins.Load() != 1 {
			t.Errorf("winners = %d, want 1", wins.Load())
		}
	})

	t.Run("list orders by last activity", func(t *testing.T) {
		r := newRepo(t)
		user := fmt.Sprintf("u-list-%d", seq.Add(1))
		older := newSession(user, base)
		newer := newSession(user, base)
		for _, s := range []*domain.Session{older, newer} {
			if err := r.Create(ctx, s); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		if err := r.TouchLastActive(ctx, newer.ID, base.Add(time.Hour)); err != nil {
			t.Fatalf("TouchLastActive: %v", err)
		}
		list, err := r.ListActiveByUser(ctx, user)
		if err != nil {
			t.Fatalf("ListActiveByUser: %v", err)
		}
		if len(list) != 2 || list[0].ID != newer.ID {
			t.Errorf("list order = %v", ids(list))
		}
	})

	t.Run("scopes round trip", func(t *testing.T) {
		r := newRepo(t)
		cases := []struct {
			name   string
			scopes []claims.Scope
			want   []claims.Scope
			nonNil bool
		}{
			{"empty override", []claims.Scope{}, nil, true},
			{"populated", []claims.Scope{claims.ScopeRead, claims.ParseScope("billing:export")}, []claims.Scope{claims.ScopeRead, "billing:export"}, true},
			{"unset", nil, nil, false},
		}
		for _, tc := range cases {
			s := newSession("u-scopes", base)
			s.Scopes = tc.scopes
			if err := r.Create(ctx, s); err != nil {
				t.Fatalf("%s: Create: %v", tc.name, err)
			}
			for lookup, get := range map[string]func() (*domain.Session, error){
				"id":      func() (*domain.Session, error) { return r.GetByID(ctx, s.ID) },
				"access":  func() (*domain.Session, error) { return r.FindByAccessJTI(ctx, s.AccessJTI) },
				"refresh": func() (*domain.Session, error) { return r.FindByRefreshJTI(ctx, s.RefreshJTI) },
			} {
				got, err := get()
				if err != nil || got == nil {
					t.Fatalf("%s/%s lookup = %v, %v", tc.name, lookup, got, err)
				}
				if tc.nonNil && got.Scopes == nil {
					t.Errorf("%s/%s: scopes came back nil", tc.name, lookup)
				}
				if strings.Join(claims.Strings(got.Scopes), ",") != strings.Join(claims.Strings(tc.want), ",") {
					t.Errorf("%s/%s: scopes = %v, want %v", tc.name, lookup, got.Scopes, tc.want)
				}
			}
		}
	})

	t.Run("touch never moves liveness backwards", func(t *testing.T) {
		r := newRepo(t)
		s := newSession("u-touch", base)
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := r.TouchLastActive(ctx, s.ID, base.Add(time.Hour)); err != nil {
			t.Fatalf("TouchLastActive: %v", err)
		}
		if err := r.TouchLastActive(ctx, s.ID, base.Add(time.Minute)); err != nil {
			t.Fatalf("late TouchLastActive: %v", err)
		}
		got, _ := r.GetByID(ctx, s.ID)
		if !got.LastActiveAt.Equal(base.Add(time.Hour)) {
			t.Errorf("LastActiveAt = %v, want %v", got.LastActiveAt, base.Add(time.Hour))
		}
	})

	t.Run("sweep deletes by creation time", func(t *testing.T) {
		r := newRepo(t)
		old := newSession("u-sweep", base.Add(-31*24*time.Hour))
		fresh := newSession("u-sweep", base.Add(-time.Hour))
		for _, s := range []*domain.Session{old, fresh} {
			if err := r.Create(ctx, s); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		n, err := r.SweepExpired(ctx, base.Add(-30*24*time.Hour))
		if err != nil {
			t.Fatalf("SweepExpired: %v", err)
		}
		if n < 1 {
			t.Errorf("swept = %d, want >= 1", n)
		}
		if got, _ := r.GetByID(ctx, old.ID); got != nil {
			t.Error("old session survived sweep")
		}
		if got, _ := r.GetByID(ctx, fresh.ID); got == nil {
			t.Error("fresh session was swept")
		}
	})
}

func ids(list []*domain.Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(*testing.T) Repository { return NewMemoryRepository() })
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	s := newSession("u-copy", base)
	if err := r.Create(context.Background(), s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.IsActive = false
	got, _ := r.GetByID(context.Background(), s.ID)
	got.Scopes[0] = "mutated"
	again, _ := r.GetByID(context.Background(), s.ID)
	if !again.IsActive || again.Scopes[0] == "mutated" {
		t.Errorf("stored session was mutated through a caller copy: %+v", again)
	}
}
