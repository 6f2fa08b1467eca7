package service

import (
	"context"
	"testing"
	"time"

	"session-authority/internal/claims"
)

func TestSweeper_DisabledReturnsImmediately(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		NewSweeper(f.authority, 0, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not return")
	}
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1", claims.RoleUser)
	f.clock.Advance(31 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(f.authority, 10*time.Millisecond, nil).Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		active, _ := f.authority.GetUserActiveSessions(context.Background(), "u1")
		if len(active) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
