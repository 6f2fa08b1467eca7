// Package telemetry carries session lifecycle events out of the authority.
// Delivery is best-effort: sinks may drop events and callers never fail on them.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventSessionCreated       EventType = "session_created"
	EventSessionRefreshed     EventType = "session_refreshed"
	EventSessionRevoked       EventType = "session_revoked"
	EventSessionsRevokedAll   EventType = "sessions_revoked_all"
	EventRefreshReuseDetected EventType = "refresh_reuse_detected"
	EventSessionsSwept        EventType = "sessions_swept"
)

// SessionEvent is the payload shared by every sink.
type SessionEvent struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	At        time.Time         `json:"at"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// EventEmitter emits session events (e.g. to OTel Logs or Kafka).
type EventEmitter interface {
	Emit(ctx context.Context, event *SessionEvent) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *SessionEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
