package domain

import (
	"slices"
	"time"

	"session-authority/internal/claims"
)

// Session is the server-side record that makes a token pair revocable.
// IsActive=false is terminal; a revoked session is never reactivated.
type Session struct {
	ID           string
	UserID       string
	AccessJTI    string
	RefreshJTI   string
	Email        string
	Role         claims.Role
	Scopes       []claims.Scope // grant snapshot used when re-minting access tokens on refresh
	CreatedAt    time.Time
	LastActiveAt time.Time
	RevokedAt    *time.Time // nil while active
	IsActive     bool
	DeviceInfo   string
	IPAddress    string
	Location     string
}

// DeviceInfo describes the client that opened a session. All fields are optional.
type DeviceInfo struct {
	Description string
	IPAddress   string
	Location    string
}

// Clone returns a deep copy so stores and callers never share slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	// An empty non-nil Scopes is an explicit "grant nothing" and must stay non-nil.
	c.Scopes = slices.Clone(s.Scopes)
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
