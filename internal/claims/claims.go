// Package claims defines the token claim set shared by the codec, the session
// authority and the authorization gate.
package claims

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "homeryland-api"
	DefaultAudience = "homeryland-client"
)

// Claims is the payload of every token. Times are unix seconds.
type Claims struct {
	Subject   string         `json:"sub"`
	Purpose   Purpose        `json:"token_type"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
	Issuer    string         `json:"iss"`
	Audience  string         `json:"aud"`
	ID        string         `json:"jti"`
	Email     string         `json:"email,omitempty"`
	Role      Role           `json:"role,omitempty"`
	Scopes    []Scope        `json:"scopes"`
	Extra     map[string]any `json:"extra,omitempty"`
}

func newClaims(p Purpose, subject string, iat, exp time.Time, scopes []Scope) *Claims {
	if scopes == nil {
		scopes = []Scope{}
	}
	return &Claims{
		Subject:   subject,
		Purpose:   p,
		IssuedAt:  iat.Unix(),
		ExpiresAt: exp.Unix(),
		Issuer:    DefaultIssuer,
		Audience:  DefaultAudience,
		ID:        uuid.NewString(),
		Scopes:    scopes,
	}
}

// NewAccess builds access claims. A nil scopes slice means the role defaults.
func NewAccess(userID, email string, role Role, iat, exp time.Time, scopes []Scope) *Claims {
	if scopes == nil {
		scopes = DefaultScopesForRole(role)
	}
	c := newClaims(PurposeAccess, userID, iat, exp, slices.Clone(scopes))
	c.Email = email
	c.Role = role
	return c
}

// NewRefresh builds refresh claims scoped to the refresh operation only.
func NewRefresh(userID string, iat, exp time.Time) *Claims {
	return newClaims(PurposeRefresh, userID, iat, exp, []Scope{ScopeRefresh})
}

func NewEmailVerification(userID, email string, iat, exp time.Time) *Claims {
	c := newClaims(PurposeEmailVerification, userID, iat, exp, []Scope{ScopeEmailVerify})
	c.Email = email
	return c
}

func NewPasswordReset(userID, email string, iat, exp time.Time) *Claims {
	c := newClaims(PurposePasswordReset, userID, iat, exp, []Scope{ScopePasswordReset})
	c.Email = email
	return c
}

// IsExpired reports whether the token is no longer valid at now. A token is
// valid only while now is strictly before exp.
func (c *Claims) IsExpired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// ExpiresAtTime returns exp as a UTC time.
func (c *Claims) ExpiresAtTime() time.Time {
	return time.Unix(c.ExpiresAt, 0).UTC()
}

func (c *Claims) HasScope(s Scope) bool {
	return slices.Contains(c.Scopes, s)
}

// HasAnyScope is true when at least one of want is granted. An empty want is false.
func (c *Claims) HasAnyScope(want ...Scope) bool {
	for _, s := range want {
		if c.HasScope(s) {
			return true
		}
	}
	return false
}

// HasAllScopes is true when every scope in want is granted.
func (c *Claims) HasAllScopes(want ...Scope) bool {
	for _, s := range want {
		if !c.HasScope(s) {
			return false
		}
	}
	return true
}

// SetExtra stores an auxiliary value, allocating the map on first use.
func (c *Claims) SetExtra(key string, v any) {
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = v
}

// ExtraString returns a string extra or "" when absent or not a string.
func (c *Claims) ExtraString(key string) string {
	if c.Extra == nil {
		return ""
	}
	s, _ := c.Extra[key].(string)
	return s
}
