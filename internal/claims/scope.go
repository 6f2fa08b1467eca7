package claims

import (
	"fmt"
	"strings"
)

// Scope is a permission string carried in a token. The fixed vocabulary is
// declared below; any other string is kept as-is so custom scopes survive a
// token round trip.
type Scope string

const (
	ScopeRead          Scope = "read"
	ScopeWrite         Scope = "write"
	ScopeDelete        Scope = "delete"
	ScopeUserRead      Scope = "user:read"
	ScopeUserWrite     Scope = "user:write"
	ScopeUserDelete    Scope = "user:delete"
	ScopeAdminRead     Scope = "admin:read"
	ScopeAdminWrite    Scope = "admin:write"
	ScopeAdminDelete   Scope = "admin:delete"
	ScopeRefresh       Scope = "refresh"
	ScopeEmailVerify   Scope = "email:verify"
	ScopePasswordReset Scope = "password:reset"
)

var knownScopes = map[Scope]struct{}{
	ScopeRead: {}, ScopeWrite: {}, ScopeDelete: {},
	ScopeUserRead: {}, ScopeUserWrite: {}, ScopeUserDelete: {},
	ScopeAdminRead: {}, ScopeAdminWrite: {}, ScopeAdminDelete: {},
	ScopeRefresh: {}, ScopeEmailVerify: {}, ScopePasswordReset: {},
}

// ParseScope normalizes s. It never fails: unknown strings become custom scopes.
func ParseScope(s string) Scope {
	return Scope(strings.TrimSpace(s))
}

// Known reports whether s is part of the fixed vocabulary.
func (s Scope) Known() bool {
	_, ok := knownScopes[s]
	return ok
}

func (s Scope) String() string { return string(s) }

// ParseScopes converts raw strings, dropping empty entries.
func ParseScopes(raw []string) []Scope {
	out := make([]Scope, 0, len(raw))
	for _, r := range raw {
		if sc := ParseScope(r); sc != "" {
			out = append(out, sc)
		}
	}
	return out
}

// Strings returns the wire form of scopes.
func Strings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

// Role is the coarse user role used to pick default scopes.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// ParseRole accepts "admin" or "user" in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	}
	return "", fmt.Errorf("claims: unknown role %q", s)
}

// DefaultScopesForRole returns a fresh slice with the scopes granted to role.
// Unknown roles get no scopes.
func DefaultScopesForRole(role Role) []Scope {
	switch role {
	case RoleAdmin:
		return []Scope{
			ScopeRead, ScopeWrite, ScopeDelete,
			ScopeUserRead, ScopeUserWrite, ScopeUserDelete,
			ScopeAdminRead, ScopeAdminWrite, ScopeAdminDelete,
		}
	case RoleUser:
		return []Scope{ScopeRead, ScopeWrite, ScopeUserRead, ScopeUserWrite}
	}
	return nil
}
