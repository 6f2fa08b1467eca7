// Package authz decides whether a principal's scopes satisfy an operation's
// requirement. It performs no I/O; token verification happens before it.
package authz

import (
	"errors"
	"strings"

	"session-authority/internal/claims"
)

var (
	// ErrUnauthenticated means no principal was presented where one is required.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the principal lacks the required scopes.
	ErrForbidden = errors.New("insufficient scope")
)

// Mode combines the scopes of a Requirement.
type Mode int

const (
	// All requires every listed scope.
	All Mode = iota
	// Any requires at least one listed scope.
	Any
)

// Requirement is the scope condition attached to an operation. The zero value
// requires nothing.
type Requirement struct {
	Mode   Mode
	Scopes []claims.Scope
}

// AnyOf requires at least one of scopes.
func AnyOf(scopes ...claims.Scope) Requirement { return Requirement{Mode: Any, Scopes: scopes} }

// AllOf requires every one of scopes.
func AllOf(scopes ...claims.Scope) Requirement { return Requirement{Mode: All, Scopes: scopes} }

// AdminRequirement is met by any admin scope.
var AdminRequirement = AnyOf(claims.ScopeAdminRead, claims.ScopeAdminWrite, claims.ScopeAdminDelete)

// Empty reports whether the requirement lists no scopes.
func (r Requirement) Empty() bool { return len(r.Scopes) == 0 }

// Allows reports whether granted satisfies r. An empty requirement always does.
func (r Requirement) Allows(granted []claims.Scope) bool {
	if r.Empty() {
		return true
	}
	set := make(map[claims.Scope]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	switch r.Mode {
	case Any:
		for _, s := range r.Scopes {
			if _, ok := set[s]; ok {
				return true
			}
		}
		return false
	default:
		for _, s := range r.Scopes {
			if _, ok := set[s]; !ok {
				return false
			}
		}
		return true
	}
}

// Decide evaluates r for a required principal. A nil principal is
// unauthenticated even when r is empty.
func Decide(principal *claims.Claims, r Requirement) error {
	if principal == nil {
		return ErrUnauthenticated
	}
	if !r.Allows(principal.Scopes) {
		return ErrForbidden
	}
	return nil
}

// DecideOptional evaluates r for an optional principal: a missing principal
// holds no scopes, so it passes only an empty requirement and is otherwise
// forbidden rather than unauthenticated.
func DecideOptional(principal *claims.Claims, r Requirement) error {
	var granted []claims.Scope
	if principal != nil {
		granted = principal.Scopes
	}
	if !r.Allows(granted) {
		return ErrForbidden
	}
	return nil
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// value. The scheme is case-insensitive.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}
