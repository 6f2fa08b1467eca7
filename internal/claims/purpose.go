package claims

import (
	"fmt"
	"time"
)

// Purpose is the token type. Each purpose is signed with its own secret, so a
// token minted for one purpose never verifies as another.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

const (
	// EmailVerificationTTL is the lifetime of an email verification token.
	EmailVerificationTTL = 24 * time.Hour
	// PasswordResetTTL is the lifetime of a password reset token.
	PasswordResetTTL = time.Hour
)

// Purposes lists every purpose in a stable order.
var Purposes = []Purpose{PurposeAccess, PurposeRefresh, PurposeEmailVerification, PurposePasswordReset}

// ParsePurpose rejects anything outside the closed set.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("claims: unknown token type %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the four purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeEmailVerification, PurposePasswordReset:
		return true
	}
	return false
}

func (p Purpose) String() string { return string(p) }
