package service

import (
	"strings"

	"session-authority/internal/claims"
)

// GenerateEmailVerificationToken mints a stateless email verification token.
func (a *Authority) GenerateEmailVerificationToken(userID, email string) (string, error) {
	if err := requireSubject(userID, email); err != nil {
		return "", err
	}
	now := a.now()
	return a.codec.Issue(claims.NewEmailVerification(userID, email, now, now.Add(a.cfg.EmailVerificationTTL)))
}

// VerifyEmailVerificationToken returns the claims of a valid, unexpired token.
func (a *Authority) VerifyEmailVerificationToken(token string) (*claims.Claims, error) {
	return a.verifyStateless(token, claims.PurposeEmailVerification)
}

// GeneratePasswordResetToken mints a stateless password reset token. Callers
// should revoke all sessions once the reset is applied.
func (a *Authority) GeneratePasswordResetToken(userID, email string) (string, error) {
	if err := requireSubject(userID, email); err != nil {
		return "", err
	}
	now := a.now()
	return a.codec.Issue(claims.NewPasswordReset(userID, email, now, now.Add(a.cfg.PasswordResetTTL)))
}

func (a *Authority) VerifyPasswordResetToken(token string) (*claims.Claims, error) {
	return a.verifyStateless(token, claims.PurposePasswordReset)
}

func requireSubject(userID, email string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(email) == "" {
		return ErrInvalidArgument
	}
	return nil
}
