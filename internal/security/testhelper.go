package security

// TestSecrets are fixed keys for unit tests only. Do not use in production.
var TestSecrets = Secrets{
	Access:            []byte("test-access-secret-0123456789abcdef"),
	Refresh:           []byte("test-refresh-secret-0123456789abcdef"),
	EmailVerification: []byte("test-email-secret-0123456789abcdef"),
	PasswordReset:     []byte("test-reset-secret-0123456789abcdef"),
}

// NewTestCodec returns a Codec over TestSecrets with the default issuer and audience.
// For unit tests only. Callers must not use in production.
func NewTestCodec() (*Codec, error) {
	return NewCodec(TestSecrets, "", "")
}
