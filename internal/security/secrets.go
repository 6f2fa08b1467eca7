package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"session-authority/internal/claims"
)

// MinSecretLength is the shortest accepted HMAC key.
const MinSecretLength = 32

// Secrets holds one signing key per token purpose.
type Secrets struct {
	Access            []byte
	Refresh           []byte
	EmailVerification []byte
	PasswordReset     []byte
}

func (s Secrets) byPurpose() map[claims.Purpose][]byte {
	return map[claims.Purpose][]byte{
		claims.PurposeAccess:            s.Access,
		claims.PurposeRefresh:           s.Refresh,
		claims.PurposeEmailVerification: s.EmailVerification,
		claims.PurposePasswordReset:     s.PasswordReset,
	}
}

// Validate requires every secret to be present, long enough and distinct.
func (s Secrets) Validate() error {
	m := s.byPurpose()
	for _, p := range claims.Purposes {
		if len(m[p]) == 0 {
			return fmt.Errorf("security: %s secret is not set", p)
		}
		if len(m[p]) < MinSecretLength {
			return fmt.Errorf("security: %s secret must be at least %d bytes", p, MinSecretLength)
		}
	}
	for i, a := range claims.Purposes {
		for _, b := range claims.Purposes[i+1:] {
			if subtle.ConstantTimeCompare(m[a], m[b]) == 1 {
				return fmt.Errorf("security: %s and %s secrets must differ", a, b)
			}
		}
	}
	return nil
}

// DeriveSecrets expands one master key into four independent purpose keys
// with HKDF-SHA256, using the purpose name as the info parameter.
func DeriveSecrets(master []byte) (Secrets, error) {
	if len(master) < MinSecretLength {
		return Secrets{}, errors.New("security: master secret must be at least 32 bytes")
	}
	derive := func(p claims.Purpose) ([]byte, error) {
		key := make([]byte, 32)
		r := hkdf.New(sha256.New, master, nil, []byte("session-authority/"+string(p)))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		return key, nil
	}
	var s Secrets
	var err error
	if s.Access, err = derive(claims.PurposeAccess); err != nil {
		return Secrets{}, err
	}
	if s.Refresh, err = derive(claims.PurposeRefresh); err != nil {
		return Secrets{}, err
	}
	if s.EmailVerification, err = derive(claims.PurposeEmailVerification); err != nil {
		return Secrets{}, err
	}
	if s.PasswordReset, err = derive(claims.PurposePasswordReset); err != nil {
		return Secrets{}, err
	}
	return s, nil
}

// FillMissing returns s with every empty secret replaced by the matching
// derived one. master may be nil when all secrets are set.
func (s Secrets) FillMissing(master []byte) (Secrets, error) {
	if len(s.Access) > 0 && len(s.Refresh) > 0 && len(s.EmailVerification) > 0 && len(s.PasswordReset) > 0 {
		return s, nil
	}
	if len(master) == 0 {
		return s, nil
	}
	d, err := DeriveSecrets(master)
	if err != nil {
		return Secrets{}, err
	}
	if len(s.Access) == 0 {
		s.Access = d.Access
	}
	if len(s.Refresh) == 0 {
		s.Refresh = d.Refresh
	}
	if len(s.EmailVerification) == 0 {
		s.EmailVerification = d.EmailVerification
	}
	if len(s.PasswordReset) == 0 {
		s.PasswordReset = d.PasswordReset
	}
	return s, nil
}
