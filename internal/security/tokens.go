package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"session-authority/internal/claims"
)

var (
	// ErrSignatureInvalid is returned when the signature does not verify under the
	// purpose's secret, including tokens minted for a different purpose.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenMalformed is returned for structurally broken tokens or undecodable claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrUnsupportedAlgorithm is returned for any alg other than HS256.
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported signing algorithm", ErrSignatureInvalid)
)

// jwtClaims adapts claims.Claims to jwt.Claims without changing its wire shape.
type jwtClaims struct {
	*claims.Claims
}

func (c jwtClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(c.ExpiresAtTime()), nil
}

func (c jwtClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return &jwt.NumericDate{Time: unixUTC(c.IssuedAt)}, nil
}

func (c jwtClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c jwtClaims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c jwtClaims) GetSubject() (string, error)             { return c.Subject, nil }

func (c jwtClaims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Codec signs and verifies HS256 tokens with one secret per purpose.
// It is safe for concurrent use.
type Codec struct {
	secrets  map[claims.Purpose][]byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewCodec validates secrets and returns a Codec. Empty issuer or audience
// fall back to the claims defaults.
func NewCodec(secrets Secrets, issuer, audience string) (*Codec, error) {
	if err := secrets.Validate(); err != nil {
		return nil, err
	}
	if issuer == "" {
		issuer = claims.DefaultIssuer
	}
	if audience == "" {
		audience = claims.DefaultAudience
	}
	return &Codec{
		secrets:  secrets.byPurpose(),
		issuer:   issuer,
		audience: audience,
		// Expiry is surfaced through Claims.IsExpired, not as a parse failure.
		parser: jwt.NewParser(jwt.WithoutClaimsValidation(), jwt.WithJSONNumber()),
	}, nil
}

// Issuer returns the iss stamped on issued tokens.
func (c *Codec) Issuer() string { return c.issuer }

// Audience returns the aud stamped on issued tokens.
func (c *Codec) Audience() string { return c.audience }

// Issue signs a copy of cl with the secret bound to cl.Purpose. The copy is
// stamped with the codec's issuer and audience.
func (c *Codec) Issue(cl *claims.Claims) (string, error) {
	if cl == nil {
		return "", fmt.Errorf("%w: nil claims", ErrTokenMalformed)
	}
	key, ok := c.secrets[cl.Purpose]
	if !ok {
		return "", fmt.Errorf("%w: unknown token type %q", ErrTokenMalformed, cl.Purpose)
	}
	stamped := *cl
	stamped.Issuer = c.issuer
	stamped.Audience = c.audience
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{Claims: &stamped})
	return tok.SignedString(key)
}

// Verify checks structure, algorithm, signature and purpose and returns the
// decoded claims. An expired token is returned without error; callers decide
// with IsExpired.
func (c *Codec) Verify(token string, purpose claims.Purpose) (*claims.Claims, error) {
	key, ok := c.secrets[purpose]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrTokenMalformed, purpose)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}
	out := jwtClaims{Claims: &claims.Claims{}}
	_, err := c.parser.ParseWithClaims(token, &out, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnsupportedAlgorithm
		}
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Purpose != purpose {
		return nil, fmt.Errorf("%w: token type %q, want %q", ErrSignatureInvalid, out.Purpose, purpose)
	}
	if out.Issuer != c.issuer || out.Audience != c.audience {
		return nil, fmt.Errorf("%w: issuer or audience mismatch", ErrSignatureInvalid)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}
	normalizeExtra(out.Claims)
	return out.Claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
