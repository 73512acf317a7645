package jwt

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSigningKeyLength is the shortest secret accepted when signing key
// validation is enabled.
const MinSigningKeyLength = 32

var (
	// ErrEncoding is returned by Issue when the key material or the claims
	// cannot produce a token.
	ErrEncoding = errors.New("token encoding failed")
	// ErrInvalidToken is returned by Decode for any token that must not be trusted.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is joined with ErrInvalidToken when the only problem is expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidConfig is returned by NewCodec.
	ErrInvalidConfig = errors.New("invalid codec configuration")
)

// Config holds the symmetric key and claim validation toggles.
type Config struct {
	Secret             []byte
	Issuer             string
	Audience           string
	ValidateIssuer     bool
	ValidateAudience   bool
	ValidateSigningKey bool

	// Now overrides the clock used for iat and expiry checks.
	Now func() time.Time
}

// Codec signs and verifies HS256 access tokens. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	key              []byte
	issuer           string
	audience         string
	validateIssuer   bool
	validateAudience bool
	now              func() time.Time
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret key is empty", ErrInvalidConfig)
	}
	if cfg.ValidateSigningKey && len(cfg.Secret) < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: secret key must be at least %d bytes", ErrInvalidConfig, MinSigningKeyLength)
	}
	if cfg.ValidateIssuer && cfg.Issuer == "" {
		return nil, fmt.Errorf("%w: issuer validation requires an issuer", ErrInvalidConfig)
	}
	if cfg.ValidateAudience && cfg.Audience == "" {
		return nil, fmt.Errorf("%w: audience validation requires an audience", ErrInvalidConfig)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		key:              slices.Clone(cfg.Secret),
		issuer:           cfg.Issuer,
		audience:         cfg.Audience,
		validateIssuer:   cfg.ValidateIssuer,
		validateAudience: cfg.ValidateAudience,
		now:              now,
	}, nil
}

// Issue encodes claims into a signed token that expires at expiresAt.
// A fresh jti is generated for every call.
func (c *Codec) Issue(claims ClaimSet, expiresAt time.Time) (string, error) {
	if c == nil || len(c.key) == 0 {
		return "", fmt.Errorf("%w: signing key is empty", ErrEncoding)
	}
	if expiresAt.IsZero() {
		return "", fmt.Errorf("%w: expiry is not set", ErrEncoding)
	}
	if err := claims.validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	set, err := withSubject(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	payload := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(c.now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
			Issuer:    c.issuer,
		},
		set: set,
	}
	if c.audience != "" {
		payload.Audience = jwt.ClaimStrings{c.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies token and returns its caller claims and expiry.
//
// With enforceExpiry false an expired but otherwise valid token still
// decodes; issuer and audience are checked either way when enabled.
func (c *Codec) Decode(token string, enforceExpiry bool) (ClaimSet, time.Time, error) {
	if c == nil {
		return nil, time.Time{}, fmt.Errorf("%w: codec not configured", ErrInvalidToken)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if enforceExpiry {
		options = append(options, jwt.WithExpirationRequired())
		if c.validateIssuer {
			options = append(options, jwt.WithIssuer(c.issuer))
		}
		if c.validateAudience {
			options = append(options, jwt.WithAudience(c.audience))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	claims := &tokenClaims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, c.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, time.Time{}, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, time.Time{}, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if !enforceExpiry {
		if err := c.checkIssuerAudience(claims); err != nil {
			return nil, time.Time{}, err
		}
	}

	return claims.set, claims.ExpiresAt.Time.UTC(), nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	return c.key, nil
}

func (c *Codec) checkIssuerAudience(claims *tokenClaims) error {
	if c.validateIssuer && claims.Issuer != c.issuer {
		return fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidIssuer)
	}
	if c.validateAudience && !slices.Contains(claims.Audience, c.audience) {
		return fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidAudience)
	}
	return nil
}
