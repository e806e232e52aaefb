package jwt

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSigningUnavailable is returned by Issue when no signing secret is configured.
	ErrSigningUnavailable = errors.New("jwt: signing secret not configured")
	// ErrTokenInvalid covers malformed tokens, unexpected algorithms and
	// signature mismatches.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired is returned for a correctly signed token whose exp has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// DefaultValidityWindow is used when Config.ValidityWindow is zero.
const DefaultValidityWindow = time.Hour

// Config holds the token signing settings. It is read once at construction.
type Config struct {
	// Secret signs new tokens. An empty secret is accepted so a development
	// deployment can start, but Issue then fails with ErrSigningUnavailable.
	Secret         []byte
	ValidityWindow time.Duration
	Issuer         string
	// KeyID is written to the kid header when set.
	KeyID string
	// VerifySecrets maps kid to secret for verification during rotation.
	// When non-empty, tokens must carry a kid present in the map.
	VerifySecrets map[string][]byte
	// Now overrides the clock. Tests use it to pin iat and exp.
	Now func() time.Time
}

// UserDto is the identity payload carried under the userDto claim.
type UserDto struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	UserID    string `json:"userId"`
}

// Claims is the full token payload.
type Claims struct {
	User UserDto `json:"userDto"`
	jwt.RegisteredClaims
}

// Token is a freshly issued signed token.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and verifies tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ValidityWindow == 0 {
		cfg.ValidityWindow = DefaultValidityWindow
	}
	if cfg.ValidityWindow < time.Second {
		return nil, errors.New("jwt: validity window must be at least one second")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, secret := range cfg.VerifySecrets {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("jwt: verify secret map contains empty kid")
		}
		if len(secret) == 0 {
			return nil, fmt.Errorf("jwt: empty verify secret for kid %q", kid)
		}
	}
	if len(cfg.VerifySecrets) > 0 {
		if cfg.KeyID == "" {
			return nil, errors.New("jwt: KeyID is required when VerifySecrets is set")
		}
		current, ok := cfg.VerifySecrets[cfg.KeyID]
		if !ok {
			return nil, errors.New("jwt: KeyID is not present in VerifySecrets")
		}
		// Issued tokens must verify against the entry for their own kid.
		if len(cfg.Secret) > 0 && !hmac.Equal(current, cfg.Secret) {
			return nil, fmt.Errorf("jwt: VerifySecrets[%q] does not match Secret", cfg.KeyID)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	return &Manager{config: cfg}, nil
}

// ValidityWindow reports the configured token lifetime.
func (m *Manager) ValidityWindow() time.Duration {
	return m.config.ValidityWindow
}

// Issue signs a token for user with exp = iat + ValidityWindow.
func (m *Manager) Issue(user UserDto) (Token, error) {
	if len(m.config.Secret) == 0 {
		return Token{}, ErrSigningUnavailable
	}

	now := m.config.Now().Truncate(time.Second)
	exp := now.Add(m.config.ValidityWindow)
	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return Token{Value: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Parse verifies the signature first and then the time claims. Any failure
// other than expiry of an authentic token is reported as ErrTokenInvalid.
func (m *Manager) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(raw, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.User.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifySecrets) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		secret, ok := m.config.VerifySecrets[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return secret, nil
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	if len(m.config.Secret) == 0 {
		return nil, ErrSigningUnavailable
	}
	return m.config.Secret, nil
}
