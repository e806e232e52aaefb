package authgate

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EnvDevelopment is the environment name under which cookies are not
// marked Secure and a missing token secret is tolerated.
const EnvDevelopment = "development"

// Config is the full engine configuration. It is copied into the engine at
// Build and never read from the environment afterwards.
type Config struct {
	Strategy    Strategy
	Environment string
	Token       TokenConfig
	Session     SessionConfig
	Cookie      CookieConfig
	Throttle    ThrottleConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the TOKEN strategy.
type TokenConfig struct {
	// Secret is the HS256 signing key. Required outside development.
	Secret         []byte
	ValidityWindow time.Duration
	Issuer         string
	KeyID          string
	// VerifySecrets allows tokens signed under older kids to keep verifying
	// during a rotation.
	VerifySecrets map[string][]byte
	CookieName    string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the SESSION strategy.
type SessionConfig struct {
	RedisPrefix       string
	TTL               time.Duration
	SlidingExpiration bool
	CookieName        string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig holds attributes shared by both credential cookies.
type CookieConfig struct {
	Path     string
	Domain   string
	SameSite http.SameSite
	// Secure forces the Secure attribute even in development.
	Secure bool
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed logins per identifier, and optionally per
// client IP, using fixed-window counters in Redis.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field except Strategy
// and Token.Secret set to its production default.
func DefaultConfig() Config {
	return Config{
		Environment: "production",
		Token: TokenConfig{
			ValidityWindow: 3600 * time.Second,
			CookieName:     "jwt",
		},
		Session: SessionConfig{
			RedisPrefix: "ags",
			TTL:         24 * time.Hour,
			CookieName:  "sid",
		},
		Cookie: CookieConfig{
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		Throttle: ThrottleConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			RedisPrefix: "agt",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	if cfg.Token.VerifySecrets != nil {
		out.Token.VerifySecrets = make(map[string][]byte, len(cfg.Token.VerifySecrets))
		for kid, secret := range cfg.Token.VerifySecrets {
			out.Token.VerifySecrets[kid] = cloneBytes(secret)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// IsDevelopment reports whether Environment names a development deployment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvDevelopment)
}

// SecureCookies reports whether credential cookies carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Cookie.Secure || !c.IsDevelopment()
}

// CookieName returns the credential cookie name for the selected strategy.
func (c *Config) CookieName() string {
	if c.Strategy == StrategySession {
		return c.Session.CookieName
	}
	return c.Token.CookieName
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run with. An
// unsupported strategy is reported as ErrUnsupportedStrategy.
func (c *Config) Validate() error {
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedStrategy, string(c.Strategy))
	}

	// Token
	if c.Token.ValidityWindow < time.Second {
		return errors.New("Token ValidityWindow must be >= 1s")
	}
	if !validCookieName(c.Token.CookieName) {
		return errors.New("Token CookieName is not a valid cookie name")
	}
	if c.Strategy == StrategyToken && len(c.Token.Secret) == 0 && !c.IsDevelopment() {
		return errors.New("Token Secret is required outside development")
	}
	for kid, secret := range c.Token.VerifySecrets {
		if strings.TrimSpace(kid) == "" || len(secret) == 0 {
			return errors.New("Token VerifySecrets entries need a kid and a secret")
		}
	}
	if len(c.Token.VerifySecrets) > 0 {
		if strings.TrimSpace(c.Token.KeyID) == "" {
			return errors.New("Token KeyID is required when VerifySecrets is set")
		}
		current, ok := c.Token.VerifySecrets[strings.TrimSpace(c.Token.KeyID)]
		if !ok {
			return errors.New("Token KeyID must be present in VerifySecrets")
		}
		if len(c.Token.Secret) > 0 && !hmac.Equal(current, c.Token.Secret) {
			return errors.New("Token VerifySecrets[KeyID] must equal Token Secret")
		}
	}

	// Session
	if !validCookieName(c.Session.CookieName) {
		return errors.New("Session CookieName is not a valid cookie name")
	}
	if c.Strategy == StrategySession {
		if strings.TrimSpace(c.Session.RedisPrefix) == "" {
			return errors.New("Session RedisPrefix must not be empty")
		}
		if c.Session.TTL < time.Second {
			return errors.New("Session TTL must be >= 1s")
		}
	}

	// Cookie
	if c.Cookie.Path == "" || !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}
	switch c.Cookie.SameSite {
	case http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode, http.SameSiteNoneMode:
	default:
		return errors.New("Cookie SameSite is not a known mode")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.SecureCookies() {
		return errors.New("Cookie SameSite=None requires Secure cookies")
	}

	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts < 1 {
			return errors.New("Throttle MaxAttempts must be >= 1")
		}
		if c.Throttle.Window < time.Second {
			return errors.New("Throttle Window must be >= 1s")
		}
		if strings.TrimSpace(c.Throttle.RedisPrefix) == "" {
			return errors.New("Throttle RedisPrefix must not be empty")
		}
	}

	if c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}

	return nil
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}
	return true
}
