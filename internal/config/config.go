// Package config loads process settings for the authgate server from
// defaults, an optional YAML file, the environment and command-line flags,
// in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "AUTHGATE_"

// legacyEnv maps the variable names older deployments used onto keys.
var legacyEnv = map[string]string{
	"AUTHENTICATION_STRATEGY": "auth.strategy",
	"JWT_SECRET":              "token.secret",
	"REDIS_ADDR":              "redis.addr",
	"REDIS_PASSWORD":          "redis.password",
	"DATABASE_URL":            "database.url",
	"NODE_ENV":                "auth.env",
}

// flagKeys maps command-line flag names onto keys.
var flagKeys = map[string]string{
	"strategy":       "auth.strategy",
	"env":            "auth.env",
	"addr":           "server.addr",
	"upstream":       "server.upstream",
	"redis-addr":     "redis.addr",
	"database-url":   "database.url",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"session-ttl":    "session.ttl",
	"token-validity": "token.validity",
	"throttle":       "throttle.enabled",
	"dev":            "dev",
}

var defaults = map[string]any{
	"token.validity":          "1h",
	"token.cookie":            "jwt",
	"session.prefix":          "ags",
	"session.ttl":             "24h",
	"session.sliding":         false,
	"session.cookie":          "sid",
	"cookie.path":             "/",
	"cookie.samesite":         "lax",
	"cookie.secure":           false,
	"throttle.enabled":        false,
	"throttle.max_attempts":   5,
	"throttle.window":         "15m",
	"throttle.per_ip":         false,
	"throttle.prefix":         "agt",
	"audit.enabled":           true,
	"audit.buffer":            1024,
	"audit.drop_if_full":      true,
	"metrics.enabled":         true,
	"metrics.latency":         true,
	"server.addr":             ":8080",
	"server.shutdown_timeout": "10s",
	"server.read_timeout":     "15s",
	"redis.addr":              "localhost:6379",
	"redis.db":                0,
	"log.format":              "json",
	"log.level":               "info",
	"dev":                     false,
}

// Settings is everything the serve command needs.
type Settings struct {
	Auth     authgate.Config
	Server   ServerSettings
	Redis    RedisSettings
	Database DatabaseSettings
	Log      LogSettings
	// Dev runs with an in-process Redis and a seeded in-memory user store.
	Dev bool
}

type ServerSettings struct {
	Addr            string
	Upstream        string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseSettings struct {
	URL string
}

type LogSettings struct {
	Format string
	Level  string
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("strategy", "", "authentication strategy (SESSION or TOKEN)")
	fs.String("env", "", "deployment environment (development relaxes cookie and secret checks)")
	fs.String("addr", "", "HTTP listen address")
	fs.String("upstream", "", "URL of the backend to proxy authenticated requests to")
	fs.String("redis-addr", "", "Redis address for the SESSION strategy")
	fs.String("database-url", "", "Postgres URL for the user store")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Duration("session-ttl", 0, "session lifetime")
	fs.Duration("token-validity", 0, "token validity window")
	fs.Bool("throttle", false, "rate limit failed logins in Redis")
	fs.Bool("dev", false, "run with in-process Redis and a seeded in-memory user store")
}

// Load resolves settings. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	return build(k)
}

// envKey maps AUTHGATE_TOKEN__COOKIE to token.cookie and the legacy names
// through legacyEnv. Anything else, and any empty value, is ignored.
func envKey(name, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	if key, ok := legacyEnv[name]; ok {
		return key, value
	}
	if name == "AUTHGATE_ENV" {
		return "auth.env", value
	}
	if !strings.HasPrefix(name, envPrefix) {
		return "", nil
	}
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

// flagKey only forwards flags set on the command line so that flag
// defaults never mask the file or environment.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func build(k *koanf.Koanf) (*Settings, error) {
	strategy, err := authgate.ParseStrategy(k.String("auth.strategy"))
	if err != nil {
		return nil, err
	}

	sameSite, err := parseSameSite(k.String("cookie.samesite"))
	if err != nil {
		return nil, err
	}

	cfg := authgate.DefaultConfig()
	cfg.Strategy = strategy
	cfg.Environment = k.String("auth.env")
	if cfg.Environment == "" {
		cfg.Environment = "production"
		if k.Bool("dev") {
			cfg.Environment = authgate.EnvDevelopment
		}
	}
	cfg.Token.Secret = []byte(k.String("token.secret"))
	cfg.Token.ValidityWindow = k.Duration("token.validity")
	cfg.Token.Issuer = k.String("token.issuer")
	cfg.Token.KeyID = k.String("token.kid")
	cfg.Token.CookieName = k.String("token.cookie")
	if prev := k.StringMap("token.verify_secrets"); len(prev) > 0 {
		cfg.Token.VerifySecrets = make(map[string][]byte, len(prev))
		for kid, secret := range prev {
			cfg.Token.VerifySecrets[kid] = []byte(secret)
		}
	}
	cfg.Session.RedisPrefix = k.String("session.prefix")
	cfg.Session.TTL = k.Duration("session.ttl")
	cfg.Session.SlidingExpiration = k.Bool("session.sliding")
	cfg.Session.CookieName = k.String("session.cookie")
	cfg.Cookie.Path = k.String("cookie.path")
	cfg.Cookie.Domain = k.String("cookie.domain")
	cfg.Cookie.SameSite = sameSite
	cfg.Cookie.Secure = k.Bool("cookie.secure")
	cfg.Throttle.Enabled = k.Bool("throttle.enabled")
	cfg.Throttle.MaxAttempts = k.Int("throttle.max_attempts")
	cfg.Throttle.Window = k.Duration("throttle.window")
	cfg.Throttle.PerIP = k.Bool("throttle.per_ip")
	cfg.Throttle.RedisPrefix = k.String("throttle.prefix")
	cfg.Audit.Enabled = k.Bool("audit.enabled")
	cfg.Audit.BufferSize = k.Int("audit.buffer")
	cfg.Audit.DropIfFull = k.Bool("audit.drop_if_full")
	cfg.Metrics.Enabled = k.Bool("metrics.enabled")
	cfg.Metrics.EnableLatencyHistograms = k.Bool("metrics.latency")

	s := &Settings{
		Auth: cfg,
		Server: ServerSettings{
			Addr:            k.String("server.addr"),
			Upstream:        k.String("server.upstream"),
			ReadTimeout:     k.Duration("server.read_timeout"),
			ShutdownTimeout: k.Duration("server.shutdown_timeout"),
		},
		Redis: RedisSettings{
			Addr:     k.String("redis.addr"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Database: DatabaseSettings{URL: k.String("database.url")},
		Log: LogSettings{
			Format: k.String("log.format"),
			Level:  k.String("log.level"),
		},
		Dev: k.Bool("dev"),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the server settings and the engine configuration.
func (s *Settings) Validate() error {
	if s.Log.Format != "json" && s.Log.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text', got %q", s.Log.Format)
	}
	if s.Server.Addr == "" {
		return errors.New("server address is required")
	}
	if s.Server.ShutdownTimeout <= 0 {
		return errors.New("server shutdown timeout must be > 0")
	}
	if !s.Dev && s.NeedsRedis() && s.Redis.Addr == "" {
		return errors.New("redis address is required for the SESSION strategy and login throttling")
	}
	return s.Auth.Validate()
}

// NeedsRedis reports whether the configured engine stores anything in Redis.
func (s *Settings) NeedsRedis() bool {
	return s.Auth.Strategy == authgate.StrategySession || s.Auth.Throttle.Enabled
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "default":
		return http.SameSiteDefaultMode, nil
	default:
		return 0, fmt.Errorf("unknown cookie samesite mode %q", v)
	}
}
