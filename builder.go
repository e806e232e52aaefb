package authgate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during startup, call Build
// once, and discard it.
type Builder struct {
	config Config

	redis     redis.UniversalClient
	sessions  SessionStore
	users     UserStore
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig. The strategy must still
// be set through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client the SESSION strategy stores sessions in
// and the login throttle counts failures in.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the Redis-backed store. It takes precedence
// over WithRedis.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source used for token issuance,
// verification, session lifetimes and guard latency.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, selects the authentication strategy
// and returns a ready Engine. An unsupported strategy fails with
// ErrUnsupportedStrategy; callers must not start serving in that case.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		config:   cfg,
		users:    b.users,
		verifier: credentialVerifier{users: b.users},
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      now,
	}

	switch cfg.Strategy {
	case StrategyToken:
		tokens, err := jwt.NewManager(jwt.Config{
			Secret:         cfg.Token.Secret,
			ValidityWindow: cfg.Token.ValidityWindow,
			Issuer:         cfg.Token.Issuer,
			KeyID:          cfg.Token.KeyID,
			VerifySecrets:  cfg.Token.VerifySecrets,
			Now:            now,
		})
		if err != nil {
			return nil, err
		}
		e.tokens = tokens
		e.strategy = &tokenStrategy{tokens: tokens, users: b.users}
	case StrategySession:
		store := b.sessions
		if store == nil {
			if b.redis == nil {
				return nil, errors.New("SESSION strategy requires a redis client or session store")
			}
			store = session.NewStore(
				b.redis,
				cfg.Session.RedisPrefix,
				cfg.Session.TTL,
				cfg.Session.SlidingExpiration,
				session.WithClock(now),
			)
		}
		e.sessions = store
		e.strategy = &sessionStrategy{store: store, users: b.users}
	default:
		return nil, ErrUnsupportedStrategy
	}

	if cfg.Throttle.Enabled {
		if b.redis == nil {
			return nil, errors.New("login throttling requires a redis client")
		}
		e.throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Throttle.RedisPrefix,
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Window:      cfg.Throttle.Window,
			PerIP:       cfg.Throttle.PerIP,
		})
	}

	e.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	e.flows = e.buildFlowDeps()

	for _, w := range cfg.Lint() {
		logger.Warn("authgate: config warning", "code", w.Code, "message", w.Message)
	}

	b.built = true
	return e, nil
}
