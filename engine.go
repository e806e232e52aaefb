package authgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authgate/internal/audit"
	internalflows "github.com/MrEthical07/authgate/internal/flows"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
)

// Engine is the built authentication engine. It is immutable after Build
// and safe for concurrent use.
type Engine struct {
	config   Config
	strategy authStrategy
	verifier credentialVerifier
	users    UserStore
	sessions SessionStore
	tokens   *jwt.Manager
	throttle *rate.Limiter
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	flows    internalflows.Deps
}

// Strategy returns the strategy selected at startup.
func (e *Engine) Strategy() Strategy {
	if e == nil || e.strategy == nil {
		return ""
	}
	return e.strategy.kind()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// CookieName is the name of the cookie carrying the credential for the
// selected strategy.
func (e *Engine) CookieName() string {
	if e == nil {
		return ""
	}
	return e.config.CookieName()
}

func (e *Engine) SecureCookies() bool {
	if e == nil {
		return true
	}
	return e.config.SecureCookies()
}

// Login verifies username and password and issues a credential for the
// selected strategy. Unknown users and wrong passwords both fail with
// ErrAuthenticationFailed.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.strategy == nil {
		return nil, ErrEngineNotReady
	}

	subject, issued, err := internalflows.RunLogin(ctx, username, password, e.flows.Login)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: principalFromSubject(subject).Summary(),
		Credential: Credential{
			Value:     issued.Value,
			ExpiresAt: issued.ExpiresAt,
		},
	}, nil
}

// Logout releases server-side state behind credential. It only fails when
// the engine is not built; store failures are logged and audited.
func (e *Engine) Logout(ctx context.Context, credential string) error {
	if e == nil || e.strategy == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunLogout(ctx, credential, e.flows.Logout)
}

// Authenticate resolves a presented credential to a Principal. Errors for
// which IsVerificationFailure is true are client rejections; anything else
// is a backend failure.
func (e *Engine) Authenticate(ctx context.Context, credential string) (Principal, error) {
	ac, err := e.Resolve(ctx, credential)
	if err != nil {
		return Principal{}, err
	}
	return *ac.Principal, nil
}

// Resolve is Authenticate returning the full AuthContext, including when
// the credential expires.
func (e *Engine) Resolve(ctx context.Context, credential string) (AuthContext, error) {
	if e == nil || e.strategy == nil {
		return AuthContext{}, ErrEngineNotReady
	}

	subject, err := internalflows.RunAuthenticate(ctx, credential, e.flows.Authenticate)
	if err != nil {
		return AuthContext{Strategy: e.strategy.kind(), Err: err}, err
	}
	p := principalFromSubject(subject)
	return AuthContext{
		Strategy:  e.strategy.kind(),
		Principal: &p,
		ExpiresAt: subject.ExpiresAt,
	}, nil
}

type sessionPinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type userStorePinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backends the engine depends on, when they support it.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.strategy == nil {
		return ErrEngineNotReady
	}
	if p, ok := e.sessions.(sessionPinger); ok {
		if _, err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrSessionStoreUnavailable, err)
		}
	}
	if p, ok := e.users.(userStorePinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUserStoreUnavailable, err)
		}
	}
	return nil
}

// Close flushes pending audit events. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id int) {
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	session := e.strategy.kind() == StrategySession

	return internalflows.Deps{
		Login: internalflows.LoginDeps{
			Verify: func(ctx context.Context, username, password string) (internalflows.Subject, error) {
				p, err := e.verifier.verify(ctx, username, password)
				if err != nil {
					return internalflows.Subject{}, err
				}
				return subjectFromPrincipal(p), nil
			},
			Issue: func(ctx context.Context, subject internalflows.Subject) (internalflows.Issued, error) {
				cred, err := e.strategy.issue(ctx, principalFromSubject(subject))
				if err != nil {
					return internalflows.Issued{}, err
				}
				return internalflows.Issued{
					Value:     cred.Value,
					ExpiresAt: cred.ExpiresAt,
					Session:   session,
				}, nil
			},
			IsUnverified: func(err error) bool {
				return errors.Is(err, ErrAccountNotVerified)
			},
			IsAuthFailure: func(err error) bool {
				return errors.Is(err, ErrAuthenticationFailed)
			},
			Throttle:  e.loginThrottle(),
			MetricInc: e.metricInc,
			EmitAudit: e.emitAudit,
			Error:     e.logger.Error,
			Metrics: internalflows.LoginMetrics{
				LoginSuccess:    int(MetricLoginSuccess),
				LoginFailure:    int(MetricLoginFailure),
				LoginUnverified: int(MetricLoginUnverified),
				LoginThrottled:  int(MetricLoginThrottled),
				TokenIssued:     int(MetricTokenIssued),
				SessionCreated:  int(MetricSessionCreated),
			},
			Events: internalflows.LoginEvents{
				LoginSuccess:   auditEventLoginSuccess,
				LoginFailure:   auditEventLoginFailure,
				SessionCreated: auditEventSessionCreated,
			},
			Errors: internalflows.LoginErrors{
				EngineNotReady:       ErrEngineNotReady,
				AuthenticationFailed: ErrAuthenticationFailed,
				Throttled:            ErrLoginThrottled,
			},
		},
		Logout: internalflows.LogoutDeps{
			Teardown:  e.strategy.teardown,
			Session:   session,
			MetricInc: e.metricInc,
			EmitAudit: e.emitAudit,
			Warn:      e.logger.Warn,
			Metrics: internalflows.LogoutMetrics{
				Logout:               int(MetricLogout),
				SessionDestroyed:     int(MetricSessionDestroyed),
				SessionDestroyFailed: int(MetricSessionDestroyFailed),
			},
			Events: internalflows.LogoutEvents{
				Logout:               auditEventLogout,
				SessionDestroyFailed: auditEventSessionDestroyFailed,
			},
			Errors: internalflows.LogoutErrors{EngineNotReady: ErrEngineNotReady},
		},
		Authenticate: internalflows.AuthenticateDeps{
			Verify: func(ctx context.Context, credential string) (internalflows.Subject, error) {
				p, expiresAt, err := e.strategy.verify(ctx, credential)
				if err != nil {
					return internalflows.Subject{}, err
				}
				s := subjectFromPrincipal(p)
				s.ExpiresAt = expiresAt
				return s, nil
			},
			IsRejection: IsVerificationFailure,
			Now:         e.now,
			Observe: func(d time.Duration) {
				e.metrics.Observe(MetricAuthenticateLatency, d)
			},
			MetricInc: e.metricInc,
			EmitAudit: e.emitAudit,
			Debug:     e.logger.Debug,
			Error:     e.logger.Error,
			Metrics: internalflows.AuthenticateMetrics{
				Success:  int(MetricAuthenticateSuccess),
				Rejected: int(MetricAuthenticateRejected),
				Error:    int(MetricAuthenticateError),
			},
			Events: internalflows.AuthenticateEvents{GuardReject: auditEventGuardReject},
			Errors: internalflows.AuthenticateErrors{EngineNotReady: ErrEngineNotReady},
		},
	}
}

func subjectFromPrincipal(p Principal) internalflows.Subject {
	return internalflows.Subject{
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Verified:  p.Verified,
	}
}

func principalFromSubject(s internalflows.Subject) Principal {
	return Principal{
		UserID:    s.UserID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Verified:  s.Verified,
	}
}
