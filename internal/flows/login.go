package flows

import (
	"context"
	"strings"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess    int
	LoginFailure    int
	LoginUnverified int
	LoginThrottled  int
	TokenIssued     int
	SessionCreated  int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess   string
	LoginFailure   string
	SessionCreated string
}

// LoginErrors carries root sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady       error
	AuthenticationFailed error
	Throttled            error
}

// LoginThrottle hooks a failed-attempt limiter into the flow. Each field may
// be nil. Limiter backend errors are the caller's to log; the hooks only
// report the decision.
type LoginThrottle struct {
	Allow   func(ctx context.Context, username string) bool
	Failure func(ctx context.Context, username string)
	Reset   func(ctx context.Context, username string)
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Verify func(ctx context.Context, username, password string) (Subject, error)
	Issue  func(ctx context.Context, subject Subject) (Issued, error)

	// IsUnverified and IsAuthFailure classify Verify errors for metrics.
	// Anything matching neither is a backend failure.
	IsUnverified  func(error) bool
	IsAuthFailure func(error) bool

	Throttle LoginThrottle

	MetricInc func(int)
	EmitAudit AuditFunc
	Error     func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies the credentials and issues a credential for the
// resulting subject. The password is handed to Verify once and goes nowhere
// else.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) (Subject, Issued, error) {
	if deps.Verify == nil || deps.Issue == nil {
		return Subject{}, Issued{}, deps.Errors.EngineNotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Error == nil {
		deps.Error = noopLog
	}
	if deps.IsUnverified == nil {
		deps.IsUnverified = func(error) bool { return false }
	}
	if deps.IsAuthFailure == nil {
		deps.IsAuthFailure = func(error) bool { return false }
	}

	if strings.TrimSpace(username) == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.AuthenticationFailed, func() map[string]string {
			return map[string]string{"reason": "missing_credentials"}
		})
		return Subject{}, Issued{}, deps.Errors.AuthenticationFailed
	}

	if deps.Throttle.Allow != nil && !deps.Throttle.Allow(ctx, username) {
		deps.MetricInc(deps.Metrics.LoginThrottled)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.Throttled, func() map[string]string {
			return map[string]string{"identifier": username, "reason": "throttled"}
		})
		return Subject{}, Issued{}, deps.Errors.Throttled
	}

	subject, err := deps.Verify(ctx, username, password)
	if err != nil {
		switch {
		case deps.IsUnverified(err):
			deps.MetricInc(deps.Metrics.LoginUnverified)
		case deps.IsAuthFailure(err):
			deps.MetricInc(deps.Metrics.LoginFailure)
			if deps.Throttle.Failure != nil {
				deps.Throttle.Failure(ctx, username)
			}
		default:
			deps.Error("authgate: login verification failed", "error", err)
		}
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", err, func() map[string]string {
			return map[string]string{"identifier": username}
		})
		return Subject{}, Issued{}, err
	}

	issued, err := deps.Issue(ctx, subject)
	if err != nil {
		deps.Error("authgate: credential issue failed", "user_id", subject.UserID, "error", err)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, subject.UserID, err, func() map[string]string {
			return map[string]string{"reason": "issue_failed"}
		})
		return Subject{}, Issued{}, err
	}

	if deps.Throttle.Reset != nil {
		deps.Throttle.Reset(ctx, username)
	}

	if issued.Session {
		deps.MetricInc(deps.Metrics.SessionCreated)
		deps.EmitAudit(ctx, deps.Events.SessionCreated, true, subject.UserID, nil, nil)
	} else {
		deps.MetricInc(deps.Metrics.TokenIssued)
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, subject.UserID, nil, nil)

	return subject, issued, nil
}
