package flows

import (
	"context"
	"time"
)

type AuthenticateMetrics struct {
	Success  int
	Rejected int
	Error    int
}

type AuthenticateEvents struct {
	GuardReject string
}

type AuthenticateErrors struct {
	EngineNotReady error
}

// AuthenticateDeps captures per-request authentication dependencies.
type AuthenticateDeps struct {
	Verify func(ctx context.Context, credential string) (Subject, error)
	// IsRejection reports whether err is a verification failure (401) as
	// opposed to a backend failure (500).
	IsRejection func(error) bool

	Now       func() time.Time
	Observe   func(time.Duration)
	MetricInc func(int)
	EmitAudit AuditFunc
	Debug     func(string, ...any)
	Error     func(string, ...any)

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
	Errors  AuthenticateErrors
}

// RunAuthenticate resolves credential to a subject. A cancelled ctx yields
// ctx.Err() without touching any store.
func RunAuthenticate(ctx context.Context, credential string, deps AuthenticateDeps) (Subject, error) {
	if deps.Verify == nil {
		return Subject{}, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observe == nil {
		deps.Observe = func(time.Duration) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Debug == nil {
		deps.Debug = noopLog
	}
	if deps.Error == nil {
		deps.Error = noopLog
	}
	if deps.IsRejection == nil {
		deps.IsRejection = func(error) bool { return false }
	}

	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}

	start := deps.Now()
	subject, err := deps.Verify(ctx, credential)
	deps.Observe(deps.Now().Sub(start))

	if err == nil {
		deps.MetricInc(deps.Metrics.Success)
		return subject, nil
	}

	if deps.IsRejection(err) {
		deps.MetricInc(deps.Metrics.Rejected)
		deps.Debug("authgate: request rejected", "error", err)
		// Anonymous requests are routine; only presented credentials are
		// audited.
		if credential != "" {
			deps.EmitAudit(ctx, deps.Events.GuardReject, false, "", err, nil)
		}
		return Subject{}, err
	}

	if ctx.Err() != nil {
		return Subject{}, err
	}
	deps.MetricInc(deps.Metrics.Error)
	deps.Error("authgate: authentication backend failure", "error", err)
	return Subject{}, err
}
