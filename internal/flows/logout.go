package flows

import "context"

type LogoutMetrics struct {
	Logout               int
	SessionDestroyed     int
	SessionDestroyFailed int
}

type LogoutEvents struct {
	Logout               string
	SessionDestroyFailed string
}

type LogoutErrors struct {
	EngineNotReady error
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	// Teardown releases server-side state for credential. It is a no-op for
	// self-contained tokens.
	Teardown func(ctx context.Context, credential string) error
	// Session is true when Teardown deletes a stored session.
	Session bool

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout tears down the credential. Store failures are logged, counted
// and audited but never returned: the client cookie is cleared regardless.
func RunLogout(ctx context.Context, credential string, deps LogoutDeps) error {
	if deps.Teardown == nil {
		return deps.Errors.EngineNotReady
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopLog
	}

	deps.MetricInc(deps.Metrics.Logout)

	if err := deps.Teardown(ctx, credential); err != nil {
		deps.MetricInc(deps.Metrics.SessionDestroyFailed)
		deps.Warn("authgate: session delete failed during logout", "error", err)
		deps.EmitAudit(ctx, deps.Events.SessionDestroyFailed, false, "", err, nil)
		return nil
	}

	if deps.Session && credential != "" {
		deps.MetricInc(deps.Metrics.SessionDestroyed)
	}
	deps.EmitAudit(ctx, deps.Events.Logout, true, "", nil, nil)
	return nil
}
