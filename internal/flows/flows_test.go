package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errNotReady  = errors.New("not ready")
	errAuthFail  = errors.New("auth failed")
	errUnverif   = errors.New("unverified")
	errBackend   = errors.New("backend down")
	errRejected  = errors.New("rejected")
	errStoreDown = errors.New("store down")
	errThrottled = errors.New("throttled")
)

const (
	mLoginSuccess = iota + 1
	mLoginFailure
	mLoginUnverified
	mTokenIssued
	mSessionCreated
	mLogout
	mDestroyed
	mDestroyFailed
	mAuthOK
	mAuthRejected
	mAuthError
	mLoginThrottled
)

type recorder struct {
	metrics map[int]int
	events  []string
}

func newRecorder() *recorder {
	return &recorder{metrics: map[int]int{}}
}

func (r *recorder) inc(id int) { r.metrics[id]++ }

func (r *recorder) audit(_ context.Context, eventType string, _ bool, _ string, _ error, metadata func() map[string]string) {
	if metadata != nil {
		_ = metadata()
	}
	r.events = append(r.events, eventType)
}

func loginDeps(r *recorder, verifyErr error, issued Issued, issueErr error) LoginDeps {
	return LoginDeps{
		Verify: func(context.Context, string, string) (Subject, error) {
			if verifyErr != nil {
				return Subject{}, verifyErr
			}
			return Subject{UserID: "u1", Email: "a@x.com", Verified: true}, nil
		},
		Issue: func(context.Context, Subject) (Issued, error) {
			return issued, issueErr
		},
		IsUnverified:  func(err error) bool { return errors.Is(err, errUnverif) },
		IsAuthFailure: func(err error) bool { return errors.Is(err, errAuthFail) },
		MetricInc:     r.inc,
		EmitAudit:     r.audit,
		Metrics: LoginMetrics{
			LoginSuccess:    mLoginSuccess,
			LoginFailure:    mLoginFailure,
			LoginUnverified: mLoginUnverified,
			LoginThrottled:  mLoginThrottled,
			TokenIssued:     mTokenIssued,
			SessionCreated:  mSessionCreated,
		},
		Events: LoginEvents{
			LoginSuccess:   "login_success",
			LoginFailure:   "login_failure",
			SessionCreated: "session_created",
		},
		Errors: LoginErrors{EngineNotReady: errNotReady, AuthenticationFailed: errAuthFail, Throttled: errThrottled},
	}
}

type throttleRecorder struct {
	allow    bool
	failures []string
	resets   []string
}

func (tr *throttleRecorder) hooks() LoginThrottle {
	return LoginThrottle{
		Allow:   func(context.Context, string) bool { return tr.allow },
		Failure: func(_ context.Context, u string) { tr.failures = append(tr.failures, u) },
		Reset:   func(_ context.Context, u string) { tr.resets = append(tr.resets, u) },
	}
}

func TestRunLoginTokenSuccess(t *testing.T) {
	r := newRecorder()
	exp := time.Unix(1700003600, 0)
	subject, issued, err := RunLogin(context.Background(), "a@x.com", "pw", loginDeps(r, nil, Issued{Value: "tok", ExpiresAt: exp}, nil))
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if subject.UserID != "u1" || issued.Value != "tok" || !issued.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected result %+v %+v", subject, issued)
	}
	if r.metrics[mLoginSuccess] != 1 || r.metrics[mTokenIssued] != 1 || r.metrics[mSessionCreated] != 0 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
	if len(r.events) != 1 || r.events[0] != "login_success" {
		t.Fatalf("unexpected events %v", r.events)
	}
}

func TestRunLoginSessionSuccess(t *testing.T) {
	r := newRecorder()
	_, _, err := RunLogin(context.Background(), "a@x.com", "pw", loginDeps(r, nil, Issued{Value: "sid", Session: true}, nil))
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if r.metrics[mSessionCreated] != 1 || r.metrics[mTokenIssued] != 0 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
	if len(r.events) != 2 || r.events[0] != "session_created" || r.events[1] != "login_success" {
		t.Fatalf("unexpected events %v", r.events)
	}
}

func TestRunLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		verifyErr  error
		issueErr   error
		wantErr    error
		wantMetric int
	}{
		{name: "missing username", username: " ", password: "pw", wantErr: errAuthFail, wantMetric: mLoginFailure},
		{name: "missing password", username: "a@x.com", wantErr: errAuthFail, wantMetric: mLoginFailure},
		{name: "bad credentials", username: "a@x.com", password: "pw", verifyErr: errAuthFail, wantErr: errAuthFail, wantMetric: mLoginFailure},
		{name: "unverified", username: "a@x.com", password: "pw", verifyErr: errUnverif, wantErr: errUnverif, wantMetric: mLoginUnverified},
		{name: "backend", username: "a@x.com", password: "pw", verifyErr: errBackend, wantErr: errBackend},
		{name: "issue failure", username: "a@x.com", password: "pw", issueErr: errStoreDown, wantErr: errStoreDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			_, issued, err := RunLogin(context.Background(), tt.username, tt.password, loginDeps(r, tt.verifyErr, Issued{Value: "tok"}, tt.issueErr))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if issued.Value != "" {
				t.Fatalf("credential leaked on failure: %+v", issued)
			}
			if tt.wantMetric != 0 && r.metrics[tt.wantMetric] != 1 {
				t.Fatalf("expected metric %d, got %v", tt.wantMetric, r.metrics)
			}
			if r.metrics[mLoginSuccess] != 0 {
				t.Fatalf("success counted on failure")
			}
			if len(r.events) != 1 || r.events[0] != "login_failure" {
				t.Fatalf("unexpected events %v", r.events)
			}
		})
	}
}

func TestRunLoginThrottle(t *testing.T) {
	t.Run("blocked before verify", func(t *testing.T) {
		r := newRecorder()
		tr := &throttleRecorder{allow: false}
		deps := loginDeps(r, nil, Issued{Value: "tok"}, nil)
		verified := false
		deps.Verify = func(context.Context, string, string) (Subject, error) {
			verified = true
			return Subject{UserID: "u1"}, nil
		}
		deps.Throttle = tr.hooks()

		_, _, err := RunLogin(context.Background(), "a@x.com", "pw", deps)
		if !errors.Is(err, errThrottled) {
			t.Fatalf("expected throttled, got %v", err)
		}
		if verified {
			t.Fatal("Verify ran while throttled")
		}
		if r.metrics[mLoginThrottled] != 1 || r.metrics[mLoginFailure] != 0 {
			t.Fatalf("unexpected metrics %v", r.metrics)
		}
		if len(r.events) != 1 || r.events[0] != "login_failure" {
			t.Fatalf("unexpected events %v", r.events)
		}
	})

	t.Run("bad password counts a failure", func(t *testing.T) {
		tr := &throttleRecorder{allow: true}
		deps := loginDeps(newRecorder(), errAuthFail, Issued{}, nil)
		deps.Throttle = tr.hooks()

		_, _, _ = RunLogin(context.Background(), "a@x.com", "pw", deps)
		if len(tr.failures) != 1 || tr.failures[0] != "a@x.com" || len(tr.resets) != 0 {
			t.Fatalf("failures=%v resets=%v", tr.failures, tr.resets)
		}
	})

	t.Run("unverified and backend errors do not count", func(t *testing.T) {
		for _, verifyErr := range []error{errUnverif, errBackend} {
			tr := &throttleRecorder{allow: true}
			deps := loginDeps(newRecorder(), verifyErr, Issued{}, nil)
			deps.Throttle = tr.hooks()

			_, _, _ = RunLogin(context.Background(), "a@x.com", "pw", deps)
			if len(tr.failures) != 0 {
				t.Fatalf("%v: failures=%v", verifyErr, tr.failures)
			}
		}
	})

	t.Run("success resets", func(t *testing.T) {
		tr := &throttleRecorder{allow: true}
		deps := loginDeps(newRecorder(), nil, Issued{Value: "tok"}, nil)
		deps.Throttle = tr.hooks()

		if _, _, err := RunLogin(context.Background(), "a@x.com", "pw", deps); err != nil {
			t.Fatalf("RunLogin: %v", err)
		}
		if len(tr.resets) != 1 || len(tr.failures) != 0 {
			t.Fatalf("failures=%v resets=%v", tr.failures, tr.resets)
		}
	})
}

func TestRunLoginMissingDeps(t *testing.T) {
	_, _, err := RunLogin(context.Background(), "u", "p", LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func logoutDeps(r *recorder, session bool, teardownErr error) LogoutDeps {
	return LogoutDeps{
		Teardown:  func(context.Context, string) error { return teardownErr },
		Session:   session,
		MetricInc: r.inc,
		EmitAudit: r.audit,
		Metrics:   LogoutMetrics{Logout: mLogout, SessionDestroyed: mDestroyed, SessionDestroyFailed: mDestroyFailed},
		Events:    LogoutEvents{Logout: "logout", SessionDestroyFailed: "session_destroy_failed"},
		Errors:    LogoutErrors{EngineNotReady: errNotReady},
	}
}

func TestRunLogout(t *testing.T) {
	r := newRecorder()
	if err := RunLogout(context.Background(), "sid", logoutDeps(r, true, nil)); err != nil {
		t.Fatalf("RunLogout: %v", err)
	}
	if r.metrics[mLogout] != 1 || r.metrics[mDestroyed] != 1 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}

	r = newRecorder()
	if err := RunLogout(context.Background(), "tok", logoutDeps(r, false, nil)); err != nil {
		t.Fatalf("RunLogout: %v", err)
	}
	if r.metrics[mDestroyed] != 0 {
		t.Fatalf("token logout counted a session destroy")
	}
}

func TestRunLogoutSwallowsStoreFailure(t *testing.T) {
	r := newRecorder()
	var warned bool
	deps := logoutDeps(r, true, errStoreDown)
	deps.Warn = func(string, ...any) { warned = true }

	if err := RunLogout(context.Background(), "sid", deps); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !warned {
		t.Fatalf("expected warning")
	}
	if r.metrics[mDestroyFailed] != 1 || r.metrics[mDestroyed] != 0 {
		t.Fatalf("unexpected metrics %v", r.metrics)
	}
	if len(r.events) != 1 || r.events[0] != "session_destroy_failed" {
		t.Fatalf("unexpected events %v", r.events)
	}
}

func authDeps(r *recorder, verifyErr error, observed *time.Duration) AuthenticateDeps {
	now := time.Unix(1700000000, 0)
	return AuthenticateDeps{
		Verify: func(context.Context, string) (Subject, error) {
			now = now.Add(3 * time.Millisecond)
			if verifyErr != nil {
				return Subject{}, verifyErr
			}
			return Subject{UserID: "u1"}, nil
		},
		IsRejection: func(err error) bool { return errors.Is(err, errRejected) },
		Now:         func() time.Time { return now },
		Observe:     func(d time.Duration) { *observed = d },
		MetricInc:   r.inc,
		EmitAudit:   r.audit,
		Metrics:     AuthenticateMetrics{Success: mAuthOK, Rejected: mAuthRejected, Error: mAuthError},
		Events:      AuthenticateEvents{GuardReject: "guard_reject"},
		Errors:      AuthenticateErrors{EngineNotReady: errNotReady},
	}
}

func TestRunAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		verifyErr  error
		wantMetric int
		wantEvents int
	}{
		{name: "admitted", credential: "c", wantMetric: mAuthOK},
		{name: "rejected with credential", credential: "c", verifyErr: errRejected, wantMetric: mAuthRejected, wantEvents: 1},
		{name: "rejected anonymous", verifyErr: errRejected, wantMetric: mAuthRejected},
		{name: "backend", credential: "c", verifyErr: errBackend, wantMetric: mAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			var observed time.Duration
			subject, err := RunAuthenticate(context.Background(), tt.credential, authDeps(r, tt.verifyErr, &observed))
			if !errors.Is(err, tt.verifyErr) {
				t.Fatalf("expected %v, got %v", tt.verifyErr, err)
			}
			if tt.verifyErr == nil && subject.UserID != "u1" {
				t.Fatalf("unexpected subject %+v", subject)
			}
			if observed != 3*time.Millisecond {
				t.Fatalf("expected 3ms latency, got %v", observed)
			}
			if r.metrics[tt.wantMetric] != 1 {
				t.Fatalf("expected metric %d, got %v", tt.wantMetric, r.metrics)
			}
			if len(r.events) != tt.wantEvents {
				t.Fatalf("unexpected events %v", r.events)
			}
		})
	}
}

func TestRunAuthenticateCancelledContext(t *testing.T) {
	r := newRecorder()
	var observed time.Duration
	deps := authDeps(r, nil, &observed)
	called := false
	deps.Verify = func(context.Context, string) (Subject, error) {
		called = true
		return Subject{UserID: "u1"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := RunAuthenticate(ctx, "c", deps); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("verify ran on a cancelled context")
	}
	if len(r.metrics) != 0 {
		t.Fatalf("metrics recorded for cancelled request: %v", r.metrics)
	}
}
