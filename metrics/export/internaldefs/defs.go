package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Logins rejected for unknown user or wrong password."},
	{ID: authgate.MetricLoginUnverified, Name: "authgate_login_unverified_total", Help: "Logins rejected because the account is not verified."},
	{ID: authgate.MetricLoginThrottled, Name: "authgate_login_throttled_total", Help: "Logins refused because the attempt budget was spent."},
	{ID: authgate.MetricTokenIssued, Name: "authgate_token_issued_total", Help: "Signed tokens issued."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Sessions created."},
	{ID: authgate.MetricSessionDestroyed, Name: "authgate_session_destroyed_total", Help: "Sessions destroyed at logout."},
	{ID: authgate.MetricSessionDestroyFailed, Name: "authgate_session_destroy_failed_total", Help: "Logout session deletes that failed."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout requests."},
	{ID: authgate.MetricAuthenticateSuccess, Name: "authgate_authenticate_success_total", Help: "Requests admitted by the guard."},
	{ID: authgate.MetricAuthenticateRejected, Name: "authgate_authenticate_rejected_total", Help: "Requests rejected by the guard with 401."},
	{ID: authgate.MetricAuthenticateError, Name: "authgate_authenticate_error_total", Help: "Guard decisions that failed on a backend."},
}

var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricAuthenticateLatency, Name: "authgate_authenticate_latency_seconds", Help: "Guard decision latency."},
}

// HistogramUpperBounds are in seconds. The last bucket is +Inf and is not
// listed.
var HistogramUpperBounds = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}

var HistogramBoundSuffix = []string{
	"0_001",
	"0_0025",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

const AuditDroppedName = "authgate_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

func NormalizeBuckets(raw []uint64) [authgate.HistogramBucketCount]uint64 {
	var out [authgate.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [authgate.HistogramBucketCount]uint64) [authgate.HistogramBucketCount]uint64 {
	var out [authgate.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
