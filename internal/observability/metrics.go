package observability

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeConflict    = "conflict"
	OutcomeNotFound    = "not_found"
	OutcomeMismatch    = "mismatch"
	OutcomeExpired     = "expired"
	OutcomeNotVerified = "not_verified"
	OutcomeError       = "error"
)

// AuthAttempts counts signup, verify and signin calls by outcome.
var AuthAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otpauth_auth_attempts_total",
		Help: "Total number of authentication flow operations",
	},
	[]string{"operation", "outcome"},
)

// OTPDeliveries counts OTP email delivery attempts by outcome.
var OTPDeliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otpauth_otp_deliveries_total",
		Help: "Total number of OTP email deliveries",
	},
	[]string{"outcome"},
)

// PurgedRecords counts rows removed by the cleanup job.
var PurgedRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "otpauth_purged_records_total",
		Help: "Total number of expired records removed by cleanup",
	},
	[]string{"kind"},
)

// RegisterMetrics registers all service metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthAttempts)
	reg.MustRegister(OTPDeliveries)
	reg.MustRegister(PurgedRecords)
}

func RecordAuthAttempt(operation, outcome string) {
	AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

func RecordDelivery(outcome string) {
	OTPDeliveries.WithLabelValues(outcome).Inc()
}

func RecordPurge(kind string, n int64) {
	if n > 0 {
		PurgedRecords.WithLabelValues(kind).Add(float64(n))
	}
}
