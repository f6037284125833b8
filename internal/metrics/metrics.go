package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admin_auth"

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Admin login attempts by outcome.",
	}, []string{"outcome"})

	IPBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ip_blocks_total",
		Help:      "IPs that crossed the failed login threshold.",
	})

	TwoFactorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "two_factor_failures_total",
		Help:      "Rejected two-factor codes.",
	})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Expired admin sessions removed by the cleanup sweep.",
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Audit log entries that could not be persisted.",
	})
)

const (
	OutcomeSuccess = "success"
	OutcomeStep1   = "password_ok"
	OutcomeFailed  = "failed"
	OutcomeBlocked = "blocked"
)
