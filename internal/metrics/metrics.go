// Package metrics registers the Prometheus metrics for the usage
// governance service. Importing the package registers everything on the
// default registry before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitAllowed counts allowed limit checks by policy name.
	RateLimitAllowed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagegate_ratelimit_allowed_total",
			Help: "Total rate limit checks that returned allowed.",
		},
		[]string{"policy"},
	)

	// RateLimitDenied counts denied limit checks by policy name.
	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usagegate_ratelimit_denied_total",
			Help: "Total rate limit checks that returned denied.",
		},
		[]string{"policy"},
	)

	// RateLimitFailOpen counts checks that passed because the counter
	// store was unavailable.
	RateLimitFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_ratelimit_fail_open_total",
			Help: "Total rate limit checks that failed open on a store error.",
		},
	)

	// CreditDeductionsRejected counts deductions refused for insufficient
	// balance.
	CreditDeductionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_credit_deductions_rejected_total",
			Help: "Total credit deductions rejected for insufficient balance.",
		},
	)

	// CreditTenthsDeducted totals the credit units successfully deducted.
	CreditTenthsDeducted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usagegate_credit_units_deducted_total",
			Help: "Total credit units successfully deducted.",
		},
	)
)
