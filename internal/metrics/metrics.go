package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchpay_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WatchReports считает сообщения о просмотрах по итогу: ok, duplicate, incomplete, error.
	WatchReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpay_watch_reports_total",
			Help: "Watch reports by outcome",
		},
		[]string{"outcome"},
	)

	// CreditsIssued суммирует начисления по типу (watch_credit, referral_bonus).
	CreditsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpay_credits_issued_total",
			Help: "Total amount credited to balances",
		},
		[]string{"type"},
	)

	// Withdrawals считает операции с заявками: requested, approved, rejected.
	Withdrawals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchpay_withdrawals_total",
			Help: "Withdrawal state machine transitions",
		},
		[]string{"action"},
	)
)
