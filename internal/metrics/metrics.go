// Package metrics holds the Prometheus collectors shared by the service and
// HTTP layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeep_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filekeep_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthEvents counts workflow outcomes: register, login, verify,
	// reset_request, reset_confirm.
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeep_auth_events_total",
			Help: "Authentication workflow outcomes.",
		},
		[]string{"event", "result"},
	)

	FileOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeep_file_operations_total",
			Help: "File operations by kind and result.",
		},
		[]string{"operation", "result"},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filekeep_upload_bytes_total",
			Help: "Bytes accepted by successful uploads.",
		},
	)

	Emails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filekeep_emails_total",
			Help: "Outgoing emails by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
