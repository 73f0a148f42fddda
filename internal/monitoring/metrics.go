package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the directory service. Each instance
// registers into its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// directory
	DirectoryOperations *prometheus.CounterVec
	DirectorySize       *prometheus.GaugeVec

	// credentials
	AuthAttempts       *prometheus.CounterVec
	CredentialDuration *prometheus.HistogramVec

	// errors and limits
	ErrorsTotal     *prometheus.CounterVec
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics creates the collectors in a fresh registry that also carries the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		DirectoryOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmail_directory_operations_total",
				Help: "Directory write operations by operation and result",
			},
			[]string{"operation", "result"},
		),

		DirectorySize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vmail_directory_records",
				Help: "Number of directory records by kind, as of the last listing",
			},
			[]string{"kind"},
		),

		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmail_auth_attempts_total",
				Help: "Credential checks by result",
			},
			[]string{"result"},
		),

		CredentialDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vmail_credential_duration_seconds",
				Help:    "Time spent generating or verifying a credential",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"operation"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmail_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vmail_rate_limit_blocks_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limit_type"},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOperation records a directory operation outcome.
func (m *Metrics) RecordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.DirectoryOperations.WithLabelValues(operation, result).Inc()
}

// RecordAuthAttempt records a credential check result such as "success" or "failure".
func (m *Metrics) RecordAuthAttempt(result string) {
	m.AuthAttempts.WithLabelValues(result).Inc()
}

// RecordCredentialDuration records the time one digest computation took.
func (m *Metrics) RecordCredentialDuration(operation string, d time.Duration) {
	m.CredentialDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// UpdateDirectorySize sets the record gauges.
func (m *Metrics) UpdateDirectorySize(domains, mailUsers, aliases int) {
	m.DirectorySize.WithLabelValues("domains").Set(float64(domains))
	m.DirectorySize.WithLabelValues("mail_users").Set(float64(mailUsers))
	m.DirectorySize.WithLabelValues("aliases").Set(float64(aliases))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic records a recovered panic.
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock records a rejected request.
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
