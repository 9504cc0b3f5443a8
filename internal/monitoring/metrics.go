// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/docnav/internal/navigator"
)

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace string            `json:"namespace"`
	Subsystem string            `json:"subsystem"`
	Labels    map[string]string `json:"labels"`

	// EnableGoMetrics adds the Go runtime and process collectors when the
	// manager owns its registry
	EnableGoMetrics bool `json:"enable_go_metrics"`
}

// MetricsManager manages Prometheus metrics for navigation outcomes. It
// implements navigator.Recorder, so one manager can be shared by every
// resolver in the process.
type MetricsManager struct {
	requestsTotal      *prometheus.CounterVec
	strategyAttempts   *prometheus.CounterVec
	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	uiSimulations      *prometheus.CounterVec
	verificationPolls  *prometheus.HistogramVec
	sessionsActive     prometheus.Gauge

	registry *prometheus.Registry
	gatherer prometheus.Gatherer
}

var _ navigator.Recorder = (*MetricsManager)(nil)

// NewMetricsManager creates a metrics manager with its own registry
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	reg := prometheus.NewRegistry()
	if config.EnableGoMetrics {
		reg.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	}
	mm := NewMetricsManagerWith(config, reg)
	mm.registry = reg
	return mm
}

// NewMetricsManagerWith registers the metrics on a caller-supplied registerer
func NewMetricsManagerWith(config MetricsConfig, reg prometheus.Registerer) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "docnav"
	}
	if config.Subsystem == "" {
		config.Subsystem = "navigator"
	}
	mm := &MetricsManager{gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		mm.gatherer = g
	}
	if len(config.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(config.Labels, reg)
	}

	factory := promauto.With(reg)

	mm.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Navigation requests by disposition (dispatched, queued, rejected, dropped)",
		},
		[]string{"disposition"},
	)

	mm.strategyAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "strategy_attempts_total",
			Help:      "Strategy attempts by strategy name and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	mm.resolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "resolutions_total",
			Help:      "Completed resolution sequences by result",
		},
		[]string{"result"},
	)

	mm.resolutionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a navigation target",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	mm.uiSimulations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "ui_simulations_total",
			Help:      "UI-simulation fallbacks by result",
		},
		[]string{"result"},
	)

	mm.verificationPolls = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "verification_polls",
			Help:      "Polls spent per verification",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"matched"},
	)

	mm.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "sessions_active",
			Help:      "Open viewer sessions",
		},
	)

	return mm
}

// NavigationRequested counts a NavigateToPage call
func (mm *MetricsManager) NavigationRequested(disposition string) {
	mm.requestsTotal.WithLabelValues(disposition).Inc()
}

// StrategyAttempted counts a strategy attempt
func (mm *MetricsManager) StrategyAttempted(strategy string, outcome navigator.Outcome) {
	mm.strategyAttempts.WithLabelValues(strategy, outcome.String()).Inc()
}

// VerificationPolled observes the polls spent on one verification
func (mm *MetricsManager) VerificationPolled(polls int, matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	mm.verificationPolls.WithLabelValues(label).Observe(float64(polls))
}

// Simulated counts a UI-simulation fallback
func (mm *MetricsManager) Simulated(err error) {
	mm.uiSimulations.WithLabelValues(resultLabel(err == nil)).Inc()
}

// Resolved records the end of a resolution sequence
func (mm *MetricsManager) Resolved(success bool, d time.Duration) {
	mm.resolutionsTotal.WithLabelValues(resultLabel(success)).Inc()
	mm.resolutionDuration.Observe(d.Seconds())
}

// SessionOpened increments the open session gauge
func (mm *MetricsManager) SessionOpened() { mm.sessionsActive.Inc() }

// SessionClosed decrements the open session gauge
func (mm *MetricsManager) SessionClosed() { mm.sessionsActive.Dec() }

// Handler returns the HTTP handler exposing the metrics
func (mm *MetricsManager) Handler() http.Handler {
	if mm.registry != nil {
		return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
	}
	return promhttp.HandlerFor(mm.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry backing Handler
func (mm *MetricsManager) Gatherer() prometheus.Gatherer {
	return mm.gatherer
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
