// Package metrics owns the Prometheus collectors for jobs, text service calls and HTTP traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpmetrics "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/kiranshivaraju/researchmate/internal/textgen"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

const namespace = "researchmate"

// Metrics holds every collector on its own registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	http     middleware.Middleware

	jobsSubmitted  *prometheus.CounterVec
	jobsRejected   prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	jobsRunning    prometheus.Gauge
	jobDuration    *prometheus.HistogramVec
	textgenLatency *prometheus.HistogramVec
	textgenErrors  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted for execution.",
		}, []string{"pipeline"}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Jobs refused because the work queue was full.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"pipeline", "status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Jobs currently executing a pipeline.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from running to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 3, 8),
		}, []string{"pipeline", "status"}),
		textgenLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "textgen_request_duration_seconds",
			Help:      "Latency of text service completions.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 8),
		}, []string{"provider", "outcome"}),
		textgenErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textgen_errors_total",
			Help:      "Failed text service completions by kind.",
		}, []string{"provider", "kind"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
		m.jobsSubmitted,
		m.jobsRejected,
		m.jobsFinished,
		m.jobsRunning,
		m.jobDuration,
		m.textgenLatency,
		m.textgenErrors,
	)

	m.http = middleware.New(middleware.Config{
		Recorder: httpmetrics.NewRecorder(httpmetrics.Config{
			Prefix:   namespace,
			Registry: reg,
		}),
	})

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPMiddleware records request metrics under a fixed handler id, keeping
// job ids in paths out of the label set.
func (m *Metrics) HTTPMiddleware(handlerID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return std.Handler(handlerID, m.http, next)
	}
}

func (m *Metrics) JobSubmitted(pipeline string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) JobRejected() {
	if m == nil {
		return
	}
	m.jobsRejected.Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsRunning.Inc()
}

// JobFinished records a terminal status for a job that was started.
func (m *Metrics) JobFinished(pipeline, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
	m.jobsFinished.WithLabelValues(pipeline, status).Inc()
	m.jobDuration.WithLabelValues(pipeline, status).Observe(elapsed.Seconds())
}

// InstrumentTextGenerator wraps gen so every completion is timed and its errors counted.
func (m *Metrics) InstrumentTextGenerator(gen models.TextGenerator) models.TextGenerator {
	if m == nil {
		return gen
	}
	return &instrumented{next: gen, m: m}
}

type instrumented struct {
	next models.TextGenerator
	m    *Metrics
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Complete(ctx context.Context, prompt string, params models.GenerationParams) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, prompt, params)

	outcome := "success"
	if err != nil {
		outcome = "error"
		i.m.textgenErrors.WithLabelValues(i.next.Name(), errorKind(err)).Inc()
	}
	i.m.textgenLatency.WithLabelValues(i.next.Name(), outcome).Observe(time.Since(start).Seconds())
	return out, err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, textgen.ErrInferenceTimeout):
		return "timeout"
	case errors.Is(err, textgen.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, textgen.ErrInvalidResponse):
		return "invalid_response"
	default:
		return "other"
	}
}
