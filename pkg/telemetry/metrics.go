package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for task and pipeline execution.
// All recording methods are no-ops on a nil or disabled instance.
type Metrics struct {
	config MetricsConfig

	tasksStarted    *prometheus.CounterVec
	tasksCompleted  *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	taskRetries     *prometheus.CounterVec
	pipelinesActive prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
// A disabled configuration yields a no-op instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		tasksStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_started_total",
				Help:      "Total number of task attempts started",
			},
			[]string{"kind"},
		),
		tasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_completed_total",
				Help:      "Total number of task attempts completed",
			},
			[]string{"kind", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of task execution in seconds",
				Buckets: []float64{
					0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600, 14400,
				},
			},
			[]string{"kind"},
		),
		taskRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_retries_total",
				Help:      "Total number of task retry attempts",
			},
			[]string{"kind"},
		),
		pipelinesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipelines_active",
				Help:      "Number of pipeline runs currently executing",
			},
		),
	}

	registry.MustRegister(
		m.tasksStarted,
		m.tasksCompleted,
		m.taskDuration,
		m.taskRetries,
		m.pipelinesActive,
	)

	return m
}

// TaskStarted records the start of a task attempt.
func (m *Metrics) TaskStarted(kind string) {
	if m == nil || m.tasksStarted == nil {
		return
	}
	m.tasksStarted.WithLabelValues(kind).Inc()
}

// TaskCompleted records a completed attempt with its terminal status and
// duration.
func (m *Metrics) TaskCompleted(kind, status string, seconds float64) {
	if m == nil || m.tasksCompleted == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(kind, status).Inc()
	m.taskDuration.WithLabelValues(kind).Observe(seconds)
}

// TaskRetried records one retry attempt.
func (m *Metrics) TaskRetried(kind string) {
	if m == nil || m.taskRetries == nil {
		return
	}
	m.taskRetries.WithLabelValues(kind).Inc()
}

// PipelineStarted marks a pipeline run as active.
func (m *Metrics) PipelineStarted() {
	if m == nil || m.pipelinesActive == nil {
		return
	}
	m.pipelinesActive.Inc()
}

// PipelineFinished marks a pipeline run as finished.
func (m *Metrics) PipelineFinished() {
	if m == nil || m.pipelinesActive == nil {
		return
	}
	m.pipelinesActive.Dec()
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics HTTP listener until the context is canceled.
// It returns immediately when no listen address is configured.
func (m *Metrics) Serve(ctx context.Context) error {
	if m == nil || m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	srv := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
