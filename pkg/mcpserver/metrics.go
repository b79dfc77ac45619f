package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsReadTimeout     = 5 * time.Second
	metricsWriteTimeout    = 10 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

// Metrics collects per-tool counters and optionally exposes them over
// HTTP for Prometheus scraping. Collection always happens; the endpoint
// only runs after Serve.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	risksFound   *prometheus.CounterVec

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewMetrics creates the metric set on its own registry so the process
// default registry stays untouched.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apirisk_tool_calls_total",
			Help: "Total number of MCP tool invocations",
		},
		[]string{"tool", "status"},
	)

	m.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apirisk_tool_duration_seconds",
			Help:    "Tool execution time distribution in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"tool"},
	)

	m.risksFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apirisk_risks_detected_total",
			Help: "Total number of risks emitted by detection and aggregation",
		},
		[]string{"severity"},
	)

	m.registry.MustRegister(m.toolCalls, m.toolDuration, m.risksFound)
	return m
}

// ObserveToolCall records one tool invocation with its outcome
// ("ok" or "error") and duration.
func (m *Metrics) ObserveToolCall(tool, status string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// AddRisks bumps the detected-risk counter for a severity level.
func (m *Metrics) AddRisks(severity string, n int) {
	if n <= 0 {
		return
	}
	m.risksFound.WithLabelValues(severity).Add(float64(n))
}

// Registry exposes the underlying registry for test scraping.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Serve starts the /metrics HTTP endpoint on addr in the background.
func (m *Metrics) Serve(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("metrics endpoint already running on %s", m.server.Addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	m.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  metricsReadTimeout,
		WriteTimeout: metricsWriteTimeout,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Default().Error("metrics server error", "err", err)
		}
	}()

	return nil
}

// Close shuts down the metrics endpoint if one is running.
func (m *Metrics) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.server == nil {
		m.closed = true
		return nil
	}
	m.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	return m.server.Shutdown(ctx)
}
