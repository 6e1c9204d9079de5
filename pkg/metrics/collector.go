// Package metrics implements the Prometheus collectors for the
// worker-pool and MCP-client health gauges/counters (spec §5 concurrency
// model, observability surface): queue depth, active sessions, worker
// status, and MCP tool-call latency/count/error.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry, rather than registering against the
// global default one, so a process can build more than one (tests, or a
// future multi-pod-in-one-process harness) without a duplicate
// registration panic.
type Collector struct {
	registry *prometheus.Registry

	queueDepth     prometheus.Gauge
	activeSessions prometheus.Gauge
	activeWorkers  prometheus.Gauge
	totalWorkers   prometheus.Gauge

	sessionsProcessed *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
}

// New builds a Collector with all metrics registered against its own
// registry.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Number of sessions currently pending processing.",
	})
	c.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "active_sessions",
		Help:      "Number of sessions currently in_progress across this pod.",
	})
	c.activeWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "active_workers",
		Help:      "Number of workers currently processing a session.",
	})
	c.totalWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "total_workers",
		Help:      "Number of workers configured for this pod.",
	})
	c.sessionsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "sessions_processed_total",
		Help:      "Total number of sessions a worker finished processing, by terminal status.",
	}, []string{"status"})
	c.sessionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tarsy",
		Subsystem: "queue",
		Name:      "session_duration_seconds",
		Help:      "Wall-clock time a worker spent running one session to completion or pause.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})

	c.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tarsy",
		Subsystem: "mcp",
		Name:      "tool_calls_total",
		Help:      "Total number of MCP tool calls, by server, tool and outcome.",
	}, []string{"server", "tool", "status"})
	c.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tarsy",
		Subsystem: "mcp",
		Name:      "tool_call_duration_seconds",
		Help:      "MCP tool call latency in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"server", "tool"})

	c.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tarsy",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of LLM generate calls, by provider and outcome.",
	}, []string{"provider", "status"})
	c.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tarsy",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM generate call latency in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	c.registry.MustRegister(
		c.queueDepth, c.activeSessions, c.activeWorkers, c.totalWorkers,
		c.sessionsProcessed, c.sessionDuration,
		c.toolCalls, c.toolCallDuration,
		c.llmCalls, c.llmCallDuration,
	)
	return c
}

// Handler serves this collector's registry in the Prometheus text
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetPoolHealth updates the queue/worker gauges. Called by
// pkg/queue.WorkerPool.Health.
func (c *Collector) SetPoolHealth(queueDepth, activeSessions, activeWorkers, totalWorkers int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(queueDepth))
	c.activeSessions.Set(float64(activeSessions))
	c.activeWorkers.Set(float64(activeWorkers))
	c.totalWorkers.Set(float64(totalWorkers))
}

// ObserveSessionProcessed records one worker finishing a session, keyed by
// its terminal (or paused) status.
func (c *Collector) ObserveSessionProcessed(status string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.sessionsProcessed.WithLabelValues(status).Inc()
	c.sessionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// ObserveToolCall records one MCP tool call's outcome and latency.
func (c *Collector) ObserveToolCall(server, tool, status string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(server, tool, status).Inc()
	c.toolCallDuration.WithLabelValues(server, tool).Observe(durationSeconds)
}

// ObserveLLMCall records one LLM generate call's outcome and latency.
func (c *Collector) ObserveLLMCall(provider, status string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.llmCalls.WithLabelValues(provider, status).Inc()
	c.llmCallDuration.WithLabelValues(provider).Observe(durationSeconds)
}
