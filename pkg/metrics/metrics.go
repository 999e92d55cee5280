// Package metrics provides Prometheus-based metrics recording for runs,
// LLM requests, and tool executions.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records operational metrics.
type Recorder struct {
	llmRequests    *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
}

// NewRecorder creates a recorder registered against the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlforge_llm_requests_total",
				Help: "Total number of LLM requests by agent, model, and status",
			},
			[]string{"agent", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlforge_llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"agent", "model", "type"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlforge_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "model"},
		),
		toolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlforge_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlforge_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlforge_runs_total",
				Help: "Total number of runs by pipeline and outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlforge_run_duration_seconds",
				Help:    "Duration of runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"pipeline"},
		),
	}
}

//nolint:gochecknoglobals // Default recorder is shared process-wide
var (
	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// Default returns the recorder registered against the default Prometheus
// registry, creating it on first use.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// ObserveLLMRequest records one completed LLM request.
func (r *Recorder) ObserveLLMRequest(agent, model string, promptTokens, completionTokens int, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.llmRequests.WithLabelValues(agent, model, status).Inc()
	if success {
		r.llmTokens.WithLabelValues(agent, model, "prompt").Add(float64(promptTokens))
		r.llmTokens.WithLabelValues(agent, model, "completion").Add(float64(completionTokens))
	}
	r.llmDuration.WithLabelValues(agent, model).Observe(duration.Seconds())
}

// ObserveTool records one tool execution.
func (r *Recorder) ObserveTool(tool string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.toolExecutions.WithLabelValues(tool, status).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(pipeline, outcome string, duration time.Duration) {
	r.runsTotal.WithLabelValues(pipeline, outcome).Inc()
	r.runDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}
