// Package metrics exposes RealConsole's runtime counters through a
// Prometheus registry and /metrics-shaped HTTP handler (§6.6): LLM HTTP Base
// call/success/error/retry counts per provider, tool-loop iteration counts,
// and task executor stage/task counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/histogram RealConsole reports.
type Registry struct {
	reg *prometheus.Registry

	llmCalls   *prometheus.CounterVec
	llmSuccess *prometheus.CounterVec
	llmErrors  *prometheus.CounterVec
	llmRetries *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec

	toolLoopIterations prometheus.Histogram
	toolCalls          *prometheus.CounterVec
	toolErrors         *prometheus.CounterVec

	taskStages *prometheus.CounterVec
	taskTasks  *prometheus.CounterVec

	dispatchRoutes *prometheus.CounterVec
}

// New builds a Registry with every metric registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "llm", Name: "calls_total",
		Help: "Total LLM HTTP Base calls issued, by provider.",
	}, []string{"provider"})
	r.llmSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "llm", Name: "success_total",
		Help: "Total LLM HTTP Base calls that succeeded, by provider.",
	}, []string{"provider"})
	r.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "llm", Name: "errors_total",
		Help: "Total LLM HTTP Base calls that failed, by provider.",
	}, []string{"provider"})
	r.llmRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "llm", Name: "retries_total",
		Help: "Total retry attempts issued by the LLM HTTP Base, by provider.",
	}, []string{"provider"})
	r.llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realconsole", Subsystem: "llm", Name: "call_duration_seconds",
		Help:    "LLM HTTP Base call duration in seconds, by provider.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"provider"})

	r.toolLoopIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "realconsole", Subsystem: "tools", Name: "loop_iterations",
		Help:    "Number of iterations the tool-calling loop ran per turn.",
		Buckets: prometheus.LinearBuckets(1, 1, 5),
	})
	r.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "tools", Name: "calls_total",
		Help: "Total tool invocations, by tool name.",
	}, []string{"tool"})
	r.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "tools", Name: "errors_total",
		Help: "Total tool invocation errors, by tool name.",
	}, []string{"tool"})

	r.taskStages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "task", Name: "stages_total",
		Help: "Total execution-plan stages run, by mode (Sequential/Parallel).",
	}, []string{"mode"})
	r.taskTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "task", Name: "subtasks_total",
		Help: "Total subtasks run, by terminal status.",
	}, []string{"status"})

	r.dispatchRoutes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realconsole", Subsystem: "dispatch", Name: "routes_total",
		Help: "Total dispatched lines, by route taken.",
	}, []string{"route"})

	r.reg.MustRegister(
		r.llmCalls, r.llmSuccess, r.llmErrors, r.llmRetries, r.llmLatency,
		r.toolLoopIterations, r.toolCalls, r.toolErrors,
		r.taskStages, r.taskTasks,
		r.dispatchRoutes,
	)
	return r
}

// RecordLLMCall records one HTTP Base call outcome and its latency.
func (r *Registry) RecordLLMCall(provider string, success bool, retries int, d time.Duration) {
	if r == nil {
		return
	}
	r.llmCalls.WithLabelValues(provider).Inc()
	r.llmLatency.WithLabelValues(provider).Observe(d.Seconds())
	if success {
		r.llmSuccess.WithLabelValues(provider).Inc()
	} else {
		r.llmErrors.WithLabelValues(provider).Inc()
	}
	if retries > 0 {
		r.llmRetries.WithLabelValues(provider).Add(float64(retries))
	}
}

// RecordToolLoopIterations records how many iterations a tool-calling turn
// took to settle.
func (r *Registry) RecordToolLoopIterations(n int) {
	if r == nil {
		return
	}
	r.toolLoopIterations.Observe(float64(n))
}

// RecordToolCall records one tool invocation outcome.
func (r *Registry) RecordToolCall(tool string, err error) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool).Inc()
	if err != nil {
		r.toolErrors.WithLabelValues(tool).Inc()
	}
}

// RecordTaskStage records one execution-plan stage running under mode.
func (r *Registry) RecordTaskStage(mode string) {
	if r == nil {
		return
	}
	r.taskStages.WithLabelValues(mode).Inc()
}

// RecordTaskResult records one subtask's terminal status.
func (r *Registry) RecordTaskResult(status string) {
	if r == nil {
		return
	}
	r.taskTasks.WithLabelValues(status).Inc()
}

// RecordDispatchRoute records one dispatched line's route.
func (r *Registry) RecordDispatchRoute(route string) {
	if r == nil {
		return
	}
	r.dispatchRoutes.WithLabelValues(route).Inc()
}

// Handler serves the registry in Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
