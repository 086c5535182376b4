// Package metrics holds the Prometheus collectors of the automation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the engine collectors around their own prometheus registry.
type Registry struct {
	Gatherer prometheus.Gatherer

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActionsTotal      *prometheus.CounterVec
	ActiveExecutions  prometheus.Gauge
	NotificationsSent *prometheus.CounterVec
	HistoryFailures   prometheus.Counter
}

// NewRegistry creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Registry{
		Gatherer: reg,
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_workflow_executions_total",
				Help: "Total number of finished workflow executions",
			},
			[]string{"trigger", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskflow_workflow_execution_duration_seconds",
				Help:    "Duration of workflow executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_actions_total",
				Help: "Total number of executed actions by type and status",
			},
			[]string{"type", "status"},
		),
		ActiveExecutions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskflow_active_executions",
				Help: "Number of workflow executions currently running",
			},
		),
		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_notifications_total",
				Help: "Total number of notification deliveries by result",
			},
			[]string{"result"},
		),
		HistoryFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "taskflow_history_append_failures_total",
				Help: "Total number of finished executions that could not be stored in the history",
			},
		),
	}
}

// ObserveExecution records a finished execution.
func (r *Registry) ObserveExecution(trigger, status string, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.ExecutionsTotal.WithLabelValues(trigger, status).Inc()
	r.ExecutionDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

// ObserveAction records one action outcome.
func (r *Registry) ObserveAction(actionType, status string) {
	if r == nil {
		return
	}

	r.ActionsTotal.WithLabelValues(actionType, status).Inc()
}

// ObserveNotification records one notification delivery attempt.
func (r *Registry) ObserveNotification(delivered bool) {
	if r == nil {
		return
	}

	result := "delivered"
	if !delivered {
		result = "failed"
	}

	r.NotificationsSent.WithLabelValues(result).Inc()
}

// ObserveHistoryFailure records an execution lost from the history.
func (r *Registry) ObserveHistoryFailure() {
	if r != nil {
		r.HistoryFailures.Inc()
	}
}

// ExecutionStarted and ExecutionFinished track the running executions gauge.
func (r *Registry) ExecutionStarted() {
	if r != nil {
		r.ActiveExecutions.Inc()
	}
}

func (r *Registry) ExecutionFinished() {
	if r != nil {
		r.ActiveExecutions.Dec()
	}
}
