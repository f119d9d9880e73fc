// Package metrics holds the process's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "homelab_monitor"

var (
	AlertsTriggered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "alerts_triggered_total",
		Help:      "Alerts created by the rule engine, by severity.",
	}, []string{"severity"})

	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "evaluations_total",
		Help:      "Evaluation jobs processed, by outcome.",
	}, []string{"outcome"})

	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "evaluation_duration_seconds",
		Help:      "Time spent evaluating one metric type for one host.",
		Buckets:   prometheus.DefBuckets,
	})

	QueueRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "queue_rejected_total",
		Help:      "Evaluation jobs rejected because the queue was full.",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "queue_depth",
		Help:      "Evaluation jobs waiting for a worker.",
	})

	RuleCacheRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "rule_cache_refreshes_total",
		Help:      "Rule cache refresh attempts, by result.",
	}, []string{"result"})

	RuleCacheRules = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "rule_cache_rules",
		Help:      "Compiled rules in the current snapshot.",
	})

	CooldownEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "alerting",
		Name:      "cooldown_entries",
		Help:      "Tracked (rule, host) cooldown entries.",
	})

	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "connections",
		Help:      "Open live-update connections.",
	})

	WSMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "messages_sent_total",
		Help:      "Messages queued to connections, by message type.",
	}, []string{"type"})

	WSSendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "send_failures_total",
		Help:      "Sends that failed and caused the connection to be dropped.",
	})

	MetricsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "metrics_total",
		Help:      "Metric rows stored, by metric type and source.",
	}, []string{"metric_type", "source"})
)

func init() {
	prometheus.MustRegister(
		AlertsTriggered,
		Evaluations,
		EvaluationDuration,
		QueueRejected,
		QueueDepth,
		RuleCacheRefreshes,
		RuleCacheRules,
		CooldownEntries,
		WSConnections,
		WSMessagesSent,
		WSSendFailures,
		MetricsIngested,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
