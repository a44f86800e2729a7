package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMonitor backs the Monitor contract with a Prometheus registry.
// Operation names become labels rather than metric names so the cardinality
// stays bounded by the ten pipeline stages.
type PrometheusMonitor struct {
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	operationsInFlight prometheus.Gauge

	counters   *prometheus.CounterVec
	gauges     *prometheus.GaugeVec
	histograms *prometheus.HistogramVec
}

func NewPrometheusMonitor(reg prometheus.Registerer) *PrometheusMonitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMonitor{
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docforge_operations_total",
			Help: "Total pipeline operations by name and status",
		}, []string{"operation", "status"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docforge_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		operationsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docforge_operations_in_flight",
			Help: "Operations currently running",
		}),
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docforge_metric_total",
			Help: "Named counter metrics emitted by the pipeline",
		}, []string{"metric"}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "docforge_metric_value",
			Help: "Named gauge metrics emitted by the pipeline",
		}, []string{"metric"}),
		histograms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docforge_metric_observations",
			Help:    "Named histogram/timer metrics emitted by the pipeline",
			Buckets: prometheus.DefBuckets,
		}, []string{"metric"}),
	}
}

func (m *PrometheusMonitor) StartOperation(name string, labels map[string]string) OperationHandle {
	m.operationsInFlight.Inc()
	return OperationHandle{Name: name, Labels: labels, Started: time.Now()}
}

func (m *PrometheusMonitor) CompleteOperation(handle OperationHandle, success bool, err error) {
	m.operationsInFlight.Dec()
	status := "success"
	if !success || err != nil {
		status = "failure"
	}
	m.operationsTotal.WithLabelValues(handle.Name, status).Inc()
	m.operationDuration.WithLabelValues(handle.Name).Observe(time.Since(handle.Started).Seconds())
}

func (m *PrometheusMonitor) RecordMetric(name string, value float64, kind MetricKind, _ map[string]string) {
	switch kind {
	case Counter:
		m.counters.WithLabelValues(name).Add(value)
	case Gauge:
		m.gauges.WithLabelValues(name).Set(value)
	case Histogram, Timer:
		m.histograms.WithLabelValues(name).Observe(value)
	}
}
