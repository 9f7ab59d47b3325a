// Package metrics exposes Prometheus metrics of roster operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roster"

// Collector records roster operation metrics. Methods of the nil Collector
// do nothing.
type Collector struct {
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	busy     prometheus.Gauge
	students prometheus.Gauge
}

// NewCollector creates Collector and registers its metrics in reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_started_total",
			Help:      "Total number of operations started",
		}, []string{"operation"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_finished_total",
			Help:      "Total number of finished operations by result",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of executed operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
		}, []string{"operation"}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy",
			Help:      "Whether an operation is in flight",
		}),
		students: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students",
			Help:      "Number of students in the last fetched roster",
		}),
	}

	reg.MustRegister(c.started, c.finished, c.duration, c.busy, c.students)

	return c
}

// OperationStarted records the start of the operation.
func (c *Collector) OperationStarted(op string) {
	if c == nil {
		return
	}
	c.started.WithLabelValues(op).Inc()
}

// OperationFinished records the operation result. Result "none" means
// success. Operations rejected before start have zero duration and are not
// observed in the duration histogram.
func (c *Collector) OperationFinished(op string, result string, d time.Duration) {
	if c == nil {
		return
	}
	if result == "none" {
		result = "success"
	}
	c.finished.WithLabelValues(op, result).Inc()
	if d > 0 {
		c.duration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetBusy sets the in-flight flag.
func (c *Collector) SetBusy(busy bool) {
	if c == nil {
		return
	}
	if busy {
		c.busy.Set(1)
	} else {
		c.busy.Set(0)
	}
}

// SetRosterSize sets the number of students.
func (c *Collector) SetRosterSize(n int) {
	if c == nil {
		return
	}
	c.students.Set(float64(n))
}
