package latency

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter adapts a Monitor's percentiles and violation counters into
// Prometheus gauges/counters, polled by a prometheus.Gatherer on scrape.
type Exporter struct {
	monitor *Monitor

	phaseGauge      *prometheus.GaugeVec
	violationsTotal *prometheus.CounterVec
	nonMonotonic    prometheus.Counter

	lastViolationCount int
	lastNonMonotonic   int64
}

// NewExporter registers gauges/counters for monitor against reg and
// returns the exporter. Callers typically register one Exporter per
// process against prometheus.DefaultRegisterer or a dedicated registry
// handed to an http.Handler via promhttp.
func NewExporter(monitor *Monitor, reg prometheus.Registerer) *Exporter {
	e := &Exporter{
		monitor: monitor,
		phaseGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: "latency",
			Name:      "phase_nanoseconds",
			Help:      "Admission phase latency percentiles, in nanoseconds.",
		}, []string{"phase", "stat"}),
		violationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "latency",
			Name:      "threshold_violations_total",
			Help:      "Count of admissions whose phase duration exceeded its configured threshold.",
		}, []string{"phase"}),
		nonMonotonic: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: "latency",
			Name:      "non_monotonic_timelines_total",
			Help:      "Count of admission timelines whose checkpoints were not strictly non-decreasing.",
		}),
	}
	reg.MustRegister(e.phaseGauge, e.violationsTotal, e.nonMonotonic)
	return e
}

var phasesByName = map[string]func(*Monitor) Percentiles{
	"e2e":       (*Monitor).E2E,
	"lock_wait": (*Monitor).LockWait,
	"matching":  (*Monitor).Matching,
	"execution": (*Monitor).Execution,
	"audit":     (*Monitor).Audit,
}

// Refresh pulls the current percentile snapshot out of the monitor and
// sets the exported gauges. Call this on each Prometheus scrape (wire it
// into a prometheus.Collector.Collect, or call it from a short-lived
// background ticker before serving /metrics).
func (e *Exporter) Refresh() {
	for phase, fn := range phasesByName {
		p := fn(e.monitor)
		e.phaseGauge.WithLabelValues(phase, "p50").Set(float64(p.P50))
		e.phaseGauge.WithLabelValues(phase, "p95").Set(float64(p.P95))
		e.phaseGauge.WithLabelValues(phase, "p99").Set(float64(p.P99))
		e.phaseGauge.WithLabelValues(phase, "p999").Set(float64(p.P999))
		e.phaseGauge.WithLabelValues(phase, "min").Set(float64(p.Min))
		e.phaseGauge.WithLabelValues(phase, "mean").Set(float64(p.Mean))
		e.phaseGauge.WithLabelValues(phase, "max").Set(float64(p.Max))
	}

	// The violation log is a bounded ring buffer, so we can't sum it
	// directly into a monotonic counter; instead every newly observed
	// violation (by log growth since the last scrape) advances the
	// per-phase counter once.
	violations := e.monitor.Violations()
	if len(violations) > e.lastViolationCount {
		for _, v := range violations[e.lastViolationCount:] {
			e.violationsTotal.WithLabelValues(v.Phase).Inc()
		}
		e.lastViolationCount = len(violations)
	}

	if n := e.monitor.NonMonotonicCount(); n > e.lastNonMonotonic {
		e.nonMonotonic.Add(float64(n - e.lastNonMonotonic))
		e.lastNonMonotonic = n
	}
}
