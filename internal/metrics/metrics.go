// Package metrics exposes Prometheus collectors for store operations.
//
// Collectors live on a private registry so several stores (tests, tools)
// can coexist in one process without duplicate registration panics.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "healthstore"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector records operation counts, latencies and row volumes.
type Collector struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

// New returns a collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by name and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows written, read or deleted by operation.",
		}, []string{"op"}),
	}
	c.registry.MustRegister(c.ops, c.latency, c.rows)
	return c
}

// Registry returns the private registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records one finished operation. A nil collector is a no-op.
func (c *Collector) Observe(op string, started time.Time, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.ops.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// AddRows counts rows touched by op.
func (c *Collector) AddRows(op string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rows.WithLabelValues(op).Add(float64(n))
}

// Count returns the operations_total value for op and outcome.
func (c *Collector) Count(op, outcome string) float64 {
	return c.value(namespace+"_operations_total", map[string]string{"op": op, "outcome": outcome})
}

// Rows returns the rows_total value for op.
func (c *Collector) Rows(op string) float64 {
	return c.value(namespace+"_rows_total", map[string]string{"op": op})
}

func (c *Collector) value(name string, labels map[string]string) float64 {
	if c == nil {
		return 0
	}
	families, err := c.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		want, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != want {
			return false
		}
		found++
	}
	return found == len(labels)
}

// WriteText renders counters and histogram summaries, one line per series,
// sorted by name.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			series := mf.GetName() + formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", series, m.GetCounter().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count%s %d", mf.GetName(), formatLabels(m.GetLabel()), h.GetSampleCount()),
					fmt.Sprintf("%s_sum%s %g", mf.GetName(), formatLabels(m.GetLabel()), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, lp := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
