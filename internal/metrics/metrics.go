// Package metrics collects viewer activity on a private Prometheus registry.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Render outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds all viewer metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Completions dropped because a newer cycle superseded them
	StaleDiscarded atomic.Uint64
	// Frames composed for callers
	FramesComposed atomic.Uint64
	// Render cycles started
	CyclesStarted atomic.Uint64

	renders     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	loadSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance whose metric names carry namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Render attempts by path and outcome",
		}, []string{"path", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_phase_transitions_total",
			Help:      "Load state machine transitions",
		}, []string{"from", "to"}),
		loadSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_load_seconds",
			Help:      "Time to fetch, decode and draw an image",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"path"}),
	}

	m.registry.MustRegister(m.renders, m.transitions, m.loadSeconds)
	m.registerGauges(namespace)

	return m
}

func (m *Metrics) registerGauges(namespace string) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_completions_total",
			Help:      "Load completions discarded because their cycle was superseded",
		},
		func() float64 { return float64(m.StaleDiscarded.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frames_composed_total",
			Help:      "Viewport frames composed",
		},
		func() float64 { return float64(m.FramesComposed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_cycles_total",
			Help:      "Render cycles started",
		},
		func() float64 { return float64(m.CyclesStarted.Load()) },
	))
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RenderOutcome counts one draw on path ("raster", "overlay").
func (m *Metrics) RenderOutcome(path, outcome string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(path, outcome).Inc()
}

// Transition counts one load phase change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveLoad records how long path took from request to drawn surface.
func (m *Metrics) ObserveLoad(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.loadSeconds.WithLabelValues(path).Observe(d.Seconds())
}

// Stale counts one discarded completion.
func (m *Metrics) Stale() {
	if m == nil {
		return
	}
	m.StaleDiscarded.Add(1)
}

// Composed counts one composed frame.
func (m *Metrics) Composed() {
	if m == nil {
		return
	}
	m.FramesComposed.Add(1)
}

// CycleStarted counts one render cycle.
func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.CyclesStarted.Add(1)
}

// Snapshot flattens the registry into name{labels} -> value. Histograms
// contribute _count and _sum entries.
func (m *Metrics) Snapshot() (map[string]float64, error) {
	out := make(map[string]float64)
	if m == nil {
		return out, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			pairs := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(pairs)
			key := mf.GetName()
			if len(pairs) > 0 {
				key += "{" + strings.Join(pairs, ",") + "}"
			}

			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				out[suffixed(key, "_count")] = float64(h.GetSampleCount())
				out[suffixed(key, "_sum")] = h.GetSampleSum()
			}
		}
	}

	return out, nil
}

// suffixed inserts suffix after the metric name, before any labels.
func suffixed(key, suffix string) string {
	if i := strings.IndexByte(key, '{'); i >= 0 {
		return key[:i] + suffix + key[i:]
	}
	return key + suffix
}
