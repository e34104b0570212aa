package metrics

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "btprof"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	events           *prom.CounterVec
	spans            *prom.GaugeVec
	moduleDuration   *prom.GaugeVec
	phaseDuration    *prom.GaugeVec
	goalDuration     *prom.GaugeVec
	transferDuration *prom.GaugeVec
	transferBytes    *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the profiler metrics. A nil
// registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Orchestrator events by type and engine outcome",
		}, []string{"type", "outcome"}),
		spans: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "span_seconds",
			Help:      "Wall time of the discovery, session and fork spans",
		}, []string{"span"}),
		moduleDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "module_duration_seconds",
			Help:      "Wall time per module",
		}, []string{"module"}),
		phaseDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Goal time per lifecycle phase summed across modules",
		}, []string{"phase"}),
		goalDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "goal_duration_seconds",
			Help:      "Goal time per phase and plugin goal summed across modules",
		}, []string{"phase", "goal"}),
		transferDuration: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Total transfer time by kind and operation",
		}, []string{"kind", "op"}),
		transferBytes: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "transfer_bytes",
			Help:      "Total transferred bytes by kind and operation",
		}, []string{"kind", "op"}),
	}
	reg.MustRegister(pr.events, pr.spans, pr.moduleDuration, pr.phaseDuration,
		pr.goalDuration, pr.transferDuration, pr.transferBytes)
	return pr
}

// Registry returns the registry the metrics are registered with
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) IncEvent(eventType string, outcome Outcome) {
	p.events.WithLabelValues(eventType, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveSpan(span string, d time.Duration) {
	p.spans.WithLabelValues(span).Set(d.Seconds())
}

func (p *PrometheusRecorder) SetModuleDuration(module string, d time.Duration) {
	p.moduleDuration.WithLabelValues(module).Set(d.Seconds())
}

func (p *PrometheusRecorder) SetPhaseDuration(phase string, d time.Duration) {
	p.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

func (p *PrometheusRecorder) SetGoalDuration(phase, goal string, d time.Duration) {
	p.goalDuration.WithLabelValues(phase, goal).Set(d.Seconds())
}

func (p *PrometheusRecorder) SetTransferTotals(kind, op string, d time.Duration, bytes int64) {
	p.transferDuration.WithLabelValues(kind, op).Set(d.Seconds())
	p.transferBytes.WithLabelValues(kind, op).Set(float64(bytes))
}

// HTTPHandler serves the registry in the Prometheus exposition format
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// WriteText encodes every gathered family in the text exposition format
func WriteText(g prom.Gatherer, w io.Writer) error {
	metricFamilies, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextFile writes the metrics for a node_exporter textfile collector.
// The file is replaced atomically so the collector never reads a partial write.
func WriteTextFile(g prom.Gatherer, path string) error {
	var buf bytes.Buffer
	if err := WriteText(g, &buf); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
