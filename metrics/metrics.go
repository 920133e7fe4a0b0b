// Package metrics defines the Prometheus collectors for pipeline runs and
// exports them for batch jobs through the node exporter textfile collector.
package metrics

import (
	"context"
	"time"

	"github.com/poiesic/reviewpipe/ai"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reviewpipe"

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RecordsProcessed  *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	BulkOutcomes      *prometheus.CounterVec
	ClassifierCalls   *prometheus.CounterVec
	ClassifierLatency prometheus.Histogram
	Runs              *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(
		m.RecordsProcessed,
		m.StageDuration,
		m.BulkOutcomes,
		m.ClassifierCalls,
		m.ClassifierLatency,
		m.Runs,
	)
	m.gatherer = reg
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_processed_total",
				Help:      "Records carried through a completed run, by variant.",
			},
			[]string{"variant"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage latency in seconds, by stage and result.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage", "result"},
		),
		BulkOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_outcomes_total",
				Help:      "Per-document bulk write outcomes by mode and status (succeeded, failed).",
			},
			[]string{"mode", "status"},
		),
		ClassifierCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_calls_total",
				Help:      "Sentiment classifier calls by result (ok, error) and label.",
			},
			[]string{"result", "label"},
		),
		ClassifierLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classifier_latency_seconds",
				Help:      "Sentiment classifier latency in seconds.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by variant and final state.",
			},
			[]string{"variant", "state"},
		),
	}
}

// Gatherer returns the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// WriteToTextfile writes the current values in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage, resultLabel(err)).Observe(elapsed.Seconds())
}

// ObserveRecords counts records of a completed run.
func (m *Metrics) ObserveRecords(variant string, n int) {
	m.RecordsProcessed.WithLabelValues(variant).Add(float64(n))
}

// ObserveBulk counts per-document bulk outcomes.
func (m *Metrics) ObserveBulk(mode string, succeeded, failed int) {
	m.BulkOutcomes.WithLabelValues(mode, "succeeded").Add(float64(succeeded))
	m.BulkOutcomes.WithLabelValues(mode, "failed").Add(float64(failed))
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(variant, state string) {
	m.Runs.WithLabelValues(variant, state).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// instrumented wraps a classifier with call metrics.
type instrumented struct {
	next    ai.TextClassifier
	metrics *Metrics
}

// InstrumentClassifier returns a classifier that records calls to next.
func (m *Metrics) InstrumentClassifier(next ai.TextClassifier) ai.TextClassifier {
	return &instrumented{next: next, metrics: m}
}

func (c *instrumented) Classify(ctx context.Context, text, language string) (ai.Label, error) {
	start := time.Now()
	label, err := c.next.Classify(ctx, text, language)
	c.metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	c.metrics.ClassifierCalls.WithLabelValues(resultLabel(err), string(label)).Inc()
	return label, err
}
