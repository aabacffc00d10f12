package telemetry

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds all Prometheus metrics of a synchronization run.
type Metrics struct {
	// Stage Metrics
	Samples      *prometheus.CounterVec
	Segments     *prometheus.CounterVec
	StageSeconds *prometheus.HistogramVec

	// Output Metrics
	TimelineRows *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	Diagnostics  *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
)

// InitMetrics initializes the Prometheus metrics on the given registerer.
// This should be called once per registry.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	// Stage durations range from sub-millisecond matching of small logs to
	// minutes for fitting long recordings.
	stageBuckets := prometheus.ExponentialBuckets(0.0005, 4, 10)

	m := &Metrics{
		Samples: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftsync_samples_total",
				Help: "DTD samples produced per channel, by match result",
			},
			[]string{"channel", "result"},
		),

		Segments: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftsync_segments_total",
				Help: "Drift segments per channel, by fit outcome",
			},
			[]string{"channel", "outcome"},
		),

		StageSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftsync_stage_duration_seconds",
				Help:    "Time taken by each pipeline stage",
				Buckets: stageBuckets,
			},
			[]string{"stage"},
		),

		TimelineRows: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftsync_timeline_rows_total",
				Help: "Synchronized timeline rows, by how the offset was obtained",
			},
			[]string{"result"},
		),

		Runs: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftsync_runs_total",
				Help: "Pairwise synchronization runs, by status",
			},
			[]string{"status"},
		),

		Diagnostics: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftsync_diagnostics_total",
				Help: "Recorded diagnostics, by code",
			},
			[]string{"code"},
		),
	}

	defaultMetrics = m
	return m
}

// Default returns the default metrics instance.
// If InitMetrics hasn't been called, it will initialize with the default registry.
func Default() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics(nil)
	}
	return defaultMetrics
}

// WriteText writes all gathered metrics in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("telemetry: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("telemetry: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextFile writes the text format to path, for batch runs without a
// scrape endpoint.
func WriteTextFile(path string, g prometheus.Gatherer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteText(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CounterValue returns the value of a counter family member with the given
// label values, or 0 when absent. Used for run summaries.
func CounterValue(g prometheus.Gatherer, name string, labels map[string]string) float64 {
	families, err := g.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				total += m.GetCounter().GetValue()
			}
		}
		return total
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if want != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Observe records the elapsed time in seconds to the given histogram.
func (t *Timer) Observe(histogram prometheus.Observer) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveStage records the elapsed time under the stage label.
func (t *Timer) ObserveStage(m *Metrics, stage string) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
