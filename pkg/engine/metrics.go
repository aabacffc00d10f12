package engine

import (
	"github.com/BYTE-6D65/driftsync/pkg/combine"
	"github.com/BYTE-6D65/driftsync/pkg/telemetry"
)

func recordRun(metrics *telemetry.Metrics, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.Runs.WithLabelValues(status).Inc()
}

func recordSamples(metrics *telemetry.Metrics, channel string, total, missing int) {
	if metrics == nil {
		return
	}
	metrics.Samples.WithLabelValues(channel, "matched").Add(float64(total - missing))
	metrics.Samples.WithLabelValues(channel, "missing").Add(float64(missing))
}

func recordTimeline(metrics *telemetry.Metrics, stats combine.Stats) {
	if metrics == nil {
		return
	}
	metrics.TimelineRows.WithLabelValues("direct").Add(float64(stats.Direct))
	metrics.TimelineRows.WithLabelValues("interpolated").Add(float64(stats.Interpolated))
	metrics.TimelineRows.WithLabelValues("missing").Add(float64(stats.Missing))
}
