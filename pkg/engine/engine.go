package engine

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BYTE-6D65/driftsync/pkg/clock"
	"github.com/BYTE-6D65/driftsync/pkg/combine"
	"github.com/BYTE-6D65/driftsync/pkg/dtd"
	"github.com/BYTE-6D65/driftsync/pkg/emitter"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/logging"
	"github.com/BYTE-6D65/driftsync/pkg/segment"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
	"github.com/BYTE-6D65/driftsync/pkg/statemachine"
	"github.com/BYTE-6D65/driftsync/pkg/telemetry"
)

// Engine runs pairwise drift synchronization jobs.
// It provides dependency injection for clock, logger, metrics and the
// diagnostics log shared by every run.
type Engine struct {
	cfg         Config
	clock       clock.Clock
	logger      *logging.Logger
	metrics     *telemetry.Metrics
	diagnostics *event.DiagnosticLog
	recorder    *RunRecorder
}

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithClock sets the clock used to time runs.
func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDiagnostics sets the diagnostics log collecting every run's diagnostics.
func WithDiagnostics(d *event.DiagnosticLog) EngineOption {
	return func(e *Engine) {
		e.diagnostics = d
	}
}

// WithRecorder sets the run history recorder.
func WithRecorder(r *RunRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// New creates a new Engine with sensible defaults.
// Default configuration:
// - Clock: SystemClock (monotonic)
// - Logger: discards everything
// - Metrics: registered on the default Prometheus registry
// - Diagnostics: DiagnosticLog with the default limit
// - Recorder: keeps the last 32 runs
func New(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:         cfg,
		clock:       clock.NewSystemClock(),
		logger:      logging.Discard(),
		diagnostics: event.NewDiagnosticLog(0),
		recorder:    NewRunRecorder(32),
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = telemetry.Default()
	}
	e.logger = e.logger.With("engine")

	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Clock returns the clock implementation.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Diagnostics returns the engine-wide diagnostics log.
func (e *Engine) Diagnostics() *event.DiagnosticLog {
	return e.diagnostics
}

// History returns the run recorder.
func (e *Engine) History() *RunRecorder {
	return e.recorder
}

// ChannelResult holds every intermediate artifact of one channel.
type ChannelResult struct {
	Config   ChannelConfig
	Samples  []dtd.Sample
	Series   dtd.Series
	Segments []segment.Segment
	Outcomes []spline.Outcome
	Estimate spline.Estimate
}

// Missing returns the number of samples without a match.
func (c *ChannelResult) Missing() int {
	return dtd.CountMissing(c.Samples)
}

// Result is the outcome of one pairwise run.
type Result struct {
	RunID        string
	Started      time.Time
	Elapsed      time.Duration
	Base         string
	Receiver     string
	Channels     []ChannelResult
	Timeline     combine.Timeline
	Verification []dtd.Residual
	Diagnostics  []event.Diagnostic
	Summary      []event.CodeCount

	// Stages is the run's stage history, ending in done.
	Stages []statemachine.Record
}

// Truer returns the timestamp corrector for one of the run's receivers. The
// base receiver maps onto itself.
func (r *Result) Truer(receiver string) (clock.Truer, error) {
	switch receiver {
	case r.Base:
		return clock.NewIdentityTruer(), nil
	case r.Receiver:
		return r.Timeline.Truer(), nil
	}
	return nil, fmt.Errorf("receiver %s is not part of run %s", receiver, r.RunID)
}

// Stats summarizes the synchronized timeline.
func (r *Result) Stats() combine.Stats {
	return r.Timeline.Stats()
}

// Artifacts converts the result into the form emitters persist.
func (r *Result) Artifacts(cfg *Config) *emitter.Artifacts {
	a := &emitter.Artifacts{
		RunID:        r.RunID,
		Created:      r.Started,
		Base:         r.Base,
		Receiver:     r.Receiver,
		Timeline:     r.Timeline,
		Stats:        r.Timeline.Stats(),
		Verification: r.Verification,
		Diagnostics:  r.Summary,
	}
	if cfg != nil {
		a.Config = cfg.Echo()
	}
	for _, ch := range r.Channels {
		a.Channels = append(a.Channels, emitter.ChannelArtifacts{
			Name:        ch.Config.Name,
			Transmitter: ch.Config.Transmitter,
			Samples:     ch.Samples,
			Series:      ch.Series,
			Outcomes:    ch.Outcomes,
			Estimate:    ch.Estimate,
		})
	}
	return a
}

// Run synchronizes the receiver log onto the base log.
//
// The two channels run concurrently; segments within a channel are fitted by
// a bounded worker pool. Only invalid configuration, mismatched logs and
// cancellation return an error: data problems become diagnostics.
func (e *Engine) Run(ctx context.Context, base, rec event.Log) (*Result, error) {
	start := e.clock.Now()
	res, err := e.run(ctx, base, rec)
	if err != nil {
		recordRun(e.metrics, err)
		e.recorder.Record(e.recorder.Capture(&e.cfg, nil, err))
		e.logger.Error("run failed: %v", err)
		return nil, err
	}
	res.Elapsed = e.clock.Since(start)
	recordRun(e.metrics, nil)
	e.recorder.Record(e.recorder.Capture(&e.cfg, res, nil))
	e.logger.Info("run %s done in %v: %d rows, %d diagnostics", res.RunID, res.Elapsed, len(res.Timeline), len(res.Diagnostics))
	return res, nil
}

func (e *Engine) run(ctx context.Context, base, rec event.Log) (*Result, error) {
	cfg := e.cfg
	cfg.Channels = slices.Clone(e.cfg.Channels)
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base.Receiver() != cfg.BaseReceiver {
		return nil, fmt.Errorf("%w: base log is from %s, want %s", ErrInvalidConfig, base.Receiver(), cfg.BaseReceiver)
	}
	if rec.Receiver() != cfg.Receiver {
		return nil, fmt.Errorf("%w: receiver log is from %s, want %s", ErrInvalidConfig, rec.Receiver(), cfg.Receiver)
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Started:  time.Now().UTC(),
		Base:     cfg.BaseReceiver,
		Receiver: cfg.Receiver,
		Channels: make([]ChannelResult, len(cfg.Channels)),
	}
	log := e.logger.With(res.RunID[:8])
	log.Info("sync %s onto %s: %d/%d detections", cfg.Receiver, cfg.BaseReceiver, rec.Len(), base.Len())

	diags := event.NewDiagnosticLog(0)
	diags.OnRecord(func(d event.Diagnostic) {
		e.diagnostics.Record(d)
		e.metrics.Diagnostics.WithLabelValues(d.Code).Inc()
		log.Debug("%s", d)
	})

	warnUnheard(log, cfg.Channels, base, rec)

	from, to, _ := cfg.CheckPeriod()
	matchBase, matchRec := base.Between(from, to), rec.Between(from, to)
	target := rec.Timestamps()

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	mono := e.clock.Now()
	lc := statemachine.NewRunLifecycle(func() bool { return cfg.Verify }).
		WithClock(func() time.Time { return res.Started.Add(e.clock.Since(mono)) })
	lc.OnTransition(func(_ context.Context, r statemachine.Record) {
		log.Debug("stage %s -> %s", r.From, r.To)
	})
	advance := func(ev statemachine.Event) error {
		err := lc.Trigger(ctx, ev)
		if err != nil {
			log.Debug("stage %s: %s not applied: %v", lc.Current(), ev, err)
		}
		return err
	}
	abort := func(err error) error {
		advance(statemachine.EventAbort)
		return fmt.Errorf("run cancelled: %w", err)
	}
	advance(statemachine.EventStart)

	var wg sync.WaitGroup
	for i, ch := range cfg.Channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Channels[i] = e.runChannel(ctx, ch, cfg, matchBase, matchRec, target, workers, diags, log)
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, abort(err)
	}
	advance(statemachine.EventFitted)

	timer := telemetry.NewTimer()
	res.Timeline = combine.Combine(res.Channels[0].Estimate, res.Channels[1].Estimate, rec.Detections())
	timer.ObserveStage(e.metrics, "combine")
	for _, row := range res.Timeline.Missing() {
		diags.Record(event.NewDiagnostic(event.DebugSeverity, event.CodeMissingOffsetAtRow, "combine",
			"no offset for timeline row").
			WithAt(row.Timestamp).
			WithContext("transmitter", row.Transmitter))
	}
	recordTimeline(e.metrics, res.Timeline.Stats())
	stats := res.Timeline.Stats()
	log.Info("combined %d rows: %d direct, %d interpolated, %d missing", stats.Rows, stats.Direct, stats.Interpolated, stats.Missing)

	if advance(statemachine.EventCombined) == nil {
		if err := ctx.Err(); err != nil {
			return nil, abort(err)
		}
		timer = telemetry.NewTimer()
		res.Verification = Verify(base, res.Timeline, cfg.Channels, cfg.Match.TimeMargin, cfg.Smoothing.Disabled)
		timer.ObserveStage(e.metrics, "verify")
		for _, v := range res.Verification {
			log.Info("verify %s: n=%d mean=%.6fs std=%.6fs max=%.6fs", v.Channel, v.Matched, v.Mean, v.Std, v.MaxAbs)
		}
	}

	advance(statemachine.EventFinish)

	res.Diagnostics = diags.All()
	res.Summary = diags.Summary()
	res.Stages = lc.History()
	return res, nil
}

// warnUnheard logs channel transmitters missing from either log. Such a
// channel yields no matches.
func warnUnheard(log *logging.Logger, channels []ChannelConfig, logs ...event.Log) {
	for _, l := range logs {
		heard := l.Transmitters()
		for _, ch := range channels {
			if !slices.Contains(heard, ch.Transmitter) {
				log.Warn("channel %s: transmitter %s not heard by %s", ch.Name, ch.Transmitter, l.Receiver())
			}
		}
	}
}

func (e *Engine) runChannel(ctx context.Context, ch ChannelConfig, cfg Config, base, rec event.Log, target []time.Time, workers int, diags *event.DiagnosticLog, log *logging.Logger) ChannelResult {
	out := ChannelResult{Config: ch}
	log = log.With(ch.Name)

	timer := telemetry.NewTimer()
	observed := rec.ByTransmitter(ch.Transmitter)
	out.Samples = dtd.MatchLogs(observed, base.ByTransmitter(ch.Transmitter), cfg.Match.TimeMargin)
	timer.ObserveStage(e.metrics, "match")
	for _, s := range out.Samples {
		if !s.Valid {
			diags.Record(event.NewDiagnostic(event.WarningSeverity, event.CodeNoMatchInWindow, "matcher",
				fmt.Sprintf("no %s detection at base within %s", ch.Transmitter, cfg.Match.TimeMargin)).
				WithChannel(ch.Name).
				WithAt(s.Timestamp))
		}
	}
	missing := out.Missing()
	recordSamples(e.metrics, ch.Name, len(out.Samples), missing)
	log.Info("matched %d samples, %d missing", len(out.Samples), missing)
	if ctx.Err() != nil {
		return out
	}

	timer = telemetry.NewTimer()
	if cfg.Smoothing.Disabled {
		out.Series = dtd.Passthrough(out.Samples)
	} else {
		out.Series = dtd.Smooth(out.Samples, ch.OutlierLim, ch.WindowSize)
	}
	timer.ObserveStage(e.metrics, "smooth")

	timer = telemetry.NewTimer()
	out.Segments = segment.Split(out.Series)
	timer.ObserveStage(e.metrics, "segment")
	log.Info("%d smoothed values in %d segments", out.Series.ValidCount(), len(out.Segments))
	if ctx.Err() != nil {
		return out
	}

	timer = telemetry.NewTimer()
	out.Estimate, out.Outcomes = spline.Model(out.Segments, target, ch.Degree, ch.SmoothingFactor, workers)
	timer.ObserveStage(e.metrics, "model")
	for _, o := range out.Outcomes {
		e.metrics.Segments.WithLabelValues(ch.Name, string(o.Status)).Inc()
		log.Debug("segment %d: %d points %s..%s %s knots=%d fp=%g", o.Segment, o.Points,
			o.From.Format(time.RFC3339), o.To.Format(time.RFC3339), o.Status, o.Knots, o.Residual)

		code := ""
		switch o.Status {
		case spline.StatusInsufficient:
			code = event.CodeInsufficientSegmentData
		case spline.StatusDegenerate, spline.StatusInvalid:
			code = event.CodeDegenerateFit
		default:
			continue
		}
		diags.Record(event.NewDiagnostic(event.WarningSeverity, code, "modeler",
			fmt.Sprintf("segment %d with %d points not fitted: %s", o.Segment, o.Points, o.Err)).
			WithChannel(ch.Name).
			WithAt(o.From).
			WithContext("segment", o.Segment).
			WithContext("points", o.Points))
	}
	log.Info("estimated %d offsets", len(out.Estimate))

	return out
}

// Verify re-matches each channel using the synced receiver timestamps and
// summarizes the remaining DTD. A good synchronization leaves residuals
// centred on zero, up to the propagation delay between the stations.
func Verify(base event.Log, timeline combine.Timeline, channels []ChannelConfig, margin time.Duration, smoothingDisabled bool) []dtd.Residual {
	out := make([]dtd.Residual, 0, len(channels))
	for _, ch := range channels {
		var synced []time.Time
		for _, row := range timeline {
			if row.SyncedValid && row.Transmitter == ch.Transmitter {
				synced = append(synced, row.Synced)
			}
		}
		sort.Slice(synced, func(i, j int) bool { return synced[i].Before(synced[j]) })

		samples := dtd.Match(synced, base.ByTransmitter(ch.Transmitter).Timestamps(), margin)
		var series dtd.Series
		if smoothingDisabled {
			series = dtd.Passthrough(samples)
		} else {
			series = dtd.Smooth(samples, ch.OutlierLim, ch.WindowSize)
		}
		out = append(out, dtd.Summarize(ch.Name, series))
	}
	return out
}
