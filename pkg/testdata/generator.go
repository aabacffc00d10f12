package testdata

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/clock"
	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// TestScenario names a synthetic receiver-pair recording.
type TestScenario string

const (
	ScenarioLinear TestScenario = "linear"
	ScenarioJump   TestScenario = "jump"
	ScenarioSparse TestScenario = "sparse"
	ScenarioNoisy  TestScenario = "noisy"
)

// Window is a span of elapsed time since the scenario start.
type Window struct {
	From time.Duration
	To   time.Duration
}

func (w Window) contains(d time.Duration) bool {
	return d >= w.From && d < w.To
}

// Params are pipeline parameters suited to a scenario.
type Params struct {
	TimeMargin time.Duration
	OutlierLim float64
	Window     int
	Degree     int
	Smoothing  float64
}

// Expect holds the checks a correct pipeline passes on a scenario.
type Expect struct {
	Segments           int           // per channel
	MaxSyncError       time.Duration // on rows with a direct offset
	MaxMissingFraction float64       // unmatched DTD samples per channel
}

// Scenario describes a base receiver, a drifting receiver, a sync tag next to
// each, and an animal tag heard by the receiver only. Emissions happen on
// true time; the base clock is true time.
type Scenario struct {
	Name        TestScenario
	Description string

	Base, Receiver                  string
	BaseTag, ReceiverTag, AnimalTag string

	Start    time.Time
	Duration time.Duration

	// Sync tags emit every Period ± Spread; the animal tag every AnimalEvery ± Spread.
	Period      time.Duration
	Spread      time.Duration
	AnimalEvery time.Duration

	// Propagation is the travel time between the two stations.
	Propagation time.Duration

	// Drift is the receiver clock; Jitter is uniform timestamp noise on
	// every reception; Dropout is the loss probability per reception.
	Drift   *clock.DriftModel
	Jitter  time.Duration
	Dropout float64

	// Outages are spans where the receiver records nothing.
	Outages []Window

	Seed   int64
	Params Params
	Expect Expect
}

// Dataset is a generated recording with ground truth.
type Dataset struct {
	Scenario *Scenario
	Base     []event.Detection
	Receiver []event.Detection

	// Truth maps receiver-local Unix nanoseconds to the true reception time.
	Truth map[int64]time.Time
}

var scenarioStart = time.Date(2019, 2, 13, 0, 0, 0, 0, time.UTC)

func baseScenario(name TestScenario, description string) *Scenario {
	return &Scenario{
		Name:        name,
		Description: description,
		Base:        "461059",
		Receiver:    "461211",
		BaseTag:     "A69-1601-62059",
		ReceiverTag: "A69-1601-62211",
		AnimalTag:   "A69-9001-1234",
		Start:       scenarioStart,
		Duration:    6 * time.Hour,
		Period:      60 * time.Second,
		Spread:      10 * time.Second,
		AnimalEvery: 37 * time.Second,
		Propagation: 100 * time.Millisecond,
		Drift:       clock.NewDriftModel(scenarioStart, 200*time.Millisecond, 2e-5),
		Seed:        1,
		Params: Params{
			TimeMargin: 10 * time.Second,
			OutlierLim: 0.005,
			Window:     6,
			Degree:     3,
			Smoothing:  1e-4,
		},
		Expect: Expect{
			Segments:           1,
			MaxSyncError:       5 * time.Millisecond,
			MaxMissingFraction: 0,
		},
	}
}

// Linear is a receiver with constant offset and rate.
func Linear() *Scenario {
	return baseScenario(ScenarioLinear, "constant 20 ppm drift, clean detections")
}

// Jump adds a 0.5 s clock reset halfway through.
func Jump() *Scenario {
	s := baseScenario(ScenarioJump, "20 ppm drift with a +0.5 s clock reset at 3h")
	s.Drift.WithStep(3*time.Hour, 500*time.Millisecond)
	s.Seed = 2
	s.Expect.Segments = 2
	return s
}

// Sparse drops receptions at random and has a one hour receiver outage.
func Sparse() *Scenario {
	s := baseScenario(ScenarioSparse, "15% reception loss and a 1h receiver outage")
	s.Dropout = 0.15
	s.Outages = []Window{{From: 2 * time.Hour, To: 3 * time.Hour}}
	s.Seed = 3
	s.Params.Window = 3
	s.Expect.MaxMissingFraction = 0.35
	return s
}

// Noisy adds millisecond timestamp jitter to every reception.
func Noisy() *Scenario {
	s := baseScenario(ScenarioNoisy, "±2 ms reception jitter, 30 s sync period")
	s.Period = 30 * time.Second
	s.Spread = 5 * time.Second
	s.Jitter = 2 * time.Millisecond
	s.Seed = 4
	s.Params.OutlierLim = 0.01
	s.Params.Smoothing = 5e-4
	return s
}

// All returns every scenario name.
func All() []TestScenario {
	return []TestScenario{ScenarioLinear, ScenarioJump, ScenarioSparse, ScenarioNoisy}
}

// Get returns a fresh scenario by name.
func Get(name TestScenario) (*Scenario, error) {
	switch name {
	case ScenarioLinear:
		return Linear(), nil
	case ScenarioJump:
		return Jump(), nil
	case ScenarioSparse:
		return Sparse(), nil
	case ScenarioNoisy:
		return Noisy(), nil
	}
	return nil, fmt.Errorf("testdata: unknown scenario %q", name)
}

// Generate produces both receivers' detections, sorted per receiver.
// The output is deterministic for a given Seed.
func (s *Scenario) Generate() *Dataset {
	rng := rand.New(rand.NewSource(s.Seed))
	ds := &Dataset{Scenario: s, Truth: make(map[int64]time.Time)}

	jitter := func() time.Duration {
		if s.Jitter <= 0 {
			return 0
		}
		return time.Duration((rng.Float64()*2 - 1) * float64(s.Jitter))
	}
	lost := func() bool {
		return s.Dropout > 0 && rng.Float64() < s.Dropout
	}

	hearBase := func(tx string, trueRx time.Time) {
		if lost() {
			return
		}
		ds.Base = append(ds.Base, event.Detection{Receiver: s.Base, Transmitter: tx, Timestamp: trueRx.Add(jitter())})
	}
	hearReceiver := func(tx string, trueRx time.Time) {
		if lost() {
			return
		}
		elapsed := trueRx.Sub(s.Start)
		for _, w := range s.Outages {
			if w.contains(elapsed) {
				return
			}
		}
		local := s.Drift.Local(trueRx).Add(jitter())
		ds.Receiver = append(ds.Receiver, event.Detection{Receiver: s.Receiver, Transmitter: tx, Timestamp: local})
		ds.Truth[local.UnixNano()] = trueRx
	}

	for _, t := range s.schedule(rng, s.Period) {
		hearBase(s.BaseTag, t)
		hearReceiver(s.BaseTag, t.Add(s.Propagation))
	}
	for _, t := range s.schedule(rng, s.Period) {
		hearReceiver(s.ReceiverTag, t)
		hearBase(s.ReceiverTag, t.Add(s.Propagation))
	}
	for _, t := range s.schedule(rng, s.AnimalEvery) {
		hearReceiver(s.AnimalTag, t)
	}

	sortDetections(ds.Base)
	sortDetections(ds.Receiver)
	return ds
}

// schedule returns emission times with intervals of every ± Spread.
func (s *Scenario) schedule(rng *rand.Rand, every time.Duration) []time.Time {
	var out []time.Time
	end := s.Start.Add(s.Duration)
	t := s.Start.Add(time.Duration(rng.Float64() * float64(every)))
	for t.Before(end) {
		out = append(out, t)
		step := every
		if s.Spread > 0 {
			step += time.Duration((rng.Float64()*2 - 1) * float64(s.Spread))
		}
		t = t.Add(step)
	}
	return out
}

func sortDetections(d []event.Detection) {
	sort.SliceStable(d, func(i, j int) bool { return d[i].Timestamp.Before(d[j].Timestamp) })
}

// All returns both receivers' detections concatenated.
func (d *Dataset) All() []event.Detection {
	out := make([]event.Detection, 0, len(d.Base)+len(d.Receiver))
	out = append(out, d.Base...)
	return append(out, d.Receiver...)
}

// FormatScenario returns a human-readable summary of a scenario.
func FormatScenario(s *Scenario) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Scenario %s: %s\n", s.Name, s.Description))
	sb.WriteString(fmt.Sprintf("  Receivers:  base=%s receiver=%s\n", s.Base, s.Receiver))
	sb.WriteString(fmt.Sprintf("  Sync tags:  %s, %s every %v ± %v\n", s.BaseTag, s.ReceiverTag, s.Period, s.Spread))
	sb.WriteString(fmt.Sprintf("  Span:       %v from %s\n", s.Duration, s.Start.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("  Clock:      offset=%v rate=%g steps=%d\n", s.Drift.Offset, s.Drift.Rate, len(s.Drift.Steps)))
	if s.Jitter > 0 || s.Dropout > 0 || len(s.Outages) > 0 {
		sb.WriteString(fmt.Sprintf("  Impairment: jitter=±%v dropout=%.0f%% outages=%d\n", s.Jitter, s.Dropout*100, len(s.Outages)))
	}
	sb.WriteString(fmt.Sprintf("  Expect:     segments=%d max sync error=%v\n", s.Expect.Segments, s.Expect.MaxSyncError))

	return sb.String()
}
