package engine

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/combine"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/statemachine"
)

// RunRecorder keeps a ring buffer of the last N run snapshots, so a batch
// of pairwise jobs against one base can be reviewed after the fact.
type RunRecorder struct {
	snapshots []RunSnapshot
	index     int
	size      int
	mu        sync.Mutex
}

// RunSnapshot summarizes one finished run.
type RunSnapshot struct {
	Timestamp time.Time
	RunID     string
	Base      string
	Receiver  string
	Started   time.Time
	Elapsed   time.Duration
	Err       string

	Stats       combine.Stats
	Segments    map[string]int // channel -> segments
	Diagnostics []event.CodeCount
	Stages      []statemachine.Record

	// Process state after the run
	HeapBytes    uint64
	NumGoroutine int
}

// NewRunRecorder creates a recorder with the given ring buffer size.
func NewRunRecorder(size int) *RunRecorder {
	if size <= 0 {
		size = 100 // Default
	}

	return &RunRecorder{
		snapshots: make([]RunSnapshot, size),
		size:      size,
	}
}

// Record adds a snapshot to the ring buffer.
func (rr *RunRecorder) Record(snap RunSnapshot) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.snapshots[rr.index] = snap
	rr.index = (rr.index + 1) % rr.size
}

// Capture builds a snapshot of a run result or failure.
func (rr *RunRecorder) Capture(cfg *Config, res *Result, err error) RunSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := RunSnapshot{
		Timestamp:    time.Now(),
		Base:         cfg.BaseReceiver,
		Receiver:     cfg.Receiver,
		HeapBytes:    mem.HeapAlloc,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if err != nil {
		snap.Err = err.Error()
		return snap
	}

	snap.RunID = res.RunID
	snap.Started = res.Started
	snap.Elapsed = res.Elapsed
	snap.Stats = res.Stats()
	snap.Diagnostics = res.Summary
	snap.Stages = res.Stages
	snap.Segments = make(map[string]int, len(res.Channels))
	for _, ch := range res.Channels {
		snap.Segments[ch.Config.Name] = len(ch.Segments)
	}
	return snap
}

// Snapshots returns the recorded snapshots, oldest first.
func (rr *RunRecorder) Snapshots() []RunSnapshot {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	out := make([]RunSnapshot, 0, rr.size)
	for i := 0; i < rr.size; i++ {
		snap := rr.snapshots[(rr.index+i)%rr.size]
		// Skip uninitialized slots (before buffer fills)
		if snap.Timestamp.IsZero() {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Dump writes the recorded runs in chronological order.
func (rr *RunRecorder) Dump(w io.Writer) error {
	snapshots := rr.Snapshots()

	fmt.Fprintf(w, "=== Run History ===\n")
	fmt.Fprintf(w, "Last %d of %d slots:\n\n", len(snapshots), rr.size)

	for i, snap := range snapshots {
		fmt.Fprintf(w, "[%d] %s %s -> %s\n", i+1, snap.Timestamp.Format("15:04:05.000"), snap.Receiver, snap.Base)
		if snap.Err != "" {
			fmt.Fprintf(w, "  FAILED: %s\n\n", snap.Err)
			continue
		}
		fmt.Fprintf(w, "  Run: %s in %s\n", snap.RunID, snap.Elapsed)
		fmt.Fprintf(w, "  Rows: %d direct, %d interpolated, %d missing\n",
			snap.Stats.Direct, snap.Stats.Interpolated, snap.Stats.Missing)
		if len(snap.Stages) > 0 {
			d := statemachine.StageDurations(snap.Stages, snap.Started)
			fmt.Fprintf(w, "  Stages:")
			for _, r := range snap.Stages {
				fmt.Fprintf(w, " %s %s", r.From, d[r.From].Round(time.Microsecond))
			}
			fmt.Fprintf(w, " -> %s\n", snap.Stages[len(snap.Stages)-1].To)
		}
		for ch, n := range snap.Segments {
			fmt.Fprintf(w, "  Segments %s: %d\n", ch, n)
		}
		for _, d := range snap.Diagnostics {
			fmt.Fprintf(w, "  %s: %d\n", d.Code, d.Count)
		}
		fmt.Fprintf(w, "  Heap: %s | Goroutines: %d\n\n", FormatBytes(snap.HeapBytes), snap.NumGoroutine)
	}

	if len(snapshots) == 0 {
		fmt.Fprintf(w, "(No runs recorded yet)\n")
	}
	_, err := fmt.Fprintln(w)
	return err
}

// FormatBytes formats a byte count with a binary unit.
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
