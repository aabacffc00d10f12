package emitter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/combine"
)

// TimelineHeader is the column layout written by CSVTimelineEmitter.
var TimelineHeader = []string{
	"receiver", "transmitter", "timestamp", "offset_a", "offset_b", "offset", "interpolated", "synced_timestamp",
}

// CSVTimelineEmitter writes the synchronized timeline as CSV, one row per
// detection. Missing values are empty cells.
type CSVTimelineEmitter struct {
	mu     sync.Mutex
	path   string
	create func() (io.WriteCloser, error)
	closed bool
}

// NewCSVTimelineEmitter creates an emitter writing to path. The file is
// replaced on every Emit.
func NewCSVTimelineEmitter(path string) *CSVTimelineEmitter {
	e := &CSVTimelineEmitter{path: path}
	e.create = func() (io.WriteCloser, error) {
		if dir := filepath.Dir(e.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := os.Create(e.path)
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, e.path)
		}
		return f, err
	}
	return e
}

// NewCSVTimelineWriter creates an emitter writing to w, e.g. stdout.
func NewCSVTimelineWriter(id string, w io.Writer) *CSVTimelineEmitter {
	return &CSVTimelineEmitter{
		path: id,
		create: func() (io.WriteCloser, error) {
			return nopWriteCloser{w}, nil
		},
	}
}

// ID returns "csv:<path>".
func (e *CSVTimelineEmitter) ID() string {
	return "csv:" + e.path
}

// Type returns "csv".
func (e *CSVTimelineEmitter) Type() string {
	return "csv"
}

// Emit writes the timeline.
func (e *CSVTimelineEmitter) Emit(ctx context.Context, a *Artifacts) error {
	if a == nil {
		return ErrNoArtifacts
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	out, err := e.create()
	if err != nil {
		return err
	}
	if err := WriteTimeline(ctx, out, a.Timeline); err != nil {
		out.Close()
		return fmt.Errorf("emitter: write %s: %w", e.path, err)
	}
	return out.Close()
}

// Close marks the emitter closed.
func (e *CSVTimelineEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// WriteTimeline writes the header and one row per timeline entry.
func WriteTimeline(ctx context.Context, w io.Writer, timeline combine.Timeline) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TimelineHeader); err != nil {
		return err
	}
	for i, r := range timeline {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := []string{
			r.Receiver,
			r.Transmitter,
			r.Timestamp.Format(time.RFC3339Nano),
			formatOffset(r.OffsetA, r.OffsetAValid),
			formatOffset(r.OffsetB, r.OffsetBValid),
			formatOffset(r.Offset, r.OffsetValid),
			strconv.FormatBool(r.Interpolated),
			"",
		}
		if r.SyncedValid {
			row[7] = r.Synced.Format(time.RFC3339Nano)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatOffset(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
