package adapter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// WriteCSV writes detections in the format CSVSource reads back:
// a receiver,transmitter,timestamp header and RFC3339 timestamps with
// nanoseconds, in UTC.
func WriteCSV(w io.Writer, dets []event.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"receiver", "transmitter", "timestamp"}); err != nil {
		return err
	}
	for _, d := range dets {
		rec := []string{d.Receiver, d.Transmitter, d.Timestamp.UTC().Format(time.RFC3339Nano)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes detections to path, creating parent directories.
func WriteCSVFile(path string, dets []event.Detection) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, dets); err != nil {
		f.Close()
		return fmt.Errorf("adapter: write %s: %w", path, err)
	}
	return f.Close()
}
