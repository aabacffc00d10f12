package adapter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// Column names accepted in CSV headers. ID and Time are the column names of
// raw receiver exports.
var (
	receiverColumns    = []string{"receiver", "receiver_id"}
	transmitterColumns = []string{"transmitter", "transmitter_id", "id"}
	timestampColumns   = []string{"timestamp", "time"}
)

// CSVSource reads detections from a CSV file with a header row.
type CSVSource struct {
	path     string
	receiver string
	open     func() (io.ReadCloser, error)
}

// CSVOption configures a CSVSource.
type CSVOption func(*CSVSource)

// WithReceiver sets the receiver id for files without a receiver column,
// such as a single receiver's export.
func WithReceiver(id string) CSVOption {
	return func(s *CSVSource) {
		s.receiver = id
	}
}

// withReader substitutes the file with an in-memory reader.
func withReader(r io.Reader) CSVOption {
	return func(s *CSVSource) {
		s.open = func() (io.ReadCloser, error) { return io.NopCloser(r), nil }
	}
}

// NewCSVSource creates a source for the CSV file at path.
func NewCSVSource(path string, opts ...CSVOption) *CSVSource {
	s := &CSVSource{path: path}
	s.open = func() (io.ReadCloser, error) {
		f, err := os.Open(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
		}
		return f, err
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns "csv:<path>".
func (s *CSVSource) ID() string {
	return "csv:" + s.path
}

// Type returns "csv".
func (s *CSVSource) Type() string {
	return "csv"
}

// Load reads all rows. Blank lines are skipped; any other unparseable row
// fails with its line number.
func (s *CSVSource) Load(ctx context.Context) ([]event.Detection, error) {
	rc, err := s.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrMalformedRow, s.path, err)
	}
	recCol := findColumn(header, receiverColumns)
	txCol := findColumn(header, transmitterColumns)
	tsCol := findColumn(header, timestampColumns)
	if txCol < 0 || tsCol < 0 || (recCol < 0 && s.receiver == "") {
		return nil, fmt.Errorf("%w: %s: header %v", ErrMissingColumn, s.path, header)
	}

	var out []event.Detection
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRow, s.path, err)
		}
		line, _ := r.FieldPos(0)

		d, err := s.parseRecord(rec, recCol, txCol, tsCol)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedRow, s.path, line, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *CSVSource) parseRecord(rec []string, recCol, txCol, tsCol int) (event.Detection, error) {
	need := max(recCol, txCol, tsCol)
	if len(rec) <= need {
		return event.Detection{}, fmt.Errorf("expected at least %d fields, got %d", need+1, len(rec))
	}

	receiver := s.receiver
	if recCol >= 0 && strings.TrimSpace(rec[recCol]) != "" {
		receiver = strings.TrimSpace(rec[recCol])
	}
	tx := strings.TrimSpace(rec[txCol])
	if receiver == "" || tx == "" {
		return event.Detection{}, fmt.Errorf("empty receiver or transmitter")
	}

	ts, err := ParseTimestamp(rec[tsCol])
	if err != nil {
		return event.Detection{}, err
	}
	return event.Detection{Receiver: receiver, Transmitter: tx, Timestamp: ts}, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}
