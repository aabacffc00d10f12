package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// JSONSource reads a JSON array of detections.
type JSONSource struct {
	path  string
	codec event.Codec
	read  func() ([]byte, error)
}

// NewJSONSource creates a source for the JSON file at path.
func NewJSONSource(path string) *JSONSource {
	s := &JSONSource{path: path, codec: event.JSONCodec{}}
	s.read = func() ([]byte, error) {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
		}
		return data, err
	}
	return s
}

// ID returns "json:<path>".
func (s *JSONSource) ID() string {
	return "json:" + s.path
}

// Type returns "json".
func (s *JSONSource) Type() string {
	return "json"
}

// Load decodes the file. Entries without receiver or transmitter are malformed.
func (s *JSONSource) Load(ctx context.Context) ([]event.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var out []event.Detection
	if err := s.codec.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRow, s.path, err)
	}
	for i, d := range out {
		if d.Receiver == "" || d.Transmitter == "" || d.Timestamp.IsZero() {
			return nil, fmt.Errorf("%w: %s entry %d: incomplete detection", ErrMalformedRow, s.path, i)
		}
		out[i].Timestamp = d.Timestamp.UTC()
	}
	return out, nil
}
