package adapter

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// Common errors returned by sources
var (
	ErrSourceNotFound = errors.New("adapter: source not found")
	ErrMalformedRow   = errors.New("adapter: malformed row")
	ErrMissingColumn  = errors.New("adapter: missing required column")
)

// Source provides recorded detections from an external store.
//
// Implementations can read from any store: CSV exports of receiver
// logs, JSON dumps, databases, etc. Sources do not need to return rows in
// order; the engine's AdapterManager groups them per receiver, validates
// ordering and rejects malformed input once, at ingestion.
type Source interface {
	// ID returns a unique identifier for this source instance.
	// Format is implementation-defined (e.g., "csv:/data/461211.csv").
	ID() string

	// Type returns the source type category (e.g., "csv", "json").
	Type() string

	// Load reads all detections. Malformed rows fail the whole load with an
	// error wrapping ErrMalformedRow.
	Load(ctx context.Context) ([]event.Detection, error)
}
