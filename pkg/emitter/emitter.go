package emitter

import (
	"context"
	"errors"
	"time"

	"github.com/BYTE-6D65/driftsync/pkg/combine"
	"github.com/BYTE-6D65/driftsync/pkg/dtd"
	"github.com/BYTE-6D65/driftsync/pkg/event"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
)

// Common errors returned by emitters
var (
	ErrPermissionDenied = errors.New("emitter: permission denied - check access rights")
	ErrClosed           = errors.New("emitter: already closed")
	ErrNoArtifacts      = errors.New("emitter: nil artifacts")
)

// Emitter persists the result of a synchronization run.
//
// Implementations can write to any destination: CSV tables for downstream
// positioning, JSON artifact bundles for inspection, databases, etc.
//
// Emitters are managed by the engine's EmitterManager which fans a finished
// run out to every registered emitter.
type Emitter interface {
	// ID returns a unique identifier for this emitter instance.
	// Format is implementation-defined (e.g., "csv:/out/461211_synced.csv").
	ID() string

	// Type returns the emitter type category (e.g., "csv", "json").
	Type() string

	// Emit writes the artifacts of one run.
	// Returns ErrNoArtifacts for a nil run and ErrClosed after Close.
	Emit(ctx context.Context, a *Artifacts) error

	// Close releases resources.
	// Safe to call multiple times (idempotent).
	Close() error
}

// ChannelArtifacts are the intermediate results of one sync channel.
type ChannelArtifacts struct {
	Name        string           `json:"name"`
	Transmitter string           `json:"transmitter"`
	Samples     []dtd.Sample     `json:"samples"`
	Series      dtd.Series       `json:"series"`
	Outcomes    []spline.Outcome `json:"outcomes"`
	Estimate    spline.Estimate  `json:"estimate"`
}

// Artifacts is everything a run produced, for persistence and inspection.
type Artifacts struct {
	RunID        string             `json:"run_id"`
	Created      time.Time          `json:"created"`
	Base         string             `json:"base"`
	Receiver     string             `json:"receiver"`
	Config       any                `json:"config,omitempty"`
	Channels     []ChannelArtifacts `json:"channels"`
	Timeline     combine.Timeline   `json:"timeline"`
	Stats        combine.Stats      `json:"stats"`
	Verification []dtd.Residual     `json:"verification,omitempty"`
	Diagnostics  []event.CodeCount  `json:"diagnostics,omitempty"`
}
