package emitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// JSONArtifactEmitter writes the full artifact bundle of a run as indented
// JSON, for the inspect command and offline analysis.
type JSONArtifactEmitter struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// NewJSONArtifactEmitter creates an emitter writing to path.
func NewJSONArtifactEmitter(path string) *JSONArtifactEmitter {
	return &JSONArtifactEmitter{path: path}
}

// ID returns "json:<path>".
func (e *JSONArtifactEmitter) ID() string {
	return "json:" + e.path
}

// Type returns "json".
func (e *JSONArtifactEmitter) Type() string {
	return "json"
}

// Emit encodes the artifacts and replaces the file.
func (e *JSONArtifactEmitter) Emit(ctx context.Context, a *Artifacts) error {
	if a == nil {
		return ErrNoArtifacts
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(a, jsontext.WithIndent("  "))
	if err != nil {
		return fmt.Errorf("emitter: encode artifacts: %w", err)
	}
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, e.path)
		}
		return err
	}
	return os.Rename(tmp, e.path)
}

// Close marks the emitter closed.
func (e *JSONArtifactEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// ReadArtifacts loads an artifact bundle written by JSONArtifactEmitter.
func ReadArtifacts(path string) (*Artifacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifacts
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("emitter: decode %s: %w", path, err)
	}
	return &a, nil
}
