package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BYTE-6D65/driftsync/pkg/emitter"
)

// EmitterManager manages the emitters attached to the engine.
// It fans every run's artifacts out to all registered emitters.
type EmitterManager struct {
	engine *Engine
	mu     sync.RWMutex

	emitters map[string]emitter.Emitter
}

// NewEmitterManager creates a new emitter manager for the given engine.
func NewEmitterManager(engine *Engine) *EmitterManager {
	return &EmitterManager{
		engine:   engine,
		emitters: make(map[string]emitter.Emitter),
	}
}

// Register registers an emitter under its ID.
func (m *EmitterManager) Register(emit emitter.Emitter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := emit.ID()
	if _, exists := m.emitters[id]; exists {
		return fmt.Errorf("emitter %s already registered", id)
	}

	m.emitters[id] = emit
	return nil
}

// Unregister closes and removes an emitter.
func (m *EmitterManager) Unregister(emitterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	emit, exists := m.emitters[emitterID]
	if !exists {
		return fmt.Errorf("emitter %s not found", emitterID)
	}

	if err := emit.Close(); err != nil {
		return fmt.Errorf("failed to close emitter %s: %w", emitterID, err)
	}

	delete(m.emitters, emitterID)
	return nil
}

// Emit writes the artifacts through every emitter concurrently.
// A failing emitter does not stop the others; all errors are returned joined.
func (m *EmitterManager) Emit(ctx context.Context, a *emitter.Artifacts) error {
	if a == nil {
		return emitter.ErrNoArtifacts
	}

	m.mu.RLock()
	targets := make([]emitter.Emitter, 0, len(m.emitters))
	for _, e := range m.emitters {
		targets = append(targets, e)
	}
	m.mu.RUnlock()

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, emit := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := emit.Emit(ctx, a); err != nil {
				errs[i] = fmt.Errorf("emitter %s: %w", emit.ID(), err)
				m.engine.logger.Error("%v", errs[i])
				return
			}
			m.engine.logger.Info("wrote %s via %s", a.RunID, emit.ID())
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close closes all emitters.
func (m *EmitterManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var closeErrors []error
	for id, emit := range m.emitters {
		if err := emit.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("emitter %s: %w", id, err))
		}
	}

	if len(closeErrors) > 0 {
		return fmt.Errorf("errors closing emitters: %w", errors.Join(closeErrors...))
	}

	return nil
}

// List returns a list of all registered emitter IDs.
func (m *EmitterManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.emitters))
	for id := range m.emitters {
		ids = append(ids, id)
	}
	return ids
}

// Get retrieves an emitter by ID.
func (m *EmitterManager) Get(emitterID string) (emitter.Emitter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emit, exists := m.emitters[emitterID]
	return emit, exists
}
