package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BYTE-6D65/driftsync/pkg/adapter"
	"github.com/BYTE-6D65/driftsync/pkg/event"
)

// AdapterManager manages the detection sources feeding the engine.
// It loads every registered source and splits the detections into
// validated per-receiver logs.
type AdapterManager struct {
	engine *Engine
	mu     sync.RWMutex

	adapters map[string]adapter.Source
	order    []string
}

// NewAdapterManager creates a new adapter manager for the given engine.
func NewAdapterManager(engine *Engine) *AdapterManager {
	return &AdapterManager{
		engine:   engine,
		adapters: make(map[string]adapter.Source),
	}
}

// Register registers a source with the manager.
// Sources are concatenated in registration order.
func (m *AdapterManager) Register(src adapter.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := src.ID()
	if _, exists := m.adapters[id]; exists {
		return fmt.Errorf("adapter %s already registered", id)
	}

	m.adapters[id] = src
	m.order = append(m.order, id)
	return nil
}

// Unregister removes a source from the manager.
func (m *AdapterManager) Unregister(adapterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adapters[adapterID]; !exists {
		return fmt.Errorf("adapter %s not found", adapterID)
	}

	delete(m.adapters, adapterID)
	for i, id := range m.order {
		if id == adapterID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Load loads all sources concurrently and returns their detections
// concatenated in registration order.
func (m *AdapterManager) Load(ctx context.Context) ([]event.Detection, error) {
	m.mu.RLock()
	sources := make([]adapter.Source, len(m.order))
	for i, id := range m.order {
		sources[i] = m.adapters[id]
	}
	m.mu.RUnlock()

	results := make([][]event.Detection, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dets, err := src.Load(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("adapter %s: %w", src.ID(), err)
				return
			}
			results[i] = dets
			m.engine.logger.Debug("loaded %d detections from %s", len(dets), src.ID())
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		m.reportMalformed(err, "")
		return nil, err
	}

	var all []event.Detection
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// Logs loads all sources and returns one validated log per receiver.
func (m *AdapterManager) Logs(ctx context.Context) (map[string]event.Log, error) {
	all, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	return m.Split(all)
}

// Split groups detections by receiver, preserving order, and validates
// that every receiver's detections are in ascending time order.
func (m *AdapterManager) Split(dets []event.Detection) (map[string]event.Log, error) {
	byReceiver := make(map[string][]event.Detection)
	for _, d := range dets {
		byReceiver[d.Receiver] = append(byReceiver[d.Receiver], d)
	}

	logs := make(map[string]event.Log, len(byReceiver))
	for rec, list := range byReceiver {
		l, err := event.NewLog(rec, list)
		if err != nil {
			err = fmt.Errorf("receiver %s: %w", rec, err)
			m.reportMalformed(err, rec)
			return nil, err
		}
		logs[rec] = l
	}
	return logs, nil
}

func (m *AdapterManager) reportMalformed(err error, receiver string) {
	d := event.NewDiagnostic(event.ErrorSeverity, event.CodeMalformedInput, "adapter", err.Error()).
		WithRecoverable(false)
	if receiver != "" {
		d = d.WithContext("receiver", receiver)
	}
	m.engine.diagnostics.Record(d)
	m.engine.metrics.Diagnostics.WithLabelValues(d.Code).Inc()
	m.engine.logger.Error("%v", err)
}

// List returns the registered source IDs in registration order.
func (m *AdapterManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Get retrieves a source by ID.
func (m *AdapterManager) Get(adapterID string) (adapter.Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, exists := m.adapters[adapterID]
	return src, exists
}
