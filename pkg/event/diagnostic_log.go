package event

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DiagnosticLog collects diagnostics from concurrently running stages.
//
// Key properties:
//   - Safe for concurrent Record calls from channel goroutines and fit workers
//   - Bounded storage: beyond the limit only counts are kept
//   - Handlers are called synchronously on Record, outside the lock
type DiagnosticLog struct {
	mu       sync.Mutex
	entries  []Diagnostic
	counts   map[string]int
	handlers []DiagnosticHandler
	limit    int
	dropped  atomic.Uint64
}

// DiagnosticHandler is a function that processes diagnostics as they are recorded.
type DiagnosticHandler func(Diagnostic)

// NewDiagnosticLog creates a log keeping at most limit entries.
// Default limit is 10000 entries.
func NewDiagnosticLog(limit int) *DiagnosticLog {
	if limit <= 0 {
		limit = 10000
	}
	return &DiagnosticLog{
		counts: make(map[string]int),
		limit:  limit,
	}
}

// OnRecord registers a handler invoked for every recorded diagnostic.
func (l *DiagnosticLog) OnRecord(h DiagnosticHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Record stores a diagnostic and notifies handlers.
func (l *DiagnosticLog) Record(d Diagnostic) {
	l.mu.Lock()
	l.counts[d.Code]++
	if len(l.entries) < l.limit {
		l.entries = append(l.entries, d)
	} else {
		l.dropped.Add(1)
	}
	handlers := l.handlers
	l.mu.Unlock()

	for _, h := range handlers {
		h(d)
	}
}

// All returns a copy of the stored diagnostics in record order.
func (l *DiagnosticLog) All() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByCode returns the stored diagnostics with the given code.
func (l *DiagnosticLog) ByCode(code string) []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Diagnostic
	for _, d := range l.entries {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Count returns how many diagnostics with the code were recorded,
// including those beyond the storage limit.
func (l *DiagnosticLog) Count(code string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[code]
}

// CodeCount is one row of a grouped summary.
type CodeCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// Summary returns recorded counts grouped by code, sorted by code.
func (l *DiagnosticLog) Summary() []CodeCount {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CodeCount, 0, len(l.counts))
	for code, n := range l.counts {
		out = append(out, CodeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of stored diagnostics.
func (l *DiagnosticLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// DroppedCount returns the number of diagnostics counted but not stored.
func (l *DiagnosticLog) DroppedCount() uint64 {
	return l.dropped.Load()
}
