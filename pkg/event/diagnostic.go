package event

import (
	"fmt"
	"time"
)

// Diagnostic records a recoverable condition met during a run, or the one
// fatal class (malformed input). Diagnostics never interrupt the numeric
// stages; they are collected for reporting and inspection.
type Diagnostic struct {
	// Severity indicates log level and urgency
	Severity Severity `json:"severity"`

	// Code is a terse, stable identifier (e.g., "NO_MATCH_IN_WINDOW")
	Code string `json:"code"`

	// Message is human-readable description
	Message string `json:"message"`

	// Component identifies the source stage (e.g., "dtd:match", "spline:fit")
	Component string `json:"component"`

	// Channel names the synchronization channel, empty for run-wide conditions
	Channel string `json:"channel,omitempty"`

	// At is the data timestamp the condition refers to, zero if none
	At time.Time `json:"at,omitzero"`

	// Context provides additional structured data
	Context map[string]any `json:"context,omitempty"`

	// Recoverable indicates if the run can continue
	Recoverable bool `json:"recoverable"`
}

// Severity represents the severity level of a diagnostic.
// Maps to standard log levels for easy integration with logging systems.
type Severity int

const (
	DebugSeverity    Severity = iota // Verbose debugging info
	InfoSeverity                     // Informational (e.g., expected missing match)
	WarningSeverity                  // Data lost but the run continues
	ErrorSeverity                    // Run aborted
)

func (s Severity) String() string {
	switch s {
	case DebugSeverity:
		return "DEBUG"
	case InfoSeverity:
		return "INFO"
	case WarningSeverity:
		return "WARNING"
	case ErrorSeverity:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Diagnostic Code Constants
//
// These are terse, refactor-stable codes for the drift pipeline's
// error taxonomy. They survive code changes better than string messages.
const (
	CodeNoMatchInWindow         = "NO_MATCH_IN_WINDOW"        // No reference detection within the margin
	CodeInsufficientSegmentData = "INSUFFICIENT_SEGMENT_DATA" // Segment too short to fit
	CodeDegenerateFit           = "DEGENERATE_FIT"            // Spline fit failed numerically
	CodeMissingOffsetAtRow      = "MISSING_OFFSET_AT_ROW"     // Timeline row left without synced timestamp
	CodeMalformedInput          = "MALFORMED_INPUT"           // Unsorted or unparseable input
)

// NewDiagnostic creates a recoverable diagnostic.
func NewDiagnostic(severity Severity, code, component, message string) Diagnostic {
	return Diagnostic{
		Severity:    severity,
		Code:        code,
		Component:   component,
		Message:     message,
		Context:     make(map[string]any),
		Recoverable: true, // Default to recoverable
	}
}

// WithChannel sets the synchronization channel name.
func (d Diagnostic) WithChannel(channel string) Diagnostic {
	d.Channel = channel
	return d
}

// WithAt sets the data timestamp the diagnostic refers to.
func (d Diagnostic) WithAt(at time.Time) Diagnostic {
	d.At = at
	return d
}

// WithContext adds a context key-value pair.
func (d Diagnostic) WithContext(key string, value any) Diagnostic {
	ctx := make(map[string]any, len(d.Context)+1)
	for k, v := range d.Context {
		ctx[k] = v
	}
	ctx[key] = value
	d.Context = ctx
	return d
}

// WithRecoverable sets whether the run can continue.
func (d Diagnostic) WithRecoverable(recoverable bool) Diagnostic {
	d.Recoverable = recoverable
	return d
}

// String returns a formatted string representation of the diagnostic.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s: %s (component=%s", d.Severity, d.Code, d.Message, d.Component)
	if d.Channel != "" {
		s += ", channel=" + d.Channel
	}
	if !d.At.IsZero() {
		s += ", at=" + d.At.Format(time.RFC3339Nano)
	}
	return s + fmt.Sprintf(", recoverable=%t)", d.Recoverable)
}
