package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
)

// Detection is one arrival of a transmitter signal timestamped by a receiver.
// Detections are immutable once produced by an ingestion source.
type Detection struct {
	// Receiver identifies the node that timestamped the arrival
	Receiver string `json:"receiver"`

	// Transmitter identifies the emitting device
	Transmitter string `json:"transmitter"`

	// Timestamp is the receiver-local arrival time
	Timestamp time.Time `json:"timestamp"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s<-%s@%s", d.Receiver, d.Transmitter, d.Timestamp.Format(time.RFC3339Nano))
}

var (
	// ErrUnsorted is returned when a receiver's detections are not ascending.
	ErrUnsorted = errors.New("event: detections not sorted by timestamp")

	// ErrMixedReceivers is returned when a log holds detections of another receiver.
	ErrMixedReceivers = errors.New("event: detections from more than one receiver")
)

// Log is one receiver's detections in ascending timestamp order.
// Validation happens once in NewLog; every derived log keeps the order.
type Log struct {
	receiver   string
	detections []Detection
}

// NewLog validates detections for a single receiver. Equal consecutive
// timestamps are allowed, decreasing ones are not.
func NewLog(receiver string, detections []Detection) (Log, error) {
	for i, d := range detections {
		if d.Receiver != receiver {
			return Log{}, fmt.Errorf("%w: row %d has receiver %q, want %q", ErrMixedReceivers, i, d.Receiver, receiver)
		}
		if i > 0 && d.Timestamp.Before(detections[i-1].Timestamp) {
			return Log{}, fmt.Errorf("%w: receiver %s row %d (%s before %s)", ErrUnsorted, receiver, i,
				d.Timestamp.Format(time.RFC3339Nano), detections[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}

	owned := make([]Detection, len(detections))
	copy(owned, detections)
	return Log{receiver: receiver, detections: owned}, nil
}

// Receiver returns the receiver id of the log.
func (l Log) Receiver() string {
	return l.receiver
}

// Len returns the number of detections.
func (l Log) Len() int {
	return len(l.detections)
}

// Detections returns a copy of the detections.
func (l Log) Detections() []Detection {
	out := make([]Detection, len(l.detections))
	copy(out, l.detections)
	return out
}

// Timestamps returns the detection timestamps in order.
func (l Log) Timestamps() []time.Time {
	out := make([]time.Time, len(l.detections))
	for i, d := range l.detections {
		out[i] = d.Timestamp
	}
	return out
}

// ByTransmitter returns the sub-log of detections from one transmitter.
func (l Log) ByTransmitter(transmitter string) Log {
	out := Log{receiver: l.receiver}
	for _, d := range l.detections {
		if d.Transmitter == transmitter {
			out.detections = append(out.detections, d)
		}
	}
	return out
}

// Between restricts the log to [from, to]. A zero bound is open.
func (l Log) Between(from, to time.Time) Log {
	out := Log{receiver: l.receiver}
	for _, d := range l.detections {
		if !from.IsZero() && d.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && d.Timestamp.After(to) {
			break
		}
		out.detections = append(out.detections, d)
	}
	return out
}

// Transmitters returns the distinct transmitter ids in first-seen order.
func (l Log) Transmitters() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, d := range l.detections {
		if !seen[d.Transmitter] {
			seen[d.Transmitter] = true
			ids = append(ids, d.Transmitter)
		}
	}
	return ids
}

// Codec defines how detections and artifacts are serialized.
type Codec interface {
	// Marshal converts a value to bytes
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a value
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec using go-json-experiment/json.
type JSONCodec struct{}

// Marshal converts a value to JSON bytes.
func (c JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into a value.
func (c JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
