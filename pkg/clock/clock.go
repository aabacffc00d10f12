package clock

import "time"

// MonoTime represents a timestamp in nanoseconds since the Unix epoch.
// It is the numeric time axis used for regression: int64 keeps ordering and
// spacing of detection timestamps exactly (~292 years of range).
type MonoTime int64

// Clock provides elapsed-time measurements for the engine.
// Stage timings go through it so tests can substitute a fake.
type Clock interface {
	// Now returns the current time
	Now() MonoTime

	// Since returns the duration elapsed since the given time
	Since(t MonoTime) time.Duration
}

// ToDuration converts a MonoTime difference (nanoseconds) to a time.Duration.
func ToDuration(ns MonoTime) time.Duration {
	return time.Duration(ns)
}

// FromDuration converts a time.Duration to MonoTime (nanoseconds).
func FromDuration(d time.Duration) MonoTime {
	return MonoTime(d.Nanoseconds())
}

// FromTime converts a wall-clock timestamp to MonoTime.
func FromTime(t time.Time) MonoTime {
	return MonoTime(t.UnixNano())
}

// Time converts MonoTime back to a UTC time.Time.
func (m MonoTime) Time() time.Time {
	return time.Unix(0, int64(m)).UTC()
}

// Float returns the timestamp as float64 nanoseconds, the regression axis.
func (m MonoTime) Float() float64 {
	return float64(m)
}

// SecondsToDuration converts a fractional offset in seconds to a Duration,
// rounded to the nearest nanosecond.
func SecondsToDuration(s float64) time.Duration {
	ns := s * 1e9
	if ns < 0 {
		return time.Duration(ns - 0.5)
	}
	return time.Duration(ns + 0.5)
}

// SystemClock uses the system's monotonic clock.
type SystemClock struct {
	epoch time.Time // Cached at creation to provide stable monotonic base
}

// NewSystemClock creates a new SystemClock anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{
		epoch: time.Now(),
	}
}

// Now returns the current monotonic time in nanoseconds since epoch.
func (s *SystemClock) Now() MonoTime {
	// Use time.Since which leverages monotonic clock internally
	elapsed := time.Since(s.epoch)
	return FromDuration(elapsed)
}

// Since returns the duration elapsed since the given monotonic time.
func (s *SystemClock) Since(t MonoTime) time.Duration {
	return ToDuration(s.Now() - t)
}
