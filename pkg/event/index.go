package event

import (
	"sort"
	"time"
)

// SearchIndex is a sorted array of timestamps built once and queried
// repeatedly with binary search. It is read-only after construction and
// safe for concurrent lookups.
type SearchIndex struct {
	times []time.Time
}

// NewSearchIndex builds an index over ascending timestamps. The slice is copied.
func NewSearchIndex(times []time.Time) *SearchIndex {
	owned := make([]time.Time, len(times))
	copy(owned, times)
	return &SearchIndex{times: owned}
}

// Len returns the number of indexed timestamps.
func (s *SearchIndex) Len() int {
	return len(s.times)
}

// At returns the i-th indexed timestamp.
func (s *SearchIndex) At(i int) time.Time {
	return s.times[i]
}

// Range returns the index bounds [lo, hi) of timestamps within [start, end],
// both ends inclusive.
func (s *SearchIndex) Range(start, end time.Time) (int, int) {
	lo := sort.Search(len(s.times), func(i int) bool {
		return !s.times[i].Before(start)
	})
	hi := sort.Search(len(s.times), func(i int) bool {
		return s.times[i].After(end)
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Nearest returns the indexed timestamp closest to t within [t-margin, t+margin].
// Ties resolve to the earlier timestamp. ok is false when the window is empty.
func (s *SearchIndex) Nearest(t time.Time, margin time.Duration) (time.Time, bool) {
	lo, hi := s.Range(t.Add(-margin), t.Add(margin))
	if lo >= hi {
		return time.Time{}, false
	}

	// First candidate at or after t; the nearest is it or its predecessor.
	idx := sort.Search(hi-lo, func(i int) bool {
		return !s.times[lo+i].Before(t)
	}) + lo

	switch {
	case idx == lo:
		return s.times[idx], true
	case idx == hi:
		return s.times[hi-1], true
	}

	before, after := s.times[idx-1], s.times[idx]
	if after.Sub(t) < t.Sub(before) {
		return after, true
	}
	return before, true
}
