package clock

import "sort"

// Truer maps receiver-local timestamps onto the reference receiver's timeline.
type Truer interface {
	// True maps a local timestamp to reference time. ok is false when the
	// timestamp lies outside the span the mapping was built from.
	True(local MonoTime) (ref MonoTime, ok bool)

	// Span returns the local time range over which True is defined.
	Span() (from MonoTime, to MonoTime)
}

// CurvePoint is one known drift offset (seconds) at a local timestamp.
type CurvePoint struct {
	At     MonoTime
	Offset float64
}

// DriftTruer implements Truer by linear interpolation of a drift curve:
// ref = local - offset(local). It never extrapolates past the first or last
// known point. A DriftTruer is immutable and safe for concurrent use.
type DriftTruer struct {
	points []CurvePoint
}

// NewDriftTruer creates a Truer from curve points in any order.
// Points sharing a timestamp keep the first value seen.
func NewDriftTruer(points []CurvePoint) *DriftTruer {
	sorted := make([]CurvePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	dedup := sorted[:0]
	for i, p := range sorted {
		if i > 0 && p.At == dedup[len(dedup)-1].At {
			continue
		}
		dedup = append(dedup, p)
	}
	return &DriftTruer{points: dedup}
}

// Offset returns the interpolated drift offset in seconds at local time.
func (t *DriftTruer) Offset(local MonoTime) (float64, bool) {
	n := len(t.points)
	if n == 0 || local < t.points[0].At || local > t.points[n-1].At {
		return 0, false
	}

	idx := sort.Search(n, func(i int) bool { return t.points[i].At >= local })
	if t.points[idx].At == local {
		return t.points[idx].Offset, true
	}

	lo, hi := t.points[idx-1], t.points[idx]
	frac := float64(local-lo.At) / float64(hi.At-lo.At)
	return lo.Offset + frac*(hi.Offset-lo.Offset), true
}

// True maps a local timestamp to reference time.
func (t *DriftTruer) True(local MonoTime) (MonoTime, bool) {
	off, ok := t.Offset(local)
	if !ok {
		return 0, false
	}
	return local - FromDuration(SecondsToDuration(off)), true
}

// Span returns the first and last curve timestamps.
func (t *DriftTruer) Span() (MonoTime, MonoTime) {
	if len(t.points) == 0 {
		return 0, 0
	}
	return t.points[0].At, t.points[len(t.points)-1].At
}

// IdentityTruer is a trivial Truer that performs no transformation.
// The base receiver maps onto itself.
type IdentityTruer struct{}

// NewIdentityTruer creates a no-op Truer.
func NewIdentityTruer() *IdentityTruer {
	return &IdentityTruer{}
}

// True returns the local timestamp unchanged.
func (t *IdentityTruer) True(local MonoTime) (MonoTime, bool) {
	return local, true
}

// Span covers the whole MonoTime range.
func (t *IdentityTruer) Span() (MonoTime, MonoTime) {
	return MonoTime(-1 << 63), MonoTime(1<<63 - 1)
}
