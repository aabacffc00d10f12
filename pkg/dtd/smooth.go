package dtd

import (
	"math"
	"time"
)

// SmoothedSample carries the raw DTD alongside its smoothed value.
type SmoothedSample struct {
	Timestamp   time.Time `json:"timestamp"`
	DTD         float64   `json:"dtd"`
	DTDValid    bool      `json:"dtd_valid"`
	Smooth      float64   `json:"smooth"`
	SmoothValid bool      `json:"smooth_valid"`
}

// Series is a smoothed DTD series aligned 1:1 with its input samples.
type Series []SmoothedSample

// Smooth removes boundary and outlier samples and applies a trailing mean.
//
// The first and last samples are always missing. A sample whose absolute
// difference to its predecessor exceeds outlierLim is dropped; the difference
// is taken once over the boundary-forced values, and a difference involving a
// missing value never flags. The trailing mean at i covers [i-window+1, i] and
// is missing unless all window values are present. Engine configs with a
// window below 1 fail validation; direct callers passing one get window 1.
func Smooth(samples []Sample, outlierLim float64, window int) Series {
	n := len(samples)
	if window < 1 {
		window = 1
	}

	forced := make([]float64, n)
	for i, s := range samples {
		if s.Valid {
			forced[i] = s.DTD
		} else {
			forced[i] = math.NaN()
		}
	}
	if n > 0 {
		forced[0] = math.NaN()
		forced[n-1] = math.NaN()
	}

	clean := make([]float64, n)
	copy(clean, forced)
	for i := 1; i < n; i++ {
		// NaN compares false, so gaps never flag.
		if math.Abs(forced[i]-forced[i-1]) > outlierLim {
			clean[i] = math.NaN()
		}
	}

	out := make(Series, n)
	for i, s := range samples {
		out[i] = SmoothedSample{Timestamp: s.Timestamp, DTD: s.DTD, DTDValid: s.Valid}
		if i < window-1 {
			continue
		}
		sum := 0.0
		complete := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(clean[j]) {
				complete = false
				break
			}
			sum += clean[j]
		}
		if complete {
			out[i].Smooth = sum / float64(window)
			out[i].SmoothValid = true
		}
	}
	return out
}

// Passthrough copies the raw DTD into the smoothed column unchanged, for
// series that are already smooth.
func Passthrough(samples []Sample) Series {
	out := make(Series, len(samples))
	for i, s := range samples {
		out[i] = SmoothedSample{
			Timestamp:   s.Timestamp,
			DTD:         s.DTD,
			DTDValid:    s.Valid,
			Smooth:      s.DTD,
			SmoothValid: s.Valid,
		}
	}
	return out
}

// ValidCount returns the number of samples with a smoothed value.
func (s Series) ValidCount() int {
	n := 0
	for _, p := range s {
		if p.SmoothValid {
			n++
		}
	}
	return n
}
