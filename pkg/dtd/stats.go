package dtd

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Residual summarizes a DTD series; after synchronization it should be
// centred on zero.
type Residual struct {
	Channel string  `json:"channel"`
	Matched int     `json:"matched"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	MaxAbs  float64 `json:"max_abs"`
}

// Summarize computes residual statistics over the smoothed values of a
// series, falling back to raw DTD when smoothing left nothing.
func Summarize(channel string, series Series) Residual {
	r := Residual{Channel: channel}
	var vals []float64
	for _, s := range series {
		if s.SmoothValid {
			vals = append(vals, s.Smooth)
		}
	}
	if len(vals) == 0 {
		for _, s := range series {
			if s.DTDValid {
				vals = append(vals, s.DTD)
			}
		}
	}
	for _, s := range series {
		if s.DTDValid {
			r.Matched++
		} else {
			r.Missing++
		}
	}
	if len(vals) == 0 {
		return r
	}

	r.Mean, r.Std = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		r.Std = 0
	}
	for _, v := range vals {
		r.MaxAbs = math.Max(r.MaxAbs, math.Abs(v))
	}
	return r
}
