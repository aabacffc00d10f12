package spline

import "gonum.org/v1/gonum/mat"

// clampedKnots builds the full knot vector on [0, 1] for the given degree
// and ascending interior knots: degree+1 zeros, the interior, degree+1 ones.
func clampedKnots(interior []float64, degree int) []float64 {
	t := make([]float64, 0, len(interior)+2*(degree+1))
	for i := 0; i <= degree; i++ {
		t = append(t, 0)
	}
	t = append(t, interior...)
	for i := 0; i <= degree; i++ {
		t = append(t, 1)
	}
	return t
}

// findSpan returns l with t[l] <= u < t[l+1], clamping u = 1 into the last
// non-empty span. nc is the number of basis functions.
func findSpan(t []float64, degree, nc int, u float64) int {
	if u >= t[nc] {
		return nc - 1
	}
	if u <= t[degree] {
		return degree
	}
	lo, hi := degree, nc
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if u < t[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// basisFuncs evaluates the degree+1 non-zero basis functions at u in span l
// with the Cox-de Boor recurrence. N[j] belongs to basis function l-degree+j.
func basisFuncs(t []float64, degree, l int, u float64) []float64 {
	n := make([]float64, degree+1)
	left := make([]float64, degree+1)
	right := make([]float64, degree+1)
	n[0] = 1
	for j := 1; j <= degree; j++ {
		left[j] = u - t[l+1-j]
		right[j] = t[l+j] - u
		saved := 0.0
		for r := 0; r < j; r++ {
			tmp := n[r] / (right[r+1] + left[j-r])
			n[r] = saved + right[r+1]*tmp
			saved = left[j-r] * tmp
		}
		n[j] = saved
	}
	return n
}

// collocation returns the m x nc matrix of basis values at u.
func collocation(t []float64, degree int, u []float64) *mat.Dense {
	nc := len(t) - degree - 1
	b := mat.NewDense(len(u), nc, nil)
	for i, ui := range u {
		l := findSpan(t, degree, nc, ui)
		for j, v := range basisFuncs(t, degree, l, ui) {
			b.Set(i, l-degree+j, v)
		}
	}
	return b
}

// derivativeJumps returns the matrix mapping coefficients to the jumps of
// the degree-th derivative at each interior knot. The degree-th derivative
// is piecewise constant; it is obtained by differentiating the coefficient
// vector degree times.
func derivativeJumps(t []float64, degree int) *mat.Dense {
	nc := len(t) - degree - 1
	nInterior := nc - degree - 1
	if nInterior <= 0 {
		return nil
	}

	d := mat.NewDense(nInterior, nc, nil)
	for col := 0; col < nc; col++ {
		c := make([]float64, nc)
		c[col] = 1
		for r := 1; r <= degree; r++ {
			p := degree - r + 1
			tr := t[r-1 : len(t)-r+1]
			next := make([]float64, len(c)-1)
			for i := range next {
				den := tr[i+p+1] - tr[i+1]
				if den > 0 {
					next[i] = float64(p) * (c[i+1] - c[i]) / den
				}
			}
			c = next
		}
		// c[j] is the constant value on the j-th knot interval.
		for j := 1; j <= nInterior; j++ {
			d.Set(j-1, col, c[j]-c[j-1])
		}
	}
	return d
}

// evaluate computes the spline value at u in [0, 1].
func evaluate(t, coef []float64, degree int, u float64) float64 {
	nc := len(coef)
	l := findSpan(t, degree, nc, u)
	v := 0.0
	for j, n := range basisFuncs(t, degree, l, u) {
		v += n * coef[l-degree+j]
	}
	return v
}
