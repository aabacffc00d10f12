package spline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientData is returned for segments with too few points.
	ErrInsufficientData = errors.New("spline: insufficient segment data")

	// ErrDegenerateFit is returned when the fit fails numerically.
	ErrDegenerateFit = errors.New("spline: degenerate fit")

	// ErrInvalidParams is returned for a degree outside 1..5 or a non-positive
	// smoothing factor.
	ErrInvalidParams = errors.New("spline: invalid fit parameters")
)

const (
	// MaxDegree is the highest supported spline degree.
	MaxDegree = 5

	// tolerance on |fp - s| relative to s when solving for the smoothing parameter
	fpTolerance = 1e-3

	maxKnotIterations = 64
	maxBisections     = 80
	logPBound         = 12.0
)

// Spline is a fitted smoothing spline. The fit is computed on x mapped
// affinely onto [0, 1]; Eval applies the same map.
type Spline struct {
	degree int
	knots  []float64 // full clamped knot vector on [0, 1]
	coef   []float64
	x0     float64
	span   float64
	fp     float64 // weighted sum of squared residuals
	p      float64 // smoothing parameter, +Inf for a least-squares spline
}

// Degree returns the spline degree.
func (s *Spline) Degree() int {
	return s.degree
}

// Residual returns the sum of squared residuals of the fit.
func (s *Spline) Residual() float64 {
	return s.fp
}

// SmoothingParameter returns p, or +Inf for a least-squares spline.
func (s *Spline) SmoothingParameter() float64 {
	return s.p
}

// Interior returns the interior knots in the caller's x units.
func (s *Spline) Interior() []float64 {
	inner := s.knots[s.degree+1 : len(s.knots)-s.degree-1]
	out := make([]float64, len(inner))
	for i, u := range inner {
		out[i] = s.x0 + u*s.span
	}
	return out
}

// Eval evaluates the spline at x. Values outside the fitted range are
// evaluated on the boundary polynomial pieces; callers restrict x.
func (s *Spline) Eval(x float64) float64 {
	return evaluate(s.knots, s.coef, s.degree, (x-s.x0)/s.span)
}

// Fit computes a smoothing spline of the given degree through (x, y) such
// that the sum of squared residuals is close to s, choosing knots
// adaptively:
//
//  1. A polynomial of the given degree is fitted; if its residual is at most
//     s it is returned.
//  2. Interior knots are inserted where the residual is largest until the
//     least-squares spline residual drops below s, or the knot count reaches
//     len(x)-degree-1.
//  3. With the final knots, the smoothing parameter p is solved so that the
//     residual equals s within a relative tolerance, penalising the jumps of
//     the degree-th derivative at the interior knots.
//
// x must be strictly increasing.
func Fit(x, y []float64, degree int, s float64) (*Spline, error) {
	if degree < 1 || degree > MaxDegree || !(s > 0) || math.IsInf(s, 1) {
		return nil, fmt.Errorf("%w: degree=%d s=%g", ErrInvalidParams, degree, s)
	}
	m := len(x)
	if m != len(y) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrDegenerateFit, m, len(y))
	}
	if m < degree+1 {
		return nil, fmt.Errorf("%w: %d points for degree %d", ErrInsufficientData, m, degree)
	}
	for i := 0; i < m; i++ {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("%w: non-finite value at %d", ErrDegenerateFit, i)
		}
		if i > 0 && !(x[i] > x[i-1]) {
			return nil, fmt.Errorf("%w: x not strictly increasing at %d", ErrDegenerateFit, i)
		}
	}

	x0 := x[0]
	span := x[m-1] - x[0]
	u := make([]float64, m)
	for i := range x {
		u[i] = (x[i] - x0) / span
	}
	u[m-1] = 1

	f := &fitter{u: u, y: y, degree: degree}

	interior := []float64{}
	coef, fp, err := f.leastSquares(interior)
	if err != nil {
		return nil, fmt.Errorf("%w: polynomial fit: %v", ErrDegenerateFit, err)
	}
	result := &Spline{degree: degree, knots: clampedKnots(interior, degree), coef: coef, x0: x0, span: span, fp: fp, p: math.Inf(1)}
	if fp <= s {
		return result, nil
	}

	fp0 := fp
	maxInterior := m - degree - 1
	nplus := 1
	fpOld := fp
	for iter := 0; iter < maxKnotIterations && fp > s && len(interior) < maxInterior; iter++ {
		if iter > 0 {
			nplus = nextKnotBatch(nplus, fpOld, fp, s)
		}
		add := min(nplus, maxInterior-len(interior))

		residuals := f.residuals(interior, coef)
		candidate, ok := insertKnots(u, residuals, interior, add)
		if !ok {
			break
		}

		c, cfp, err := f.leastSquares(candidate)
		if err != nil {
			// Keep the last solvable knot set.
			break
		}
		interior, coef, fpOld, fp = candidate, c, fp, cfp
		result = &Spline{degree: degree, knots: clampedKnots(interior, degree), coef: coef, x0: x0, span: span, fp: fp, p: math.Inf(1)}
	}

	if fp > s || math.Abs(fp-s) <= fpTolerance*s || len(interior) == 0 {
		return result, nil
	}

	smoothed, err := f.smooth(interior, s, fp0)
	if err != nil {
		// The least-squares spline already satisfies fp < s.
		return result, nil
	}
	smoothed.x0, smoothed.span = x0, span
	return smoothed, nil
}

// nextKnotBatch chooses how many knots the next iteration adds from the
// residual decrease of the last one.
func nextKnotBatch(nplus int, fpOld, fp, s float64) int {
	next := nplus * 2
	if fpOld-fp > fpTolerance*s {
		est := int(float64(nplus) * (fp - s) / (fpOld - fp))
		next = min(nplus*2, max(est, nplus/2, 1))
	}
	return max(next, 1)
}

// insertKnots adds up to n knots, each in the knot interval with the largest
// residual sum that holds at least two points. The new knot lies halfway
// between the two middle points of that interval.
func insertKnots(u, residuals, interior []float64, n int) ([]float64, bool) {
	knots := append([]float64{}, interior...)
	added := 0
	for ; added < n; added++ {
		bounds := append(append([]float64{0}, knots...), 1)
		bestSum, bestLo, bestHi := -1.0, 0, 0
		lo := 0
		for j := 0; j+1 < len(bounds); j++ {
			hi := lo
			last := j+2 == len(bounds)
			for hi < len(u) && (u[hi] < bounds[j+1] || last) {
				hi++
			}
			if hi-lo >= 2 {
				sum := 0.0
				for i := lo; i < hi; i++ {
					sum += residuals[i]
				}
				if sum > bestSum {
					bestSum, bestLo, bestHi = sum, lo, hi
				}
			}
			lo = hi
		}
		if bestSum < 0 {
			break
		}
		half := bestLo + (bestHi-bestLo)/2
		k := (u[half-1] + u[half]) / 2
		knots = append(knots, k)
		sort.Float64s(knots)
	}
	return knots, added > 0
}

// fitter holds the normalised data of one fit.
type fitter struct {
	u      []float64
	y      []float64
	degree int
}

// leastSquares fits the least-squares spline on the given interior knots.
func (f *fitter) leastSquares(interior []float64) ([]float64, float64, error) {
	t := clampedKnots(interior, f.degree)
	b := collocation(t, f.degree, f.u)

	var c mat.VecDense
	if err := c.SolveVec(b, mat.NewVecDense(len(f.y), append([]float64{}, f.y...))); err != nil {
		return nil, 0, err
	}
	coef := vecData(&c)
	return coef, f.sumSquares(t, coef), nil
}

// residuals returns squared residuals per point.
func (f *fitter) residuals(interior, coef []float64) []float64 {
	t := clampedKnots(interior, f.degree)
	out := make([]float64, len(f.u))
	for i, ui := range f.u {
		r := f.y[i] - evaluate(t, coef, f.degree, ui)
		out[i] = r * r
	}
	return out
}

func (f *fitter) sumSquares(t, coef []float64) float64 {
	sum := 0.0
	for i, ui := range f.u {
		r := f.y[i] - evaluate(t, coef, f.degree, ui)
		sum += r * r
	}
	return sum
}

// smooth solves for the smoothing parameter p with fp(p) = s on fixed knots.
// fp decreases monotonically in p from the polynomial residual fp0 towards
// the least-squares residual, so bisection on log10(p) converges.
func (f *fitter) smooth(interior []float64, s, fp0 float64) (*Spline, error) {
	t := clampedKnots(interior, f.degree)
	b := collocation(t, f.degree, f.u)
	d := derivativeJumps(t, f.degree)
	if d == nil {
		return nil, fmt.Errorf("%w: no interior knots", ErrDegenerateFit)
	}

	// Balance the penalty against the data rows so that p near 1 is central.
	if nd := mat.Norm(d, 2); nd > 0 {
		d.Scale(mat.Norm(b, 2)/nd, d)
	}

	solve := func(logP float64) ([]float64, float64, error) {
		coef, err := penalized(b, d, f.y, math.Pow(10, logP))
		if err != nil {
			return nil, 0, err
		}
		return coef, f.sumSquares(t, coef), nil
	}

	best := func(logP float64, coef []float64, fp float64) *Spline {
		return &Spline{degree: f.degree, knots: t, coef: coef, fp: fp, p: math.Pow(10, logP)}
	}

	// Bracket the root: fp(lo) > s > fp(hi).
	lo, hi := -logPBound, logPBound
	coef, fp, err := solve(0)
	if err != nil {
		return nil, err
	}
	if math.Abs(fp-s) <= fpTolerance*s {
		return best(0, coef, fp), nil
	}
	if fp > s {
		lo = 0
	} else {
		hi = 0
	}

	var last *Spline
	for i := 0; i < maxBisections; i++ {
		mid := (lo + hi) / 2
		coef, fp, err := solve(mid)
		if err != nil {
			if last != nil {
				return last, nil
			}
			return nil, err
		}
		last = best(mid, coef, fp)
		if math.Abs(fp-s) <= fpTolerance*s {
			return last, nil
		}
		if fp > s {
			lo = mid
		} else {
			hi = mid
		}
	}
	if last == nil {
		return nil, fmt.Errorf("%w: smoothing parameter search failed (fp0=%g)", ErrDegenerateFit, fp0)
	}
	return last, nil
}

// penalized solves min p*|Bc - y|^2 + |Dc|^2 as a stacked least-squares problem.
func penalized(b, d *mat.Dense, y []float64, p float64) ([]float64, error) {
	m, nc := b.Dims()
	nd, _ := d.Dims()
	sp := math.Sqrt(p)

	a := mat.NewDense(m+nd, nc, nil)
	rhs := mat.NewVecDense(m+nd, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < nc; j++ {
			a.Set(i, j, sp*b.At(i, j))
		}
		rhs.SetVec(i, sp*y[i])
	}
	for i := 0; i < nd; i++ {
		for j := 0; j < nc; j++ {
			a.Set(m+i, j, d.At(i, j))
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, rhs); err != nil {
		return nil, err
	}
	return vecData(&c), nil
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
