package spline

import (
	"math"
	"testing"
)

func TestBasisFuncs_PartitionOfUnity(t *testing.T) {
	for degree := 1; degree <= MaxDegree; degree++ {
		knots := clampedKnots([]float64{0.2, 0.35, 0.7}, degree)
		nc := len(knots) - degree - 1
		for _, u := range []float64{0, 0.1, 0.2, 0.5, 0.69, 0.7, 0.99, 1} {
			l := findSpan(knots, degree, nc, u)
			sum := 0.0
			for _, v := range basisFuncs(knots, degree, l, u) {
				if v < -1e-12 {
					t.Errorf("degree %d u=%g: negative basis value %g", degree, u, v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Errorf("degree %d u=%g: basis sums to %g", degree, u, sum)
			}
		}
	}
}

func TestFindSpan(t *testing.T) {
	knots := clampedKnots([]float64{0.25, 0.5}, 2) // 0 0 0 .25 .5 1 1 1
	nc := len(knots) - 3
	cases := map[float64]int{0: 2, 0.1: 2, 0.25: 3, 0.4: 3, 0.5: 4, 0.9: 4, 1: 4}
	for u, want := range cases {
		if got := findSpan(knots, 2, nc, u); got != want {
			t.Errorf("findSpan(%g) = %d, want %d", u, got, want)
		}
	}
}

func TestDerivativeJumps_Linear(t *testing.T) {
	knots := clampedKnots([]float64{0.5}, 1)
	d := derivativeJumps(knots, 1)
	if d == nil {
		t.Fatal("Expected one interior knot row")
	}
	r, c := d.Dims()
	if r != 1 || c != 3 {
		t.Fatalf("Expected 1x3 matrix, got %dx%d", r, c)
	}
	want := []float64{2, -4, 2}
	for j, w := range want {
		if math.Abs(d.At(0, j)-w) > 1e-12 {
			t.Errorf("D[0][%d] = %g, want %g", j, d.At(0, j), w)
		}
	}

	if derivativeJumps(clampedKnots(nil, 3), 3) != nil {
		t.Error("No interior knots means no penalty rows")
	}
}

func TestDerivativeJumps_PolynomialHasNoJumps(t *testing.T) {
	// Coefficients of a global cubic on any knot set have zero third-derivative jumps.
	degree := 3
	knots := clampedKnots([]float64{0.3, 0.6}, degree)
	u := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
	y := make([]float64, len(u))
	for i, ui := range u {
		y[i] = 1 - 2*ui + 3*ui*ui*ui
	}
	f := &fitter{u: u, y: y, degree: degree}
	coef, fp, err := f.leastSquares([]float64{0.3, 0.6})
	if err != nil {
		t.Fatalf("leastSquares failed: %v", err)
	}
	if fp > 1e-20 {
		t.Errorf("Expected exact fit, fp=%g", fp)
	}

	d := derivativeJumps(knots, degree)
	rows, _ := d.Dims()
	for i := 0; i < rows; i++ {
		jump := 0.0
		for j, c := range coef {
			jump += d.At(i, j) * c
		}
		if math.Abs(jump) > 1e-6 {
			t.Errorf("Knot %d: jump %g, want 0", i, jump)
		}
	}
}
