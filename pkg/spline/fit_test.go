package spline

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestFit_PolynomialWhenResidualSmall(t *testing.T) {
	x := make([]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = 1e9 * 5 * float64(i) // 5 s steps in nanoseconds
		y[i] = 0.01 * 5 * float64(i)
	}

	sp, err := Fit(x, y, 5, 5e-4)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(sp.Interior()) != 0 {
		t.Errorf("Expected polynomial fit, got %d interior knots", len(sp.Interior()))
	}
	if !math.IsInf(sp.SmoothingParameter(), 1) {
		t.Errorf("Polynomial fit reports p=%g", sp.SmoothingParameter())
	}

	for _, sec := range []float64{12.5, 50, 150, 190} {
		got := sp.Eval(sec * 1e9)
		if math.Abs(got-0.01*sec) > 1e-9 {
			t.Errorf("Eval(%gs) = %.12f, want %.12f", sec, got, 0.01*sec)
		}
	}
}

func TestFit_SmoothingReachesTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const m = 200
	const sigma = 0.05

	x := make([]float64, m)
	y := make([]float64, m)
	for i := range x {
		x[i] = float64(i) / (m - 1)
		y[i] = math.Sin(2*math.Pi*x[i]) + sigma*rng.NormFloat64()
	}
	s := m * sigma * sigma

	sp, err := Fit(x, y, 3, s)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	t.Logf("knots=%d fp=%.4f s=%.4f p=%g", len(sp.Interior()), sp.Residual(), s, sp.SmoothingParameter())

	if len(sp.Interior()) == 0 {
		t.Error("A sine cannot be fitted by one cubic within s")
	}
	if sp.Residual() > s*(1+fpTolerance) {
		t.Errorf("Residual %.4f exceeds s=%.4f", sp.Residual(), s)
	}

	maxErr := 0.0
	for i := 1; i < 100; i++ {
		u := float64(i) / 100
		maxErr = math.Max(maxErr, math.Abs(sp.Eval(u)-math.Sin(2*math.Pi*u)))
	}
	if maxErr > 0.15 {
		t.Errorf("Max deviation from the noise-free curve %.3f", maxErr)
	}
}

func TestFit_DegreeOneStaysPiecewiseLinear(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := []float64{0, 0, 0, 0, 0, 1, 2, 3, 4, 5}

	sp, err := Fit(x, y, 1, 1e-3)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if sp.Residual() > 1e-3*(1+fpTolerance) {
		t.Errorf("Residual %g above s", sp.Residual())
	}
	if got := sp.Eval(7); math.Abs(got-3) > 0.05 {
		t.Errorf("Eval(7) = %g, want ~3", got)
	}
}

func TestFit_RejectsInvalidParams(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6}
	y := []float64{0, 1, 2, 3, 4, 5, 6}

	for _, c := range []struct {
		degree int
		s      float64
	}{{0, 1}, {6, 1}, {3, 0}, {3, -1}, {3, math.NaN()}} {
		if _, err := Fit(x, y, c.degree, c.s); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("degree=%d s=%g: expected ErrInvalidParams, got %v", c.degree, c.s, err)
		}
	}
}

func TestFit_RejectsDuplicateX(t *testing.T) {
	x := []float64{0, 1, 2, 2, 3, 4, 5}
	y := []float64{0, 1, 2, 2, 3, 4, 5}
	if _, err := Fit(x, y, 3, 1); !errors.Is(err, ErrDegenerateFit) {
		t.Errorf("Expected ErrDegenerateFit, got %v", err)
	}
}
