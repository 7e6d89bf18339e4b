package lsq_test

import (
	"errors"
	"math"
	"testing"

	"github.com/OE-FET/goxepr/lsq"
)

func TestPolyFitRecoversCoefficients(t *testing.T) {
	want := []float64{1.5, -2.0, 0.25, 3.0}
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = -1 + 2*float64(i)/49
		y[i] = lsq.Polyval(want, x[i])
	}
	got, err := lsq.PolyFit(x, y, 3)
	if err != nil {
		t.Fatalf("PolyFit returned error: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-8 {
			t.Errorf("coefficient %d: expected %g got %g", i, want[i], got[i])
		}
	}
}

func TestPolyFitInsufficientSamples(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{1, 2, 3}
	if _, err := lsq.PolyFit(x, y, 7); err == nil {
		t.Error("expected an error fitting degree 7 to 3 samples, got nil")
	}
}

func TestPolyFitLengthMismatch(t *testing.T) {
	if _, err := lsq.PolyFit([]float64{0, 1}, []float64{1}, 1); err == nil {
		t.Error("expected an error for mismatched lengths, got nil")
	}
}

// lorentz is a dip model y = offset - a*(2/pi*w)/(4(x-x0)^2 + w^2) with
// p = [offset, x0, w, a].
func lorentz(x float64, p []float64) float64 {
	num := 2 / math.Pi * p[2]
	den := 4*(x-p[1])*(x-p[1]) + p[2]*p[2]
	return p[0] - p[3]*num/den
}

func TestCurveFitRecoversLorentzianDip(t *testing.T) {
	truth := []float64{2.0, 512, 40, 40 * math.Pi / 2}
	n := 1024
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = lorentz(x[i], truth)
	}

	start := []float64{1.8, 490, 25, 30}
	res, err := lsq.CurveFit(lorentz, x, y, start, nil)
	if err != nil {
		t.Fatalf("CurveFit returned error: %v", err)
	}
	for i := range truth {
		rel := math.Abs(res.Params[i]-truth[i]) / math.Abs(truth[i])
		if rel > 1e-4 {
			t.Errorf("parameter %d: expected %g got %g (relative error %g)", i, truth[i], res.Params[i], rel)
		}
	}
	for i, se := range res.Stderr {
		if math.IsNaN(se) || se < 0 {
			t.Errorf("standard error %d is invalid: %g", i, se)
		}
	}
	if len(res.Fitted) != n {
		t.Errorf("expected %d fitted samples, got %d", n, len(res.Fitted))
	}
}

func TestCurveFitDegenerateModel(t *testing.T) {
	// the model ignores its parameters, so the Jacobian is identically
	// zero and no covariance estimate exists
	flat := func(x float64, p []float64) float64 { return 0 }
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, 2, 3, 4, 5}
	_, err := lsq.CurveFit(flat, x, y, []float64{1, 1}, nil)
	if !errors.Is(err, lsq.ErrNoConvergence) {
		t.Errorf("expected ErrNoConvergence, got %v", err)
	}
}

func TestCurveFitNonFiniteData(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{1, math.NaN(), 3, 4, 5}
	_, err := lsq.CurveFit(lorentz, x, y, []float64{1, 2, 1, 1}, nil)
	if !errors.Is(err, lsq.ErrNoConvergence) {
		t.Errorf("expected ErrNoConvergence, got %v", err)
	}
}

func TestCurveFitRejectsUnderdeterminedProblem(t *testing.T) {
	x := []float64{0, 1}
	y := []float64{1, 2}
	if _, err := lsq.CurveFit(lorentz, x, y, []float64{1, 1, 1, 1}, nil); err == nil {
		t.Error("expected an error with fewer samples than parameters, got nil")
	}
}
