package lsq

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PolyFit fits a polynomial of the given degree to the samples (x, y) by
// ordinary least squares and returns the coefficients in ascending order,
// c[0] + c[1]*x + ... + c[degree]*x^degree.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	npts := len(x)
	ncoef := degree + 1
	if len(y) != npts {
		return nil, fmt.Errorf("lsq: x and y length mismatch, %d != %d", npts, len(y))
	}
	if degree < 0 {
		return nil, fmt.Errorf("lsq: invalid polynomial degree %d", degree)
	}
	if npts < ncoef {
		return nil, fmt.Errorf("lsq: need at least %d samples for a degree %d fit, have %d", ncoef, degree, npts)
	}

	vand := mat.NewDense(npts, ncoef, nil)
	for i := 0; i < npts; i++ {
		v := 1.0
		for j := 0; j < ncoef; j++ {
			vand.Set(i, j, v)
			v *= x[i]
		}
	}
	rhs := mat.NewDense(npts, 1, y)

	var sol mat.Dense
	if err := sol.Solve(vand, rhs); err != nil {
		return nil, fmt.Errorf("lsq: polynomial fit is singular: %w", err)
	}

	coef := make([]float64, ncoef)
	for j := 0; j < ncoef; j++ {
		coef[j] = sol.At(j, 0)
	}
	return coef, nil
}

// Polyval evaluates a polynomial with ascending coefficients at x using
// Horner's rule.
func Polyval(coef []float64, x float64) float64 {
	v := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		v = v*x + coef[i]
	}
	return v
}
