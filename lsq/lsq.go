// Package lsq provides least squares fitting routines: ordinary least
// squares against a polynomial basis, and Levenberg-Marquardt nonlinear
// fitting with per-parameter standard errors from the covariance estimate.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when the nonlinear solver fails to produce
// finite parameters or a finite covariance estimate.
var ErrNoConvergence = errors.New("lsq: nonlinear fit did not converge")

// Model evaluates a scalar model function at x for parameter vector p.
type Model func(x float64, p []float64) float64

// Settings controls the Levenberg-Marquardt iteration.
type Settings struct {
	// MaxIterations is the iteration budget before giving up.
	MaxIterations int

	// TolSSR stops the iteration when the relative reduction of the
	// residual sum of squares in an accepted step falls below it.
	TolSSR float64

	// TolGrad stops the iteration when the infinity norm of the gradient
	// of the objective falls below it.
	TolGrad float64

	// InitialDamping is the starting Levenberg-Marquardt damping factor.
	InitialDamping float64
}

// DefaultSettings returns the settings used when CurveFit receives nil.
func DefaultSettings() *Settings {
	return &Settings{
		MaxIterations:  200,
		TolSSR:         1e-10,
		TolGrad:        1e-12,
		InitialDamping: 1e-3,
	}
}

// Result holds the outcome of a converged nonlinear fit.
type Result struct {
	// Params are the best-fit parameter values.
	Params []float64

	// Stderr are the standard errors of the parameters, computed from
	// the diagonal of the covariance estimate.
	Stderr []float64

	// Covariance is the parameter covariance estimate s^2 (J^T J)^-1.
	Covariance *mat.Dense

	// SSR is the residual sum of squares at the solution.
	SSR float64

	// Fitted is the model evaluated at the solution for every sample.
	Fitted []float64

	// Iterations is the number of accepted steps taken.
	Iterations int
}

// CurveFit fits m to the samples (x, y) by Levenberg-Marquardt least
// squares starting from p0.  The Jacobian is computed by finite
// differences.  All parameters float freely; no bounds are applied.
func CurveFit(m Model, x, y, p0 []float64, s *Settings) (Result, error) {
	if s == nil {
		s = DefaultSettings()
	}
	npts := len(x)
	npar := len(p0)
	if len(y) != npts {
		return Result{}, fmt.Errorf("lsq: x and y length mismatch, %d != %d", npts, len(y))
	}
	if npar == 0 {
		return Result{}, errors.New("lsq: no parameters to fit")
	}
	if npts <= npar {
		return Result{}, fmt.Errorf("lsq: need more samples (%d) than parameters (%d)", npts, npar)
	}

	p := make([]float64, npar)
	copy(p, p0)

	eval := func(dst, pp []float64) {
		for i := range x {
			dst[i] = m(x[i], pp)
		}
	}
	residSSR := func(pp []float64, rdst []float64) float64 {
		ssr := 0.0
		for i := range x {
			r := y[i] - m(x[i], pp)
			rdst[i] = r
			ssr += r * r
		}
		return ssr
	}

	r := make([]float64, npts)
	rTrial := make([]float64, npts)
	ssr := residSSR(p, r)
	if !isFinite(ssr) {
		return Result{}, fmt.Errorf("%w: non-finite residuals at the starting point", ErrNoConvergence)
	}

	var (
		jac    = mat.NewDense(npts, npar, nil)
		jtj    = mat.NewDense(npar, npar, nil)
		damped = mat.NewDense(npar, npar, nil)
		grad   = mat.NewVecDense(npar, nil)
		delta  = mat.NewVecDense(npar, nil)
		rVec   = mat.NewVecDense(npts, r)
		pTrial = make([]float64, npar)
	)

	lambda := s.InitialDamping
	converged := false
	iters := 0

Outer:
	for iter := 0; iter < s.MaxIterations; iter++ {
		fd.Jacobian(jac, eval, p, nil)
		jtj.Mul(jac.T(), jac)
		grad.MulVec(jac.T(), rVec)

		if mat.Norm(grad, math.Inf(1)) < s.TolGrad {
			converged = true
			break
		}

		// try steps with increasing damping until one reduces the SSR
		for {
			damped.Copy(jtj)
			for i := 0; i < npar; i++ {
				d := jtj.At(i, i)
				if d == 0 {
					d = 1
				}
				damped.Set(i, i, d*(1+lambda))
			}
			if err := delta.SolveVec(damped, grad); err != nil {
				lambda *= 10
				if lambda > 1e12 {
					return Result{}, fmt.Errorf("%w: singular normal equations", ErrNoConvergence)
				}
				continue
			}
			for i := range p {
				pTrial[i] = p[i] + delta.AtVec(i)
			}
			ssrT := residSSR(pTrial, rTrial)
			if isFinite(ssrT) && ssrT < ssr {
				improvement := ssr - ssrT
				copy(p, pTrial)
				copy(r, rTrial)
				ssr = ssrT
				iters++
				lambda = math.Max(lambda/10, 1e-12)
				if improvement <= s.TolSSR*ssr || ssr < 1e-20 {
					converged = true
					break Outer
				}
				break
			}
			lambda *= 10
			if lambda > 1e12 {
				// no damping level reduces the residual any further:
				// the iterate is a minimum to machine precision
				converged = true
				break Outer
			}
		}
	}
	if !converged {
		return Result{}, fmt.Errorf("%w: no sufficient reduction within %d iterations", ErrNoConvergence, s.MaxIterations)
	}
	if !isFinite(floats.Sum(p)) {
		return Result{}, fmt.Errorf("%w: non-finite parameters", ErrNoConvergence)
	}

	// covariance estimate at the solution, without damping
	fd.Jacobian(jac, eval, p, nil)
	jtj.Mul(jac.T(), jac)
	cov := mat.NewDense(npar, npar, nil)
	if err := cov.Inverse(jtj); err != nil {
		return Result{}, fmt.Errorf("%w: singular covariance estimate", ErrNoConvergence)
	}
	s2 := ssr / float64(npts-npar)
	cov.Scale(s2, cov)

	stderr := make([]float64, npar)
	for i := range stderr {
		v := cov.At(i, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, fmt.Errorf("%w: non-finite covariance estimate", ErrNoConvergence)
		}
		stderr[i] = math.Sqrt(math.Abs(v))
	}

	fitted := make([]float64, npts)
	eval(fitted, p)

	return Result{
		Params:     p,
		Stderr:     stderr,
		Covariance: cov,
		SSR:        ssr,
		Fitted:     fitted,
		Iterations: iters,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
