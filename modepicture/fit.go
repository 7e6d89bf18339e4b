package modepicture

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/OE-FET/goxepr/lsq"
	"github.com/OE-FET/goxepr/mathx"
)

// degree of the polynomial background, matching the instrument software
const polyDegree = 7

// lorentzPeak is a Lorentzian with area a, full width at half maximum w,
// and center x0.
func lorentzPeak(x, x0, w, a float64) float64 {
	num := 2 / math.Pi * w
	den := 4*(x-x0)*(x-x0) + w*w
	return a * num / den
}

// FitResult holds the converged background + dip fit of a mode picture.
type FitResult struct {
	// Center is the fitted dip center x0 on the point axis.
	Center       float64
	CenterStderr float64

	// Width is the fitted FWHM w of the dip in points.  Width and its
	// standard error are always non-negative.
	Width       float64
	WidthStderr float64

	// Area is the fitted dip area a.
	Area       float64
	AreaStderr float64

	// Poly are the background coefficients c0..c7.  They apply to the
	// normalized abscissa (x-mid)/halfspan, not to raw points.
	Poly       []float64
	PolyStderr []float64

	// Fitted is the full model evaluated at every input sample.
	Fitted []float64

	// SSR is the residual sum of squares at the solution.
	SSR float64
}

// startingPoint holds the heuristic first-guess parameters for the dip.
type startingPoint struct {
	center   float64
	fwhm     float64
	area     float64
	baseline float64
}

// fitStartingPoint locates the dip and estimates plausible starting
// values for the least squares fit.
func fitStartingPoint(x, y []float64) startingPoint {
	n := len(y)
	yMin := floats.Min(y)
	center := x[floats.MinIdx(y)]

	// baseline from the first and last quartile of the scan
	q := n / 4
	if q < 1 {
		q = 1
	}
	bs1 := stat.Mean(y[:q], nil)
	bs2 := stat.Mean(y[n-q:], nil)
	baseline := (bs1 + bs2) / 2

	height := baseline - yMin

	// FWHM from the half-maximum crossing, floored at one point
	var lo, hi float64
	found := false
	for i := range y {
		if y[i] < yMin+height/2 {
			if !found || x[i] < lo {
				lo = x[i]
			}
			if !found || x[i] > hi {
				hi = x[i]
			}
			found = true
		}
	}
	fwhm := 1.0
	if found {
		fwhm = math.Max(hi-lo, 1)
	}

	return startingPoint{
		center:   center,
		fwhm:     fwhm,
		area:     height * fwhm * math.Pi / 2,
		baseline: baseline,
	}
}

// fitModePicture fits the composite model P(x) - L(x) to the samples: a
// degree 7 polynomial background minus a Lorentzian dip.  The polynomial
// is seeded by an ordinary least squares fit to the samples outside
// 3 FWHM of the estimated dip center, then every parameter is refined
// jointly.  The polynomial is evaluated on a normalized abscissa so the
// degree 7 terms stay conditioned; the Lorentzian parameters are in raw
// points.
func fitModePicture(x, y []float64) (FitResult, error) {
	sp := fitStartingPoint(x, y)

	xMin := floats.Min(x)
	xMax := floats.Max(x)
	mid := (xMin + xMax) / 2
	half := (xMax - xMin) / 2
	if half == 0 {
		half = 1
	}
	norm := func(xv float64) float64 { return (xv - mid) / half }

	// isolate the background from the resonance dip
	var uBg, yBg []float64
	for i := range x {
		if x[i] < sp.center-3*sp.fwhm || x[i] > sp.center+3*sp.fwhm {
			uBg = append(uBg, norm(x[i]))
			yBg = append(yBg, y[i])
		}
	}
	coef, err := lsq.PolyFit(uBg, yBg, polyDegree)
	if err != nil {
		// dip swallows nearly the whole scan: seed with a flat
		// background at the estimated baseline
		coef = make([]float64, polyDegree+1)
		coef[0] = sp.baseline
	}

	p0 := make([]float64, 0, polyDegree+4)
	p0 = append(p0, coef...)
	p0 = append(p0, sp.center, sp.fwhm, sp.area)

	model := func(xv float64, p []float64) float64 {
		return lsq.Polyval(p[:polyDegree+1], norm(xv)) - lorentzPeak(xv, p[polyDegree+1], p[polyDegree+2], p[polyDegree+3])
	}

	res, err := lsq.CurveFit(model, x, y, p0, nil)
	if err != nil {
		return FitResult{}, err
	}

	nc := polyDegree + 1
	return FitResult{
		Center:       res.Params[nc],
		CenterStderr: res.Stderr[nc],
		Width:        math.Abs(res.Params[nc+1]),
		WidthStderr:  math.Abs(res.Stderr[nc+1]),
		Area:         res.Params[nc+2],
		AreaStderr:   res.Stderr[nc+2],
		Poly:         res.Params[:nc],
		PolyStderr:   res.Stderr[:nc],
		Fitted:       res.Fitted,
		SSR:          res.SSR,
	}, nil
}

// qFromWidth converts a fitted FWHM in points at the given zoom factor
// to a Q-value, rounded to one decimal.
func qFromWidth(freq0, width float64, zoom int) float64 {
	deltaFreq := width * 1e-3 / (2 * float64(zoom))
	return mathx.Round(freq0/deltaFreq, 0.1)
}

// qStderrFromWidth propagates the width standard error to the Q-value.
// The combined curve is always in absolute frequency units, so the zoom
// divisor is fixed at 2.
func qStderrFromWidth(freq0, width, widthStderr float64) float64 {
	deltaFreq := width * 1e-3 / 2
	deltaFreqStderr := widthStderr * 1e-3 / 2
	return mathx.Round(freq0/(deltaFreq*deltaFreq)*deltaFreqStderr, 0.1)
}
