/*Package modepicture implements the mode picture analysis for an ESR
spectrometer cavity.

A mode picture is a recorded cavity resonance absorption curve.  Scans
recorded at several zoom factors are rescaled onto a common frequency
axis and merged, a composite model (degree 7 polynomial background minus
a Lorentzian dip) is fit to the merged curve, and the cavity quality
factor is derived from the fitted dip width.  Mode pictures can be saved
to and loaded from tab-delimited text files with a metadata header.
*/
package modepicture

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/OE-FET/goxepr/mathx"
)

// pointsPerMHz is the fixed scale between the zoom 1 point axis and the
// frequency axis: one point spans 1e-3/2 MHz.
const pointsPerMHz = 2000.0

// Dataset maps zoom factors to absorption curves recorded at that zoom.
// All curves must have the same sample count.
type Dataset map[int][]float64

func (d Dataset) validate() error {
	if len(d) == 0 {
		return ValidationError{Reason: "no zoom factors"}
	}
	n := -1
	for zf, curve := range d {
		if zf < 1 {
			return ValidationError{Reason: fmt.Sprintf("zoom factor %d is not positive", zf)}
		}
		if len(curve) == 0 {
			return ValidationError{Reason: fmt.Sprintf("curve for zoom factor %d is empty", zf)}
		}
		if n == -1 {
			n = len(curve)
		} else if len(curve) != n {
			return ValidationError{Reason: fmt.Sprintf("curve lengths disagree: %d and %d samples", n, len(curve))}
		}
	}
	return nil
}

// zoomFactors returns the dataset's zoom factors in ascending order.
func (d Dataset) zoomFactors() []int {
	out := make([]int, 0, len(d))
	for zf := range d {
		out = append(out, zf)
	}
	sort.Ints(out)
	return out
}

// ModePicture owns one combined resonance dataset together with its fit
// and the derived Q-value.  Construction either fully succeeds or fails;
// there is no partial state.
type ModePicture struct {
	// FreqMHz is the combined frequency axis in MHz, ascending.
	FreqMHz []float64

	// Points is the point axis recomputed from FreqMHz at zoom 1.
	Points []float64

	// Abs is the microwave absorption in a.u., paired with FreqMHz.
	Abs []float64

	// Freq0 is the cavity center frequency in GHz.
	Freq0 float64

	// Fit is the background + dip fit of the combined curve.
	Fit FitResult

	// QValue is the cavity quality factor, rounded to one decimal.
	QValue float64

	// QValueStderr is the 1 sigma confidence bound of QValue.
	QValueStderr float64

	// Metadata is the ordered header key/value mapping.
	Metadata *Metadata
}

// pointsToMHz converts a point axis of length nPoints to MHz for the
// given zoom factor, centered so that x0 maps to zero frequency.
func pointsToMHz(nPoints, zoom int, x0 float64) []float64 {
	out := make([]float64, nPoints)
	scale := 1e-3 / (2 * float64(zoom))
	for i := range out {
		out[i] = scale * (float64(i) - x0)
	}
	return out
}

// mhzToPoints recomputes the point axis from a frequency axis.  Once
// frequencies are in a common space the relation is zoom independent.
func mhzToPoints(freq []float64) []float64 {
	out := make([]float64, len(freq))
	for i := range out {
		out[i] = pointsPerMHz * freq[i]
	}
	return out
}

// FromDataset builds a ModePicture from raw multi-zoom scan data and the
// cavity center frequency in GHz.  Each curve is fit on its raw point
// axis to locate its dip center, rescaled to MHz, and the union of all
// curves is sorted by frequency and fit once more to derive the Q-value.
// meta may be nil.
func FromDataset(data Dataset, freq0 float64, meta *Metadata) (*ModePicture, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = NewMetadata()
	}

	zooms := data.zoomFactors()
	n := len(data[zooms[0]])
	xPoints := mathx.Arange(n)

	freq := make([]float64, 0, n*len(zooms))
	abs := make([]float64, 0, n*len(zooms))
	for _, zf := range zooms {
		fit, err := fitModePicture(xPoints, data[zf])
		if err != nil {
			return nil, fmt.Errorf("fitting zoom factor %d: %w", zf, err)
		}
		freq = append(freq, pointsToMHz(n, zf, fit.Center)...)
		abs = append(abs, data[zf]...)
	}

	// sort the union by ascending frequency, keeping pairs together
	inds := make([]int, len(freq))
	floats.Argsort(freq, inds)
	sortedAbs := make([]float64, len(abs))
	for i, idx := range inds {
		sortedAbs[i] = abs[idx]
	}

	mp := &ModePicture{
		FreqMHz:  freq,
		Points:   mhzToPoints(freq),
		Abs:      sortedAbs,
		Freq0:    freq0,
		Metadata: meta,
	}
	if err := mp.refit(); err != nil {
		return nil, err
	}
	mp.stampMetadata()
	return mp, nil
}

// refit runs the background + dip fit on the combined curve and derives
// the Q-value.  The combined axis is already in absolute frequency
// units, so the effective zoom factor is 1.
func (mp *ModePicture) refit() error {
	fit, err := fitModePicture(mp.Points, mp.Abs)
	if err != nil {
		return err
	}
	mp.Fit = fit
	mp.QValue = qFromWidth(mp.Freq0, fit.Width, 1)
	mp.QValueStderr = qStderrFromWidth(mp.Freq0, fit.Width, fit.WidthStderr)
	return nil
}

func (mp *ModePicture) stampMetadata() {
	mp.Metadata.Set("Time", time.Now().Format("15:04, 02/01/2006"))
	mp.Metadata.Set("Frequency", strconv.FormatFloat(mp.Freq0, 'f', -1, 64)+" GHz")
	mp.Metadata.Set("QValue", strconv.FormatFloat(mp.QValue, 'f', 1, 64))
	mp.Metadata.Set("QValueErr", strconv.FormatFloat(mp.QValueStderr, 'f', 1, 64))
}

// Len returns the number of samples in the combined curve.
func (mp *ModePicture) Len() int {
	return len(mp.Abs)
}

// String summarizes the mode picture.
func (mp *ModePicture) String() string {
	return fmt.Sprintf("<ModePicture(QValue = %.1f+/-%.1f, freq = %.4f GHz)>", mp.QValue, mp.QValueStderr, mp.Freq0)
}
