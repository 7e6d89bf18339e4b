package modepicture

import (
	"math"
	"testing"
)

func TestPointsToMHzLinearRelation(t *testing.T) {
	const n = 1024
	const x0 = 500.0
	for _, zf := range []int{1, 2, 4, 8} {
		freq := pointsToMHz(n, zf, x0)
		if len(freq) != n {
			t.Fatalf("zoom %d: expected %d samples, got %d", zf, n, len(freq))
		}
		for i := range freq {
			want := (float64(i) - x0) / (2000 * float64(zf))
			if math.Abs(freq[i]-want) > 1e-12 {
				t.Fatalf("zoom %d sample %d: expected %g got %g", zf, i, want, freq[i])
			}
		}
	}
}

func TestAxisRoundTrip(t *testing.T) {
	// once frequencies are in a common space, points = freq * 2000
	// regardless of zoom factor; at zoom 1 the round trip recovers the
	// centered point index exactly
	const n = 1024
	const x0 = 512.0
	freq := pointsToMHz(n, 1, x0)
	pts := mhzToPoints(freq)
	for i := range pts {
		if math.Abs(pts[i]-(float64(i)-x0)) > 1e-9 {
			t.Fatalf("sample %d: expected %g got %g", i, float64(i)-x0, pts[i])
		}
	}
}

func TestMHzToPointsIsZoomIndependent(t *testing.T) {
	freq := []float64{-0.25, 0, 0.125}
	pts := mhzToPoints(freq)
	want := []float64{-500, 0, 250}
	for i := range pts {
		if math.Abs(pts[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: expected %g got %g", i, want[i], pts[i])
		}
	}
}
