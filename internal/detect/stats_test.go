package detect

import (
	"math"
	"testing"

	"github.com/xtxerr/wavebuf/internal/errors"
)

func TestPeakSymmetricTriangle(t *testing.T) {
	// Triangular peak at 100 Hz: rises linearly to 1 at sample 50, falls
	// back to 0 at sample 100. Symmetric around t=0.5s.
	const n = 101
	data := make([]float64, n)
	for i := range data {
		data[i] = 1 - math.Abs(float64(i)-50)/50
	}
	seg := mkSeg(t, 100, 0, data, nil)
	trg := Trigger{OnIdx: 0, OffIdx: n - 1, OnNs: seg.TimeAt(0), OffNs: seg.TimeAt(n - 1)}

	st, err := Peak(seg, trg)
	if err != nil {
		t.Fatalf("Peak: %v", err)
	}

	if st.PeakNs != 500_000_000 {
		t.Errorf("PeakNs = %d, want 500ms", st.PeakNs)
	}
	if st.PeakValue != 1 {
		t.Errorf("PeakValue = %g, want 1", st.PeakValue)
	}
	// Symmetry: mean at the center, skew near zero.
	if d := st.MeanNs - 500_000_000; d < -5_000_000 || d > 5_000_000 {
		t.Errorf("MeanNs = %d, want 500ms within 5ms", st.MeanNs)
	}
	if math.Abs(st.Skew) > 0.05 {
		t.Errorf("Skew = %g, want ~0 for a symmetric peak", st.Skew)
	}
	if st.StdSec <= 0 || st.StdSec > 0.5 {
		t.Errorf("StdSec = %g, want a positive width below the window", st.StdSec)
	}
	// Quantiles: ordered around the center, median near it. The sketch is
	// approximate, so the bounds are loose.
	if !(st.Q16Ns < st.MedianNs && st.MedianNs < st.Q84Ns) {
		t.Errorf("quantiles not ordered: q16=%d med=%d q84=%d", st.Q16Ns, st.MedianNs, st.Q84Ns)
	}
	if d := st.MedianNs - 500_000_000; d < -50_000_000 || d > 50_000_000 {
		t.Errorf("MedianNs = %d, want 500ms within 50ms", st.MedianNs)
	}
	if st.Samples != n {
		t.Errorf("Samples = %d, want %d", st.Samples, n)
	}
}

func TestPeakSkewedCurve(t *testing.T) {
	// Fast rise, slow decay: mass sits right of the peak, skew positive.
	data := []float64{0.1, 1.0, 0.8, 0.6, 0.45, 0.3, 0.2, 0.12, 0.06, 0.02}
	seg := mkSeg(t, 1, 0, data, nil)
	trg := Trigger{OnIdx: 0, OffIdx: 9, OnNs: 0, OffNs: seg.TimeAt(9)}

	st, err := Peak(seg, trg)
	if err != nil {
		t.Fatalf("Peak: %v", err)
	}
	if st.PeakNs != 1e9 {
		t.Errorf("PeakNs = %d, want 1e9", st.PeakNs)
	}
	if st.Skew <= 0 {
		t.Errorf("Skew = %g, want positive for a right tail", st.Skew)
	}
	if st.MeanNs <= st.PeakNs {
		t.Errorf("MeanNs = %d, want past the peak for a right tail", st.MeanNs)
	}
}

func TestPeakIgnoresEmptySamples(t *testing.T) {
	seg := mkSeg(t, 1, 0,
		[]float64{0.5, 9.0, 0.5},
		[]float64{1, 0, 1})
	trg := Trigger{OnIdx: 0, OffIdx: 2, OnNs: 0, OffNs: 2e9}

	st, err := Peak(seg, trg)
	if err != nil {
		t.Fatalf("Peak: %v", err)
	}
	if st.PeakValue != 0.5 {
		t.Errorf("PeakValue = %g, an empty sample participated", st.PeakValue)
	}
	if st.Samples != 2 {
		t.Errorf("Samples = %d, want 2", st.Samples)
	}
}

func TestPeakErrors(t *testing.T) {
	seg := mkSeg(t, 1, 0, []float64{0.5, 0.5}, []float64{0, 0})
	trg := Trigger{OnIdx: 0, OffIdx: 1, OnNs: 0, OffNs: 1e9}
	if _, err := Peak(seg, trg); !errors.Is(err, errors.ErrEmptySegment) {
		t.Errorf("expected ErrEmptySegment for all-empty window, got %v", err)
	}

	if _, err := Peak(seg, Trigger{OnIdx: 0, OffIdx: 5}); err == nil {
		t.Error("expected error for window outside segment")
	}
	if _, err := Peak(seg, Trigger{OnIdx: 1, OffIdx: 0}); err == nil {
		t.Error("expected error for inverted window")
	}
}
