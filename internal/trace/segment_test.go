package trace

import (
	"math"
	"testing"

	"github.com/xtxerr/wavebuf/internal/errors"
)

func mkSeg(t *testing.T, rate float64, startNs int64, data, fold []float64) *Segment {
	t.Helper()
	s, err := New("UW.GNW..HHZ", rate, startNs, data, fold)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	// Empty data
	if _, err := New("CH", 1, 0, nil, nil); !errors.Is(err, errors.ErrEmptySegment) {
		t.Errorf("expected ErrEmptySegment, got %v", err)
	}

	// Invalid rate
	if _, err := New("CH", 0, 0, []float64{1}, nil); !errors.Is(err, errors.ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}
	if _, err := New("CH", -5, 0, []float64{1}, nil); !errors.Is(err, errors.ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate for negative rate, got %v", err)
	}

	// Nil fold defaults to one observation per sample
	s, err := New("CH", 1, 0, []float64{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i, f := range s.Fold {
		if f != 1 {
			t.Errorf("fold[%d] = %g, want 1", i, f)
		}
	}

	// Mismatched fold length
	if _, err := New("CH", 1, 0, []float64{1, 2}, []float64{1}); err == nil {
		t.Error("expected error for fold length mismatch")
	}
}

func TestTimeArithmetic(t *testing.T) {
	// 40 Hz: 25ms per sample, exactly representable in nanoseconds.
	s := mkSeg(t, 40, 1_000_000_000, make([]float64, 5), nil)

	if got := s.TimeAt(1); got != 1_025_000_000 {
		t.Errorf("TimeAt(1) = %d, want 1025000000", got)
	}
	if got := s.EndNs(); got != 1_100_000_000 {
		t.Errorf("EndNs = %d, want 1100000000", got)
	}
	if got := s.TimeAt(-2); got != 950_000_000 {
		t.Errorf("TimeAt(-2) = %d, want 950000000", got)
	}
	if got := s.IndexOf(1_100_000_000); got != 4 {
		t.Errorf("IndexOf(end) = %d, want 4", got)
	}
	// Nearest-sample rounding
	if got := s.IndexOf(1_012_000_000); got != 0 {
		t.Errorf("IndexOf(+12ms) = %d, want 0", got)
	}
	if got := s.IndexOf(1_013_000_000); got != 1 {
		t.Errorf("IndexOf(+13ms) = %d, want 1", got)
	}
	if got := s.SpanSeconds(); got != 0.1 {
		t.Errorf("SpanSeconds = %g, want 0.1", got)
	}
}

// TestNoDriftOverLongWindows exercises index arithmetic at a rate whose
// sample interval is not an integer nanosecond count. Positions must stay
// consistent under TimeAt/IndexOf round trips across the whole window.
func TestNoDriftOverLongWindows(t *testing.T) {
	// 3 Hz: 333333333.3ns per sample.
	s := mkSeg(t, 3, 0, make([]float64, 3600), nil)
	for _, i := range []int{0, 1, 2, 100, 1799, 3599} {
		if got := s.IndexOf(s.TimeAt(i)); got != i {
			t.Errorf("IndexOf(TimeAt(%d)) = %d", i, got)
		}
	}
	// One hour at 3 Hz spans 1199.666...s between first and last sample.
	wantEnd := int64(math.Round(3599 * 1e9 / 3.0))
	if got := s.EndNs(); got != wantEnd {
		t.Errorf("EndNs = %d, want %d", got, wantEnd)
	}
}

func TestTrimPad(t *testing.T) {
	fill := math.NaN()
	s := mkSeg(t, 1, 0, []float64{0, 1, 2, 3, 4}, nil)

	if err := s.Trim(-5e9, 4e9, true, fill); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if s.Len() != 10 {
		t.Fatalf("Len = %d, want 10", s.Len())
	}
	if s.StartNs != -5e9 {
		t.Errorf("StartNs = %d, want -5e9", s.StartNs)
	}
	for i := 0; i < 5; i++ {
		if s.Fold[i] != 0 {
			t.Errorf("Fold[%d] = %g, want 0", i, s.Fold[i])
		}
		if !math.IsNaN(s.Data[i]) {
			t.Errorf("Data[%d] = %g, want NaN fill", i, s.Data[i])
		}
	}
	for i := 5; i < 10; i++ {
		if s.Data[i] != float64(i-5) {
			t.Errorf("Data[%d] = %g, want %d", i, s.Data[i], i-5)
		}
		if s.Fold[i] != 1 {
			t.Errorf("Fold[%d] = %g, want 1", i, s.Fold[i])
		}
	}
}

func TestTrimClampWithoutPad(t *testing.T) {
	s := mkSeg(t, 1, 0, []float64{0, 1, 2, 3, 4}, nil)

	// Window wider than the segment clamps to existing samples.
	if err := s.Trim(-5e9, 10e9, false, 0); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if s.Len() != 5 || s.StartNs != 0 {
		t.Errorf("clamped trim changed segment: len=%d start=%d", s.Len(), s.StartNs)
	}

	// Inner window cuts.
	if err := s.Trim(1e9, 3e9, false, 0); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if s.Len() != 3 || s.StartNs != 1e9 {
		t.Fatalf("inner trim: len=%d start=%d", s.Len(), s.StartNs)
	}
	if s.Data[0] != 1 || s.Data[2] != 3 {
		t.Errorf("inner trim data = %v", s.Data)
	}
}

func TestTrimEmptyWindow(t *testing.T) {
	s := mkSeg(t, 1, 0, []float64{0, 1, 2}, nil)
	if err := s.Trim(10e9, 12e9, false, 0); !errors.Is(err, errors.ErrEmptySegment) {
		t.Errorf("expected ErrEmptySegment, got %v", err)
	}
}

func TestCloneIndependence(t *testing.T) {
	s := mkSeg(t, 1, 0, []float64{1, 2, 3}, nil)
	c := s.Clone()
	c.Data[0] = 99
	c.Fold[0] = 99
	if s.Data[0] != 1 || s.Fold[0] != 1 {
		t.Error("mutating clone affected original")
	}
}

func TestCountNonzeroFold(t *testing.T) {
	s := mkSeg(t, 1, 0, []float64{1, 2, 3}, []float64{1, 0, 2})
	if got := s.CountNonzeroFold(); got != 2 {
		t.Errorf("CountNonzeroFold = %d, want 2", got)
	}
}
