package detect

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// PeakStats summarizes a probability peak inside a trigger window, treating
// the sample curve y = f(t) as an unnormalized density over time.
type PeakStats struct {
	// PeakNs is the timestamp of the maximum value; PeakValue the maximum.
	PeakNs    int64
	PeakValue float64

	// MeanNs is the curve-weighted mean time of the peak.
	MeanNs int64

	// StdSec is the curve-weighted standard deviation in seconds, a proxy
	// for peak width.
	StdSec float64

	// Skew is the curve-weighted third standardized moment. Near-zero for
	// symmetric peaks.
	Skew float64

	// MedianNs, Q16Ns and Q84Ns are curve quantile times. For a normal
	// peak, Q84-Q16 approximates two standard deviations.
	MedianNs int64
	Q16Ns    int64
	Q84Ns    int64

	// Samples is the number of contributing (nonzero fold) samples.
	Samples int
}

// quantileAccuracy is the DDSketch relative accuracy used for curve
// quantiles. 1% matches the aggregation default used elsewhere.
const quantileAccuracy = 0.01

// Peak computes weighted statistics for one trigger window of seg.
// Samples with fold 0 contribute nothing. Fails with ErrEmptySegment when
// the window holds no usable mass.
func Peak(seg *trace.Segment, trg Trigger) (PeakStats, error) {
	if trg.OnIdx < 0 || trg.OffIdx >= seg.Len() || trg.OffIdx < trg.OnIdx {
		return PeakStats{}, errors.NewInvalidValue("trigger", trg, "window outside segment")
	}

	var sumW, sumWX float64
	peakVal := math.Inf(-1)
	peakIdx := -1
	samples := 0

	// First pass: total mass, weighted mean, peak position. Time is taken
	// relative to the trigger onset in seconds to keep the arithmetic well
	// conditioned.
	for i := trg.OnIdx; i <= trg.OffIdx; i++ {
		if seg.Fold[i] <= 0 {
			continue
		}
		y := seg.Data[i]
		if y < 0 {
			continue
		}
		x := float64(seg.TimeAt(i)-trg.OnNs) / 1e9
		sumW += y
		sumWX += y * x
		samples++
		if y > peakVal {
			peakVal = y
			peakIdx = i
		}
	}
	if samples == 0 || sumW <= 0 {
		return PeakStats{}, errors.ErrEmptySegment
	}
	mean := sumWX / sumW

	// Second pass: central moments and the quantile sketch.
	sketch, err := ddsketch.NewDefaultDDSketch(quantileAccuracy)
	if err != nil {
		return PeakStats{}, errors.Wrap(err, "create sketch")
	}
	var m2, m3 float64
	for i := trg.OnIdx; i <= trg.OffIdx; i++ {
		if seg.Fold[i] <= 0 || seg.Data[i] < 0 {
			continue
		}
		y := seg.Data[i]
		x := float64(seg.TimeAt(i)-trg.OnNs) / 1e9
		d := x - mean
		m2 += y * d * d
		m3 += y * d * d * d
		if y > 0 {
			if err := sketch.AddWithCount(x, y); err != nil {
				return PeakStats{}, errors.Wrap(err, "add to sketch")
			}
		}
	}
	variance := m2 / sumW
	std := math.Sqrt(variance)
	skew := 0.0
	if std > 0 {
		skew = (m3 / sumW) / (std * std * std)
	}

	toNs := func(xSec float64) int64 {
		return trg.OnNs + int64(math.Round(xSec*1e9))
	}

	q16, err := sketch.GetValueAtQuantile(0.16)
	if err != nil {
		return PeakStats{}, errors.Wrap(err, "quantile 0.16")
	}
	q50, err := sketch.GetValueAtQuantile(0.50)
	if err != nil {
		return PeakStats{}, errors.Wrap(err, "quantile 0.50")
	}
	q84, err := sketch.GetValueAtQuantile(0.84)
	if err != nil {
		return PeakStats{}, errors.Wrap(err, "quantile 0.84")
	}

	return PeakStats{
		PeakNs:    seg.TimeAt(peakIdx),
		PeakValue: peakVal,
		MeanNs:    toNs(mean),
		StdSec:    std,
		Skew:      skew,
		MedianNs:  toNs(q50),
		Q16Ns:     toNs(q16),
		Q84Ns:     toNs(q84),
		Samples:   samples,
	}, nil
}
