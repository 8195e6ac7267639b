// Package trace provides the aligned sample array underlying the sliding
// fold-weighted buffer.
//
// A Segment is a regularly sampled run of values for one channel, paired
// with a fold array recording how many independent observations produced
// each value. Fold 0 marks a sample as empty: its value is a fill value,
// not real content, and downstream consumers must treat it as missing.
//
// All timing is int64 Unix nanoseconds. Sample positions are derived from
// index arithmetic against the segment start rather than by accumulating
// per-sample deltas, so alignment does not drift over long windows.
package trace

import (
	"math"

	"github.com/xtxerr/wavebuf/internal/errors"
)

// Segment is a contiguous, regularly sampled run of one channel's data.
type Segment struct {
	// Channel identifies the logical data channel (e.g. "UW.GNW..HHZ").
	Channel string

	// SampleRate is samples per second.
	SampleRate float64

	// StartNs is the timestamp of Data[0] in Unix nanoseconds.
	StartNs int64

	// Data holds the sample values. Samples with Fold 0 hold a fill value.
	Data []float64

	// Fold holds the observation weight per sample. Same length as Data.
	Fold []float64
}

// New creates a Segment. A nil fold is interpreted as a single observation
// per sample (fold 1 everywhere).
func New(channel string, rate float64, startNs int64, data, fold []float64) (*Segment, error) {
	if len(data) == 0 {
		return nil, errors.ErrEmptySegment
	}
	if rate <= 0 {
		return nil, errors.ErrInvalidRate
	}
	if fold == nil {
		fold = make([]float64, len(data))
		for i := range fold {
			fold[i] = 1
		}
	}
	if len(fold) != len(data) {
		return nil, errors.NewInvalidValue("fold", len(fold), "length must match data")
	}
	return &Segment{
		Channel:    channel,
		SampleRate: rate,
		StartNs:    startNs,
		Data:       data,
		Fold:       fold,
	}, nil
}

// durationNs returns the time spanned by n sample intervals at the given
// rate, rounded to the nearest nanosecond. n may be negative.
func durationNs(rate float64, n int) int64 {
	return int64(math.Round(float64(n) * 1e9 / rate))
}

// Len returns the number of samples.
func (s *Segment) Len() int { return len(s.Data) }

// EndNs returns the timestamp of the last sample.
func (s *Segment) EndNs() int64 {
	return s.StartNs + durationNs(s.SampleRate, len(s.Data)-1)
}

// TimeAt returns the timestamp of sample i. i may lie outside [0, Len),
// which is useful for computing pad targets.
func (s *Segment) TimeAt(i int) int64 {
	return s.StartNs + durationNs(s.SampleRate, i)
}

// IndexOf returns the index of the sample nearest to tNs. The result may
// lie outside [0, Len).
func (s *Segment) IndexOf(tNs int64) int {
	return int(math.Round(float64(tNs-s.StartNs) * s.SampleRate / 1e9))
}

// SpanSeconds returns the time between the first and last sample in seconds.
func (s *Segment) SpanSeconds() float64 {
	return float64(len(s.Data)-1) / s.SampleRate
}

// Clone returns a deep copy of the segment.
func (s *Segment) Clone() *Segment {
	c := *s
	c.Data = append([]float64(nil), s.Data...)
	c.Fold = append([]float64(nil), s.Fold...)
	return &c
}

// Trim cuts the segment to the window [t0Ns, t1Ns] using nearest-sample
// alignment. With pad enabled the segment is extended to cover the full
// window; newly exposed samples get the fill value and fold 0. Without pad
// the window is clamped to the existing samples.
//
// Trim mutates the segment in place. It fails with ErrEmptySegment if the
// clamped window contains no samples.
func (s *Segment) Trim(t0Ns, t1Ns int64, pad bool, fill float64) error {
	i0 := s.IndexOf(t0Ns)
	i1 := s.IndexOf(t1Ns)
	if !pad {
		if i0 < 0 {
			i0 = 0
		}
		if i1 > len(s.Data)-1 {
			i1 = len(s.Data) - 1
		}
	}
	if i1 < i0 {
		return errors.ErrEmptySegment
	}

	n := i1 - i0 + 1
	data := make([]float64, n)
	fold := make([]float64, n)
	for i := 0; i < n; i++ {
		src := i0 + i
		if src >= 0 && src < len(s.Data) {
			data[i] = s.Data[src]
			fold[i] = s.Fold[src]
		} else {
			data[i] = fill
			fold[i] = 0
		}
	}

	s.StartNs = s.TimeAt(i0)
	s.Data = data
	s.Fold = fold
	return nil
}

// CountNonzeroFold returns the number of samples carrying real content.
func (s *Segment) CountNonzeroFold() int {
	n := 0
	for _, f := range s.Fold {
		if f > 0 {
			n++
		}
	}
	return n
}
