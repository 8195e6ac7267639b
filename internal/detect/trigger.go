// Package detect provides threshold triggering and peak statistics over
// buffer snapshots.
//
// Detection operates on read-only segment snapshots taken from the sliding
// buffer; it never mutates buffer state. Samples with fold 0 carry no
// content and can never participate in a trigger.
package detect

import (
	"github.com/xtxerr/wavebuf/internal/trace"
)

// Trigger is a contiguous run of samples at or above a threshold.
type Trigger struct {
	// OnIdx and OffIdx are the first and last sample indexes of the run
	// within the scanned segment (both inclusive).
	OnIdx  int
	OffIdx int

	// OnNs and OffNs are the corresponding timestamps.
	OnNs  int64
	OffNs int64
}

// Len returns the trigger length in samples.
func (t Trigger) Len() int { return t.OffIdx - t.OnIdx + 1 }

// Options configures trigger scanning.
type Options struct {
	// Threshold is the main trigger level.
	Threshold float64

	// ExpandThreshold is the lower envelope level used by ScanExpandable.
	ExpandThreshold float64

	// MinSamples drops expanded triggers shorter than this many samples.
	MinSamples int

	// MaxSamples drops (or truncates, see DropOversize) runs longer than
	// this many samples. Zero means no limit.
	MaxSamples int

	// DropOversize discards runs exceeding MaxSamples instead of
	// truncating them.
	DropOversize bool
}

// DefaultOptions returns the conventional scan configuration for
// probability-like prediction curves in [0, 1].
func DefaultOptions() Options {
	return Options{
		Threshold:       0.2,
		ExpandThreshold: 0.01,
		MinSamples:      15,
		DropOversize:    true,
	}
}

// Scan returns all threshold crossings of seg at opts.Threshold.
// A sample participates only if its fold is nonzero.
func Scan(seg *trace.Segment, opts Options) []Trigger {
	return scanAt(seg, opts.Threshold, opts.MaxSamples, opts.DropOversize)
}

// ScanExpandable returns triggers detected at the main threshold, expanded
// outward to the wider envelope defined by ExpandThreshold. An expanded run
// is kept only if it fully contains a main-threshold run and, when
// DropOversize is set, is at least MinSamples long. This widens narrow
// probability peaks to their full support without admitting noise that
// never reaches the main threshold.
func ScanExpandable(seg *trace.Segment, opts Options) []Trigger {
	mains := scanAt(seg, opts.Threshold, opts.MaxSamples, opts.DropOversize)
	if len(mains) == 0 {
		return nil
	}
	expanded := scanAt(seg, opts.ExpandThreshold, opts.MaxSamples, opts.DropOversize)

	var out []Trigger
	for _, e := range expanded {
		for _, m := range mains {
			if e.OnIdx <= m.OnIdx && m.OffIdx <= e.OffIdx {
				if opts.DropOversize && opts.MinSamples > 0 && e.Len() < opts.MinSamples {
					break
				}
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// scanAt finds contiguous runs of samples with value >= thr and fold > 0.
func scanAt(seg *trace.Segment, thr float64, maxLen int, dropOversize bool) []Trigger {
	var out []Trigger
	on := -1

	flush := func(off int) {
		t := Trigger{OnIdx: on, OffIdx: off}
		if maxLen > 0 && t.Len() > maxLen {
			if dropOversize {
				return
			}
			t.OffIdx = t.OnIdx + maxLen - 1
		}
		t.OnNs = seg.TimeAt(t.OnIdx)
		t.OffNs = seg.TimeAt(t.OffIdx)
		out = append(out, t)
	}

	for i := range seg.Data {
		active := seg.Fold[i] > 0 && seg.Data[i] >= thr
		switch {
		case active && on < 0:
			on = i
		case !active && on >= 0:
			flush(i - 1)
			on = -1
		}
	}
	if on >= 0 {
		flush(len(seg.Data) - 1)
	}
	return out
}
