// Package buffer implements the sliding fold-weighted buffer: a fixed
// duration window over the most recent data of one channel, continuously
// reconciled against incoming segments.
//
// The buffer always re-anchors its window to the latest end time seen, so
// an incoming segment falls into exactly one of three cases:
//
//	far future  the merged window would start after everything buffered;
//	            the buffer resets and re-initializes from the segment
//	far past    the segment ends before the merged window begins;
//	            the append is rejected and the buffer is untouched
//	join        everything else; the segment is trimmed to the window,
//	            the window shifts forward, and the segment is combined
//	            into the buffer in place
//
// The buffer is designed for a single writer per channel. No internal
// locking is performed; callers managing multiple channels must give each
// its own instance.
package buffer

import (
	"math"

	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// MaxSpanLimit is the largest accepted window, in seconds.
const MaxSpanLimit = 1200.0

// Options configures a FoldBuffer. All fields are fixed at construction.
type Options struct {
	// MaxSpan is the window capacity in seconds. Must be in (0, 1200].
	MaxSpan float64

	// Merge selects how overlapping samples are reconciled on joins.
	Merge trace.MergeMethod

	// FillValue is stored at samples with no content (fold 0).
	// NaN means "no fill" and is the conventional choice.
	FillValue float64
}

// DefaultOptions returns the conventional buffer configuration: a 60 second
// window, fold-weighted averaging, NaN fill.
func DefaultOptions() Options {
	return Options{
		MaxSpan:   60,
		Merge:     trace.AverageCombine,
		FillValue: math.NaN(),
	}
}

// Stats counts append outcomes. Like the buffer itself it is maintained
// without locking and must only be read from the writer goroutine or after
// synchronization.
type Stats struct {
	Appends  int64 // successful appends, including first appends
	Joins    int64 // appends that took the join path
	Resets   int64 // far-future appends that discarded prior content
	Rejected int64 // far-past appends refused with ErrStaleAppend
}

// FoldBuffer is a sliding fold-weighted window over one channel's data.
// Channel identity, sample rate and window length are established by the
// first successful append and immutable afterwards.
type FoldBuffer struct {
	opts  Options
	empty bool
	seg   trace.Segment
	stats Stats
}

// Validate checks the option values against the accepted bounds.
func (o Options) Validate() error {
	if !(o.MaxSpan > 0 && o.MaxSpan <= MaxSpanLimit) {
		return errors.Wrapf(errors.ErrInvalidMaxSpan, "max_span %g", o.MaxSpan)
	}
	if !o.Merge.Valid() {
		return errors.Wrapf(errors.ErrInvalidMerge, "merge method %d", int(o.Merge))
	}
	return nil
}

// New creates an empty FoldBuffer. It fails with a configuration error if
// MaxSpan lies outside (0, 1200] or the merge method is not supported.
func New(opts Options) (*FoldBuffer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &FoldBuffer{opts: opts, empty: true}, nil
}

// Empty reports whether the buffer has ever been populated.
func (b *FoldBuffer) Empty() bool { return b.empty }

// Channel returns the buffer's channel identity ("" while empty).
func (b *FoldBuffer) Channel() string { return b.seg.Channel }

// SampleRate returns the buffer's sample rate (0 while empty).
func (b *FoldBuffer) SampleRate() float64 { return b.seg.SampleRate }

// StartNs returns the timestamp of the oldest sample in the window.
func (b *FoldBuffer) StartNs() int64 { return b.seg.StartNs }

// EndNs returns the timestamp of the newest sample in the window.
func (b *FoldBuffer) EndNs() int64 { return b.seg.EndNs() }

// Len returns the window length in samples (0 while empty).
func (b *FoldBuffer) Len() int {
	if b.empty {
		return 0
	}
	return b.seg.Len()
}

// MaxSpan returns the window capacity in seconds.
func (b *FoldBuffer) MaxSpan() float64 { return b.opts.MaxSpan }

// Stats returns the append outcome counters.
func (b *FoldBuffer) Stats() Stats { return b.stats }

// maxSpanNs returns the window capacity in nanoseconds.
func (b *FoldBuffer) maxSpanNs() int64 {
	return int64(math.Round(b.opts.MaxSpan * 1e9))
}

// capacity returns the window length in samples for the given rate.
func (b *FoldBuffer) capacity(rate float64) int {
	n := int(math.Round(b.opts.MaxSpan * rate))
	if n < 1 {
		n = 1
	}
	return n
}

// Append reconciles seg into the buffer. On the first call it establishes
// the buffer's identity and content; afterwards it dispatches to the
// far-future, far-past or join path. The segment is borrowed for the
// duration of the call and may be trimmed in place, but is never retained.
//
// On any returned error the buffer is byte-for-byte unmodified.
func (b *FoldBuffer) Append(seg *trace.Segment) error {
	if seg == nil || seg.Len() == 0 {
		return errors.ErrEmptySegment
	}
	if len(seg.Fold) != len(seg.Data) {
		return errors.NewInvalidValue("fold", len(seg.Fold), "length must match data")
	}
	if b.empty {
		b.firstAppend(seg)
		return nil
	}
	if seg.Channel != b.seg.Channel {
		return errors.Wrapf(errors.ErrChannelMismatch, "%q vs %q", seg.Channel, b.seg.Channel)
	}
	if seg.SampleRate != b.seg.SampleRate {
		return errors.Wrapf(errors.ErrRateMismatch, "%g vs %g", seg.SampleRate, b.seg.SampleRate)
	}

	segEnd := seg.EndNs()
	bufEnd := b.seg.EndNs()
	newEnd := segEnd
	if bufEnd > newEnd {
		newEnd = bufEnd
	}
	newStart := newEnd - b.maxSpanNs()

	switch {
	case newStart > bufEnd:
		// Far future: nothing currently buffered survives the merged
		// window. Discard and re-initialize. The comparison is against
		// the buffer end, not the segment start: a short segment only
		// slightly past the buffer end still resets when MaxSpan is
		// small. Recency wins over history.
		b.empty = true
		b.firstAppend(seg)
		b.stats.Resets++
		return nil

	case newStart > segEnd:
		// Far past: the segment ends before the merged window begins.
		b.stats.Rejected++
		return errors.Wrapf(errors.ErrStaleAppend,
			"segment predates window by %.3fs", float64(newStart-segEnd)/1e9)

	default:
		// Join: trim the segment to the merged window (no padding),
		// shift our window forward, then combine in place.
		if err := seg.Trim(newStart, newEnd, false, b.opts.FillValue); err != nil {
			return err
		}
		if err := b.Shift(newEnd); err != nil {
			return err
		}
		trace.Combine(&b.seg, seg, b.opts.Merge, b.opts.FillValue)
		b.stats.Appends++
		b.stats.Joins++
		return nil
	}
}

// firstAppend populates the buffer from seg: the segment is trimmed or
// padded to exactly the window length, anchored at its own end time.
// Padding gets the fill value and fold 0.
func (b *FoldBuffer) firstAppend(seg *trace.Segment) {
	n := b.capacity(seg.SampleRate)
	c := seg.Clone()
	// Window of exactly n samples ending at the segment's last sample.
	t0 := c.TimeAt(c.Len() - n)
	// Trim with padding over a window that covers at least the last
	// sample cannot fail.
	_ = c.Trim(t0, c.EndNs(), true, b.opts.FillValue)
	b.seg = *c
	b.empty = false
	b.stats.Appends++
}

// Shift re-anchors the buffer's trailing edge to newEndNs, evicting samples
// that fall out of the window and exposing fill/fold-0 samples at the front
// of time. Shifting backwards is a programming error and fails loudly with
// ErrInvalidShift; the buffer is left unmodified.
func (b *FoldBuffer) Shift(newEndNs int64) error {
	if b.empty {
		return errors.ErrEmptyBuffer
	}
	if newEndNs < b.seg.EndNs() {
		return errors.Wrapf(errors.ErrInvalidShift,
			"new end %d before buffer end %d", newEndNs, b.seg.EndNs())
	}
	n := b.seg.Len()
	nshift := b.seg.IndexOf(newEndNs) - (n - 1)
	if nshift <= 0 {
		return nil
	}

	newStart := b.seg.TimeAt(nshift)
	if nshift >= n {
		// Entire window moves past the buffered content.
		for i := range b.seg.Data {
			b.seg.Data[i] = b.opts.FillValue
			b.seg.Fold[i] = 0
		}
	} else {
		copy(b.seg.Data, b.seg.Data[nshift:])
		copy(b.seg.Fold, b.seg.Fold[nshift:])
		for i := n - nshift; i < n; i++ {
			b.seg.Data[i] = b.opts.FillValue
			b.seg.Fold[i] = 0
		}
	}
	b.seg.StartNs = newStart
	return nil
}

// Snapshot returns a deep copy of the buffer content. The copy is owned by
// the caller; mutating it never affects the buffer. Returns false while the
// buffer is empty.
func (b *FoldBuffer) Snapshot() (*trace.Segment, bool) {
	if b.empty {
		return nil, false
	}
	return b.seg.Clone(), true
}
