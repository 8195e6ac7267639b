package trace

import (
	"fmt"

	"github.com/xtxerr/wavebuf/internal/errors"
)

// MergeMethod selects how overlapping samples are reconciled when a segment
// is combined into a buffer.
type MergeMethod int

const (
	// MaskZero discards conflicting data: where both sides carry content
	// the result is marked empty (fold 0, fill value).
	MaskZero MergeMethod = iota

	// MaxCombine keeps the larger value at overlaps and accumulates fold.
	MaxCombine

	// AverageCombine takes the fold-weighted average at overlaps and
	// accumulates fold.
	AverageCombine
)

// String returns a human-readable representation of the MergeMethod.
func (m MergeMethod) String() string {
	switch m {
	case MaskZero:
		return "mask_zero"
	case MaxCombine:
		return "max_combine"
	case AverageCombine:
		return "average_combine"
	default:
		return fmt.Sprintf("MergeMethod(%d)", int(m))
	}
}

// ParseMergeMethod parses a merge method name as used in config files.
func ParseMergeMethod(s string) (MergeMethod, error) {
	switch s {
	case "mask_zero":
		return MaskZero, nil
	case "max_combine":
		return MaxCombine, nil
	case "average_combine":
		return AverageCombine, nil
	default:
		return 0, errors.Wrapf(errors.ErrInvalidMerge, "merge method %q", s)
	}
}

// Valid reports whether m is one of the supported methods.
func (m MergeMethod) Valid() bool {
	return m == MaskZero || m == MaxCombine || m == AverageCombine
}

// Combine folds src into dst in place, matching samples by nearest-sample
// alignment on dst's grid. Positions outside dst's window and positions
// where src carries no content (fold 0) are left untouched. Where only src
// carries content, dst adopts src's value and fold outright. Where both
// sides carry content the merge method decides:
//
//	MaskZero        result is emptied (fill value, fold 0)
//	MaxCombine      max(value), fold summed
//	AverageCombine  fold-weighted average, fold summed
func Combine(dst, src *Segment, method MergeMethod, fill float64) {
	for i := range src.Data {
		sf := src.Fold[i]
		if sf <= 0 {
			continue
		}
		j := dst.IndexOf(src.TimeAt(i))
		if j < 0 || j >= len(dst.Data) {
			continue
		}
		df := dst.Fold[j]
		if df <= 0 {
			dst.Data[j] = src.Data[i]
			dst.Fold[j] = sf
			continue
		}
		switch method {
		case MaskZero:
			dst.Data[j] = fill
			dst.Fold[j] = 0
		case MaxCombine:
			if src.Data[i] > dst.Data[j] {
				dst.Data[j] = src.Data[i]
			}
			dst.Fold[j] = df + sf
		case AverageCombine:
			dst.Data[j] = (dst.Data[j]*df + src.Data[i]*sf) / (df + sf)
			dst.Fold[j] = df + sf
		}
	}
}
