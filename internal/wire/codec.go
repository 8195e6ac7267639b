// Package wire provides the binary segment encoding and message framing
// used between segment producers and the wavebuf daemon.
//
// Segments are encoded as protobuf wire-format messages (built directly on
// protowire; there is no generated code to keep in sync) and framed with a
// varint length prefix for streaming over byte transports and message
// queues.
package wire

import (
	"math"

	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the segment message. Stable; append-only.
const (
	fieldChannel    = 1 // string
	fieldSampleRate = 2 // double
	fieldStartNs    = 3 // sint64
	fieldData       = 4 // packed double
	fieldFold       = 5 // packed double
)

// AppendSegment appends the wire encoding of seg to buf and returns the
// extended slice.
func AppendSegment(buf []byte, seg *trace.Segment) []byte {
	buf = protowire.AppendTag(buf, fieldChannel, protowire.BytesType)
	buf = protowire.AppendString(buf, seg.Channel)

	buf = protowire.AppendTag(buf, fieldSampleRate, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(seg.SampleRate))

	buf = protowire.AppendTag(buf, fieldStartNs, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(seg.StartNs))

	buf = protowire.AppendTag(buf, fieldData, protowire.BytesType)
	buf = appendPackedFloat64(buf, seg.Data)

	buf = protowire.AppendTag(buf, fieldFold, protowire.BytesType)
	buf = appendPackedFloat64(buf, seg.Fold)

	return buf
}

// EncodeSegment returns the wire encoding of seg.
func EncodeSegment(seg *trace.Segment) []byte {
	// 16 bytes per sample for data+fold, plus small header slack.
	buf := make([]byte, 0, len(seg.Data)*16+len(seg.Channel)+32)
	return AppendSegment(buf, seg)
}

// DecodeSegment parses a wire-encoded segment. Unknown fields are skipped
// so older daemons tolerate newer producers.
func DecodeSegment(b []byte) (*trace.Segment, error) {
	var (
		channel string
		rate    float64
		startNs int64
		data    []float64
		fold    []float64
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "consume tag")
		}
		b = b[n:]

		switch {
		case num == fieldChannel && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "channel")
			}
			channel = s
			b = b[n:]

		case num == fieldSampleRate && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "sample rate")
			}
			rate = math.Float64frombits(v)
			b = b[n:]

		case num == fieldStartNs && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "start time")
			}
			startNs = protowire.DecodeZigZag(v)
			b = b[n:]

		case num == fieldData && typ == protowire.BytesType:
			vals, n, err := consumePackedFloat64(b)
			if err != nil {
				return nil, errors.Wrap(err, "data")
			}
			data = vals
			b = b[n:]

		case num == fieldFold && typ == protowire.BytesType:
			vals, n, err := consumePackedFloat64(b)
			if err != nil {
				return nil, errors.Wrap(err, "fold")
			}
			fold = vals
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "skip field")
			}
			b = b[n:]
		}
	}

	return trace.New(channel, rate, startNs, data, fold)
}

// appendPackedFloat64 appends vals as a length-prefixed run of fixed64.
func appendPackedFloat64(buf []byte, vals []float64) []byte {
	buf = protowire.AppendVarint(buf, uint64(len(vals)*8))
	for _, v := range vals {
		buf = protowire.AppendFixed64(buf, math.Float64bits(v))
	}
	return buf
}

// consumePackedFloat64 parses a length-prefixed run of fixed64 doubles.
func consumePackedFloat64(b []byte) ([]float64, int, error) {
	payload, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	if len(payload)%8 != 0 {
		return nil, 0, errors.ErrTruncated
	}
	vals := make([]float64, 0, len(payload)/8)
	for len(payload) > 0 {
		v, m := protowire.ConsumeFixed64(payload)
		if m < 0 {
			return nil, 0, protowire.ParseError(m)
		}
		vals = append(vals, math.Float64frombits(v))
		payload = payload[m:]
	}
	return vals, n, nil
}
