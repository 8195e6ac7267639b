package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/xtxerr/wavebuf/config"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// Reader reads length-delimited segment messages from an io.Reader.
// It is safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	mu      sync.Mutex
	maxSize int
}

// NewReader creates a Reader wrapping the given io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), maxSize: config.DefaultMaxMessageSize}
}

// Read reads and decodes the next segment.
// Returns ErrMessageTooLarge if the frame exceeds the maximum size.
func (r *Reader) Read() (*trace.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size, err := binary.ReadUvarint(r.r)
	if err != nil {
		return nil, err
	}
	if size > uint64(r.maxSize) {
		return nil, errors.Wrapf(errors.ErrMessageTooLarge, "%d bytes", size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, errors.Wrap(err, "read frame")
	}
	return DecodeSegment(buf)
}

// Writer writes length-delimited segment messages to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriter creates a Writer wrapping the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes and writes a segment with a varint length prefix.
func (w *Writer) Write(seg *trace.Segment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload := EncodeSegment(seg)
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(payload)))

	if _, err := w.w.Write(prefix[:n]); err != nil {
		return errors.Wrap(err, "write frame prefix")
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}
