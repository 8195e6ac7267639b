// Package archive persists buffer snapshots to Parquet files.
//
// The sliding buffer itself keeps no history: anything shifted out of the
// window is gone. Consumers that need history snapshot buffers on their own
// cadence; this package is that cadence's sink. One file per snapshot, one
// row per sample carrying real content (nonzero fold).
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Row represents one buffered sample in Parquet format.
type Row struct {
	Channel     string  `parquet:"channel,zstd"`
	TimestampNs int64   `parquet:"timestamp_ns"`
	SampleRate  float64 `parquet:"sample_rate"`
	Value       float64 `parquet:"value"`
	Fold        float64 `parquet:"fold"`
}

// SegmentRows converts a segment snapshot to rows, skipping empty samples.
func SegmentRows(seg *trace.Segment) []Row {
	rows := make([]Row, 0, seg.Len())
	for i := range seg.Data {
		if seg.Fold[i] <= 0 {
			continue
		}
		rows = append(rows, Row{
			Channel:     seg.Channel,
			TimestampNs: seg.TimeAt(i),
			SampleRate:  seg.SampleRate,
			Value:       seg.Data[i],
			Fold:        seg.Fold[i],
		})
	}
	return rows
}

// SnapshotPath returns the archive file path for a channel snapshot ending
// at endNs. Channel identifiers are filesystem-safe by validation, but any
// path separators are defensively replaced.
func SnapshotPath(dir, channel string, endNs int64) string {
	safe := strings.ReplaceAll(channel, string(os.PathSeparator), "_")
	stamp := time.Unix(0, endNs).UTC().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", safe, stamp))
}

// Writer writes snapshot rows to a Parquet file.
type Writer struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[Row]
	rowCount int64
	closed   bool
}

// NewWriter creates a snapshot Parquet writer at path.
func NewWriter(path string, opts Options) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	return &Writer{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[Row](f, writerOpts...),
	}, nil
}

// WriteSegment writes all nonzero-fold samples of seg.
func (w *Writer) WriteSegment(seg *trace.Segment) error {
	return w.Write(SegmentRows(seg))
}

// Write writes rows to the Parquet file.
func (w *Writer) Write(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close closes the writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer) Path() string {
	return w.path
}
