// Package config provides configuration defaults and utilities
// for the wavebuf application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml.
package config

import "time"

// =============================================================================
// Buffer Defaults
// =============================================================================

const (
	// DefaultMaxSpanSec is the default sliding window length in seconds.
	// Accepted range is (0, 1200].
	// Override via config: buffer.max_span_sec
	DefaultMaxSpanSec = 60.0

	// DefaultMergeMethod reconciles overlapping samples on joins.
	// One of: mask_zero, max_combine, average_combine.
	// Override via config: buffer.merge_method
	DefaultMergeMethod = "average_combine"
)

// =============================================================================
// Feed Defaults
// =============================================================================

const (
	// DefaultMaxMessageSize limits wire frame size to prevent OOM.
	// 16 MiB holds roughly two million samples, far beyond any sane
	// segment.
	// Override via config: feed.max_message_size
	DefaultMaxMessageSize = 16 * 1024 * 1024

	// DefaultFeedTopic is the Kafka topic carrying encoded segments.
	// Override via config: feed.topic
	DefaultFeedTopic = "wavebuf.segments"

	// DefaultFeedGroupID is the Kafka consumer group.
	// Override via config: feed.group_id
	DefaultFeedGroupID = "wavebuf"

	// DefaultFeedMinBytes and DefaultFeedMaxBytes bound Kafka fetch sizes.
	DefaultFeedMinBytes = 1
	DefaultFeedMaxBytes = DefaultMaxMessageSize
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultSnapshotInterval is how often populated buffers are written
	// to the Parquet archive.
	// Override via config: archive.snapshot_interval
	DefaultSnapshotInterval = time.Minute

	// DefaultCompression is the Parquet compression algorithm.
	// One of: snappy, zstd, lz4, gzip, none.
	// Override via config: archive.compression
	DefaultCompression = "zstd"

	// DefaultCompressionLevel applies to algorithms that support it
	// (zstd: 1-22).
	// Override via config: archive.compression_level
	DefaultCompressionLevel = 3
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultQueryMemoryLimit is the DuckDB memory limit.
	// Override via config: query.memory_limit
	DefaultQueryMemoryLimit = "1GB"

	// DefaultQueryTimeout bounds a single archive query.
	// Override via config: query.timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultQueryMaxRows caps result set sizes.
	// Override via config: query.max_rows
	DefaultQueryMaxRows = 1000000
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long to wait for in-flight work during
	// shutdown before abandoning it.
	// Override via config: server.drain_timeout
	DefaultDrainTimeout = 30 * time.Second
)
