// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating the resulting configuration
//   - Converting between YAML and internal representations
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/wavebuf/config"
	"github.com/xtxerr/wavebuf/internal/archive"
	"github.com/xtxerr/wavebuf/internal/buffer"
	"github.com/xtxerr/wavebuf/internal/detect"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/feed"
	"github.com/xtxerr/wavebuf/internal/ingest"
	"github.com/xtxerr/wavebuf/internal/query"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// Config represents the complete wavebuf configuration.
type Config struct {
	// Buffer configures the per-channel fold buffers.
	Buffer BufferConfig `yaml:"buffer"`

	// Feed configures the Kafka segment feed.
	Feed FeedConfig `yaml:"feed"`

	// Archive configures the Parquet snapshot archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Detect configures the trigger scan run with each snapshot pass.
	Detect DetectConfig `yaml:"detect"`

	// Query configures the query service.
	Query QueryConfig `yaml:"query"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`

	// Server configures daemon lifecycle behavior.
	Server ServerConfig `yaml:"server"`
}

// BufferConfig configures the per-channel fold buffers.
type BufferConfig struct {
	// MaxSpanSec is the sliding window length in seconds, (0, 1200].
	MaxSpanSec float64 `yaml:"max_span_sec"`

	// MergeMethod reconciles overlapping samples on joins.
	// One of: mask_zero, max_combine, average_combine.
	MergeMethod string `yaml:"merge_method"`
}

// FeedConfig configures the Kafka segment feed.
type FeedConfig struct {
	// Brokers is the Kafka broker list.
	Brokers []string `yaml:"brokers"`

	// Topic is the topic carrying wire-encoded segments.
	Topic string `yaml:"topic"`

	// GroupID is the consumer group.
	GroupID string `yaml:"group_id"`

	// MinBytes and MaxBytes bound Kafka fetch sizes.
	MinBytes int `yaml:"min_bytes"`
	MaxBytes int `yaml:"max_bytes"`
}

// ArchiveConfig configures the Parquet snapshot archive.
type ArchiveConfig struct {
	// Enabled enables periodic snapshot archiving.
	Enabled bool `yaml:"enabled"`

	// Dir is the snapshot directory.
	Dir string `yaml:"dir"`

	// SnapshotInterval is how often populated buffers are archived.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// Compression is the Parquet compression algorithm:
	// snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`

	// CompressionLevel applies to algorithms that support it (zstd: 1-22).
	CompressionLevel int `yaml:"compression_level"`
}

// DetectConfig configures snapshot-cadence trigger detection.
type DetectConfig struct {
	// Enabled turns the scan on.
	Enabled bool `yaml:"enabled"`

	// Threshold is the main trigger level.
	Threshold float64 `yaml:"threshold"`

	// ExpandThreshold is the lower envelope level. Must stay below
	// Threshold.
	ExpandThreshold float64 `yaml:"expand_threshold"`

	// MinSamples drops triggers shorter than this many samples.
	MinSamples int `yaml:"min_samples"`

	// MaxSamples drops triggers longer than this many samples.
	// Zero means no limit.
	MaxSamples int `yaml:"max_samples"`
}

// QueryConfig configures the query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows returned.
	MaxRows int `yaml:"max_rows"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects JSON output instead of text.
	JSON bool `yaml:"json"`
}

// ServerConfig configures daemon lifecycle behavior.
type ServerConfig struct {
	// DrainTimeout bounds the shutdown flush.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Buffer: BufferConfig{
			MaxSpanSec:  config.DefaultMaxSpanSec,
			MergeMethod: config.DefaultMergeMethod,
		},
		Feed: FeedConfig{
			Brokers:  []string{"localhost:9092"},
			Topic:    config.DefaultFeedTopic,
			GroupID:  config.DefaultFeedGroupID,
			MinBytes: config.DefaultFeedMinBytes,
			MaxBytes: config.DefaultFeedMaxBytes,
		},
		Archive: ArchiveConfig{
			Enabled:          true,
			Dir:              "/var/lib/wavebuf/archive",
			SnapshotInterval: config.DefaultSnapshotInterval,
			Compression:      config.DefaultCompression,
			CompressionLevel: config.DefaultCompressionLevel,
		},
		Detect: DetectConfig{
			Enabled:         false,
			Threshold:       detect.DefaultOptions().Threshold,
			ExpandThreshold: detect.DefaultOptions().ExpandThreshold,
			MinSamples:      detect.DefaultOptions().MinSamples,
		},
		Query: QueryConfig{
			MemoryLimit: config.DefaultQueryMemoryLimit,
			Timeout:     config.DefaultQueryTimeout,
			MaxRows:     config.DefaultQueryMaxRows,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			DrainTimeout: config.DefaultDrainTimeout,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Buffer.MaxSpanSec <= 0 || c.Buffer.MaxSpanSec > buffer.MaxSpanLimit {
		return errors.NewInvalidValue("buffer.max_span_sec", c.Buffer.MaxSpanSec,
			fmt.Sprintf("must be in (0, %g]", buffer.MaxSpanLimit))
	}
	if _, err := trace.ParseMergeMethod(c.Buffer.MergeMethod); err != nil {
		return errors.NewInvalidValue("buffer.merge_method", c.Buffer.MergeMethod,
			"must be one of mask_zero, max_combine, average_combine")
	}
	if len(c.Feed.Brokers) == 0 {
		return errors.NewMissingField("feed.brokers")
	}
	if c.Feed.Topic == "" {
		return errors.NewMissingField("feed.topic")
	}
	if c.Feed.MaxBytes > 0 && c.Feed.MinBytes > c.Feed.MaxBytes {
		return errors.NewInvalidValue("feed.min_bytes", c.Feed.MinBytes, "exceeds feed.max_bytes")
	}
	if c.Archive.Enabled {
		if c.Archive.Dir == "" {
			return errors.NewMissingField("archive.dir")
		}
		if c.Archive.SnapshotInterval <= 0 {
			return errors.NewInvalidValue("archive.snapshot_interval", c.Archive.SnapshotInterval,
				"must be positive")
		}
		switch c.Archive.Compression {
		case "snappy", "zstd", "lz4", "gzip", "none", "":
		default:
			return errors.NewInvalidValue("archive.compression", c.Archive.Compression,
				"must be one of snappy, zstd, lz4, gzip, none")
		}
	}
	if c.Detect.Enabled {
		if c.Detect.Threshold <= 0 {
			return errors.NewInvalidValue("detect.threshold", c.Detect.Threshold, "must be positive")
		}
		if c.Detect.ExpandThreshold < 0 || c.Detect.ExpandThreshold >= c.Detect.Threshold {
			return errors.NewInvalidValue("detect.expand_threshold", c.Detect.ExpandThreshold,
				"must be in [0, threshold)")
		}
		if c.Detect.MinSamples < 0 || c.Detect.MaxSamples < 0 {
			return errors.NewInvalidValue("detect.min_samples", c.Detect.MinSamples,
				"sample bounds must not be negative")
		}
	}
	if c.Query.MaxRows <= 0 {
		return errors.NewInvalidValue("query.max_rows", c.Query.MaxRows, "must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewInvalidValue("logging.level", c.Logging.Level,
			"must be one of debug, info, warn, error")
	}
	return nil
}

// BufferOptions converts the buffer section to buffer.Options.
func (c *Config) BufferOptions() (buffer.Options, error) {
	method, err := trace.ParseMergeMethod(c.Buffer.MergeMethod)
	if err != nil {
		return buffer.Options{}, err
	}
	opts := buffer.DefaultOptions()
	opts.MaxSpan = c.Buffer.MaxSpanSec
	opts.Merge = method
	return opts, nil
}

// FeedOptions converts the feed section to feed.KafkaOptions.
func (c *Config) FeedOptions() feed.KafkaOptions {
	opts := feed.DefaultKafkaOptions(c.Feed.Brokers)
	opts.Topic = c.Feed.Topic
	opts.GroupID = c.Feed.GroupID
	if c.Feed.MinBytes > 0 {
		opts.MinBytes = c.Feed.MinBytes
	}
	if c.Feed.MaxBytes > 0 {
		opts.MaxBytes = c.Feed.MaxBytes
	}
	return opts
}

// IngestOptions converts the archive and detect sections to ingest.Options.
func (c *Config) IngestOptions() ingest.Options {
	opts := ingest.DefaultOptions(c.Archive.Dir)
	if c.Detect.Enabled {
		opts.Detect.Enabled = true
		opts.Detect.Scan.Threshold = c.Detect.Threshold
		opts.Detect.Scan.ExpandThreshold = c.Detect.ExpandThreshold
		opts.Detect.Scan.MinSamples = c.Detect.MinSamples
		opts.Detect.Scan.MaxSamples = c.Detect.MaxSamples
	}
	if !c.Archive.Enabled {
		opts.SnapshotInterval = 0
		return opts
	}
	opts.SnapshotInterval = c.Archive.SnapshotInterval
	opts.Archive.Compression = archive.ParseCompressionType(c.Archive.Compression)
	if c.Archive.CompressionLevel > 0 {
		opts.Archive.CompressionLevel = c.Archive.CompressionLevel
	}
	return opts
}

// QueryOptions converts the query section to query.Options.
func (c *Config) QueryOptions() query.Options {
	opts := query.DefaultOptions(c.Archive.Dir)
	opts.MemoryLimit = c.Query.MemoryLimit
	if c.Query.Timeout > 0 {
		opts.Timeout = c.Query.Timeout
	}
	if c.Query.MaxRows > 0 {
		opts.MaxRows = c.Query.MaxRows
	}
	return opts
}
