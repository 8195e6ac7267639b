// wavebufd is the sliding fold-buffer daemon.
//
// It consumes wire-encoded segments from Kafka, maintains one sliding
// fold-weighted buffer per channel, periodically archives buffer snapshots
// to Parquet, and answers range queries over hot and archived data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/xtxerr/wavebuf/internal/feed"
	"github.com/xtxerr/wavebuf/internal/ingest"
	"github.com/xtxerr/wavebuf/internal/loader"
	"github.com/xtxerr/wavebuf/internal/logging"
	"github.com/xtxerr/wavebuf/internal/query"
	"github.com/xtxerr/wavebuf/internal/registry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	brokers := flag.String("brokers", "", "comma-separated Kafka brokers (overrides config)")
	topic := flag.String("topic", "", "feed topic (overrides config)")
	archiveDir := flag.String("archive-dir", "", "snapshot directory (overrides config)")
	maxSpan := flag.Float64("max-span", 0, "buffer window seconds (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	jsonLogs := flag.Bool("json-logs", false, "JSON log output")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *brokers != "" {
		cfg.Feed.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Feed.Topic = *topic
	}
	if *archiveDir != "" {
		cfg.Archive.Dir = *archiveDir
	}
	if *maxSpan > 0 {
		cfg.Buffer.MaxSpanSec = *maxSpan
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *jsonLogs {
		cfg.Logging.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(parseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	log := logging.Component("main")
	log.Info("wavebufd starting", "version", Version)

	if err := run(cfg, log); err != nil {
		log.Error("wavebufd failed", "error", err)
		os.Exit(1)
	}
	log.Info("wavebufd stopped")
}

func run(cfg *loader.Config, log *slog.Logger) error {
	bufOpts, err := cfg.BufferOptions()
	if err != nil {
		return err
	}
	reg, err := registry.New(bufOpts)
	if err != nil {
		return err
	}

	src := feed.NewKafka(cfg.FeedOptions())
	defer src.Close()

	svc := ingest.New(reg, src, cfg.IngestOptions())

	qs, err := query.New(cfg.QueryOptions(), reg)
	if err != nil {
		return err
	}
	defer qs.Close()

	log.Info("ingest configured",
		"brokers", cfg.Feed.Brokers,
		"topic", cfg.Feed.Topic,
		"max_span_sec", cfg.Buffer.MaxSpanSec,
		"merge_method", cfg.Buffer.MergeMethod,
		"archive_enabled", cfg.Archive.Enabled,
		"archive_dir", cfg.Archive.Dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case s := <-sig:
		log.Info("shutting down", "signal", s.String())
		cancel()
	}

	// Bounded drain: Run flushes a final snapshot round after its loops
	// exit, so give it the configured window before abandoning it.
	select {
	case err := <-done:
		logStats(log, svc)
		return err
	case <-time.After(cfg.Server.DrainTimeout):
		logStats(log, svc)
		return fmt.Errorf("drain timed out after %s", cfg.Server.DrainTimeout)
	}
}

func logStats(log *slog.Logger, svc *ingest.Service) {
	st := svc.Stats()
	log.Info("ingest stats",
		"received", st.SegmentsReceived.Load(),
		"appended", st.SegmentsAppended.Load(),
		"rejected", st.SegmentsRejected.Load(),
		"snapshots", st.SnapshotsWritten.Load(),
		"errors", st.Errors.Load())
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
