// Package ingest ties the segment feed to the per-channel buffers and the
// snapshot archive.
//
// One consume goroutine performs every append, preserving the buffers'
// single-writer contract. Snapshots run on their own cadence and
// synchronize with the writer through a per-channel mutex, the external
// synchronization the buffer contract calls for.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/wavebuf/config"
	"github.com/xtxerr/wavebuf/internal/archive"
	"github.com/xtxerr/wavebuf/internal/detect"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/feed"
	"github.com/xtxerr/wavebuf/internal/logging"
	"github.com/xtxerr/wavebuf/internal/registry"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// Options configures the ingest service.
type Options struct {
	// SnapshotInterval is how often populated buffers are archived.
	// Zero disables archiving.
	SnapshotInterval time.Duration

	// ArchiveDir is the snapshot destination directory.
	ArchiveDir string

	// Archive configures the Parquet writer.
	Archive archive.Options

	// Detect configures the trigger scan run over each snapshot.
	Detect DetectOptions
}

// DetectOptions configures snapshot-cadence trigger detection.
type DetectOptions struct {
	// Enabled turns the scan on. Off by default; detection is an
	// observer, never a gate on ingestion.
	Enabled bool

	// Scan holds the thresholds and length policy.
	Scan detect.Options
}

// DefaultOptions returns the default ingest configuration.
func DefaultOptions(archiveDir string) Options {
	return Options{
		SnapshotInterval: config.DefaultSnapshotInterval,
		ArchiveDir:       archiveDir,
		Archive:          archive.DefaultOptions(),
		Detect:           DetectOptions{Scan: detect.DefaultOptions()},
	}
}

// Stats holds ingest statistics.
type Stats struct {
	SegmentsReceived atomic.Int64
	SegmentsAppended atomic.Int64
	SegmentsRejected atomic.Int64
	SnapshotsWritten atomic.Int64
	TriggersDetected atomic.Int64
	Errors           atomic.Int64
}

// Service consumes segments from a feed source and maintains the buffers.
type Service struct {
	opts Options
	reg  *registry.Registry
	src  feed.Source
	log  *slog.Logger

	running atomic.Bool
	stats   Stats

	// locks serializes Append against Snapshot per channel.
	locks sync.Map // channel -> *sync.Mutex
}

// New creates an ingest service over the given registry and source.
func New(reg *registry.Registry, src feed.Source, opts Options) *Service {
	return &Service{
		opts: opts,
		reg:  reg,
		src:  src,
		log:  logging.Component("ingest"),
	}
}

// Stats returns the statistics counters.
func (s *Service) Stats() *Stats { return &s.stats }

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool { return s.running.Load() }

// Run consumes the feed until ctx is canceled, then flushes a final round
// of snapshots. It returns the first unexpected error from the consume or
// snapshot loops.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.consumeLoop(ctx) })

	if s.opts.SnapshotInterval > 0 {
		g.Go(func() error { return s.snapshotLoop(ctx) })
	}

	err := g.Wait()

	if s.opts.SnapshotInterval > 0 {
		s.flushSnapshots()
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

// consumeLoop pulls segments from the source and appends them.
func (s *Service) consumeLoop(ctx context.Context) error {
	for {
		seg, err := s.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "feed")
		}
		s.ingest(seg)
	}
}

// ingest appends one segment, classifying failures per the append error
// policy: rejected appends are dropped and counted, everything else is an
// error worth operator attention.
func (s *Service) ingest(seg *trace.Segment) {
	s.stats.SegmentsReceived.Add(1)

	b, err := s.reg.GetOrCreate(seg.Channel)
	if err != nil {
		s.stats.Errors.Add(1)
		s.log.Error("create buffer", "channel", seg.Channel, "error", err)
		return
	}

	mu := s.channelLock(seg.Channel)
	mu.Lock()
	err = b.Append(seg)
	mu.Unlock()

	switch {
	case err == nil:
		s.stats.SegmentsAppended.Add(1)
	case errors.IsRejectedAppend(err):
		// Rejections leave the buffer untouched; the segment is simply
		// dropped. Retry is the producer's call, not ours.
		s.stats.SegmentsRejected.Add(1)
		s.log.Debug("segment rejected", "channel", seg.Channel, "error", err)
	default:
		s.stats.Errors.Add(1)
		s.log.Error("append failed", "channel", seg.Channel, "error", err)
	}
}

// snapshotLoop archives populated buffers on the configured cadence.
func (s *Service) snapshotLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.flushSnapshots()
		}
	}
}

// flushSnapshots writes one Parquet file per populated channel.
func (s *Service) flushSnapshots() {
	for _, ch := range s.reg.Channels() {
		b, ok := s.reg.Get(ch)
		if !ok {
			continue
		}

		mu := s.channelLock(ch)
		mu.Lock()
		snap, populated := b.Snapshot()
		mu.Unlock()
		if !populated {
			continue
		}

		if s.opts.Detect.Enabled {
			s.scanSnapshot(ch, snap)
		}

		if err := s.writeSnapshot(ch, snap); err != nil {
			s.stats.Errors.Add(1)
			s.log.Error("write snapshot", "channel", ch, "error", err)
			continue
		}
		s.stats.SnapshotsWritten.Add(1)
	}
}

// scanSnapshot reports threshold triggers found in one snapshot.
func (s *Service) scanSnapshot(ch string, snap *trace.Segment) {
	for _, trg := range detect.ScanExpandable(snap, s.opts.Detect.Scan) {
		st, err := detect.Peak(snap, trg)
		if err != nil {
			s.log.Debug("peak stats", "channel", ch, "error", err)
			continue
		}
		s.stats.TriggersDetected.Add(1)
		s.log.Info("trigger detected", "channel", ch,
			"on_ns", trg.OnNs, "off_ns", trg.OffNs,
			"peak_ns", st.PeakNs, "peak_value", st.PeakValue,
			"width_sec", st.StdSec)
	}
}

// writeSnapshot writes one snapshot file for the channel.
func (s *Service) writeSnapshot(ch string, snap *trace.Segment) error {
	path := archive.SnapshotPath(s.opts.ArchiveDir, ch, snap.EndNs())
	w, err := archive.NewWriter(path, s.opts.Archive)
	if err != nil {
		return err
	}
	if err := w.WriteSegment(snap); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// channelLock returns the mutex serializing access to one channel's buffer.
func (s *Service) channelLock(ch string) *sync.Mutex {
	if mu, ok := s.locks.Load(ch); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.locks.LoadOrStore(ch, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
