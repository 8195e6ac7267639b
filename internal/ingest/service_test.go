package ingest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/xtxerr/wavebuf/internal/buffer"
	"github.com/xtxerr/wavebuf/internal/detect"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/registry"
	"github.com/xtxerr/wavebuf/internal/trace"
)

// stubSource feeds queued segments, then blocks until the context ends.
type stubSource struct {
	ch chan *trace.Segment
}

func newStubSource(segs ...*trace.Segment) *stubSource {
	s := &stubSource{ch: make(chan *trace.Segment, len(segs))}
	for _, seg := range segs {
		s.ch <- seg
	}
	return s
}

func (s *stubSource) Next(ctx context.Context) (*trace.Segment, error) {
	select {
	case seg := <-s.ch:
		return seg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *stubSource) Close() error { return nil }

func mkSeg(t *testing.T, ch string, startNs int64, data []float64) *trace.Segment {
	t.Helper()
	seg, err := trace.New(ch, 1, startNs, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	return seg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestServiceIngestsAndArchives(t *testing.T) {
	reg, err := registry.New(buffer.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	src := newStubSource(
		mkSeg(t, "UW.GNW..HHZ", 0, []float64{1, 2, 3}),
		mkSeg(t, "UW.GNW..HHZ", 3e9, []float64{4, 5, 6}),
		mkSeg(t, "UW.RCM..EHZ", 0, []float64{9, 9}),
	)

	dir := t.TempDir()
	opts := DefaultOptions(dir)
	// The final flush on shutdown covers archiving; keep the ticker out of
	// the way.
	opts.SnapshotInterval = time.Hour

	svc := New(reg, src, opts)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, func() bool { return svc.Stats().SegmentsAppended.Load() == 3 })
	if !svc.IsRunning() {
		t.Error("IsRunning = false while consuming")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.IsRunning() {
		t.Error("IsRunning = true after Run returned")
	}

	st := svc.Stats()
	if st.SegmentsReceived.Load() != 3 || st.SegmentsRejected.Load() != 0 {
		t.Errorf("received=%d rejected=%d", st.SegmentsReceived.Load(), st.SegmentsRejected.Load())
	}
	if st.SnapshotsWritten.Load() != 2 {
		t.Errorf("snapshots = %d, want one per populated channel", st.SnapshotsWritten.Load())
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("archive holds %d files, want 2", len(files))
	}

	// The buffers reflect both appends for the first channel.
	b, ok := reg.Get("UW.GNW..HHZ")
	if !ok {
		t.Fatal("channel buffer missing")
	}
	if got := b.Stats().Appends; got != 2 {
		t.Errorf("buffer appends = %d, want 2", got)
	}
}

func TestServiceDropsRejectedSegments(t *testing.T) {
	opts := buffer.DefaultOptions()
	opts.MaxSpan = 10
	reg, err := registry.New(opts)
	if err != nil {
		t.Fatal(err)
	}

	src := newStubSource(
		mkSeg(t, "UW.GNW..HHZ", 100e9, []float64{1, 2, 3}),
		// Ends 9+ seconds before the window starts: stale, dropped.
		mkSeg(t, "UW.GNW..HHZ", 80e9, []float64{7, 7}),
		mkSeg(t, "UW.GNW..HHZ", 103e9, []float64{4, 5}),
	)

	ingestOpts := DefaultOptions(t.TempDir())
	ingestOpts.SnapshotInterval = 0 // archiving off

	svc := New(reg, src, ingestOpts)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, func() bool { return svc.Stats().SegmentsReceived.Load() == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := svc.Stats()
	if st.SegmentsAppended.Load() != 2 {
		t.Errorf("appended = %d, want 2", st.SegmentsAppended.Load())
	}
	if st.SegmentsRejected.Load() != 1 {
		t.Errorf("rejected = %d, want 1", st.SegmentsRejected.Load())
	}
	if st.Errors.Load() != 0 {
		t.Errorf("errors = %d, want 0", st.Errors.Load())
	}

	// The stale segment left the buffer's rejection counter behind too.
	b, _ := reg.Get("UW.GNW..HHZ")
	if got := b.Stats().Rejected; got != 1 {
		t.Errorf("buffer rejected = %d, want 1", got)
	}
}

func TestServiceScansSnapshotsForTriggers(t *testing.T) {
	reg, err := registry.New(buffer.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	// A probability-like curve with one clear crossing of the main
	// threshold.
	src := newStubSource(
		mkSeg(t, "UW.GNW..HHZ", 0, []float64{0.01, 0.05, 0.3, 0.6, 0.3, 0.05, 0.01}),
	)

	opts := DefaultOptions(t.TempDir())
	opts.SnapshotInterval = time.Hour
	opts.Detect.Enabled = true
	opts.Detect.Scan = detect.Options{
		Threshold:       0.2,
		ExpandThreshold: 0.01,
		MinSamples:      2,
		DropOversize:    true,
	}

	svc := New(reg, src, opts)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	waitFor(t, func() bool { return svc.Stats().SegmentsAppended.Load() == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := svc.Stats()
	if st.TriggersDetected.Load() != 1 {
		t.Errorf("triggers = %d, want 1", st.TriggersDetected.Load())
	}
	if st.SnapshotsWritten.Load() != 1 {
		t.Errorf("snapshots = %d, want the scan to leave archiving intact", st.SnapshotsWritten.Load())
	}
}

func TestServiceRefusesDoubleRun(t *testing.T) {
	reg, err := registry.New(buffer.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	src := newStubSource()
	opts := DefaultOptions(t.TempDir())
	opts.SnapshotInterval = 0

	svc := New(reg, src, opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	waitFor(t, func() bool { return svc.IsRunning() })

	if err := svc.Run(ctx); !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
