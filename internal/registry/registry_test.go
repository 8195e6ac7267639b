package registry

import (
	"testing"

	"github.com/xtxerr/wavebuf/internal/buffer"
	"github.com/xtxerr/wavebuf/internal/trace"
)

func mkRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(buffer.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := buffer.DefaultOptions()
	opts.MaxSpan = -1
	if _, err := New(opts); err == nil {
		t.Error("expected error for invalid buffer options")
	}
}

func TestGetOrCreate(t *testing.T) {
	r := mkRegistry(t)

	b1, err := r.GetOrCreate("UW.GNW..HHZ")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b2, err := r.GetOrCreate("UW.GNW..HHZ")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if b1 != b2 {
		t.Error("same channel returned different buffers")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if _, err := r.GetOrCreate("bad/name"); err == nil {
		t.Error("expected error for invalid channel id")
	}
	if _, err := r.GetOrCreate(""); err == nil {
		t.Error("expected error for empty channel id")
	}
}

func TestGetAndChannels(t *testing.T) {
	r := mkRegistry(t)

	if _, ok := r.Get("UW.GNW..HHZ"); ok {
		t.Error("Get returned a buffer before creation")
	}

	for _, ch := range []string{"UW.RCM..EHZ", "UW.GNW..HHZ", "CC.SEP..BHZ"} {
		if _, err := r.GetOrCreate(ch); err != nil {
			t.Fatalf("GetOrCreate(%q): %v", ch, err)
		}
	}

	got := r.Channels()
	want := []string{"CC.SEP..BHZ", "UW.GNW..HHZ", "UW.RCM..EHZ"}
	if len(got) != len(want) {
		t.Fatalf("Channels = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Channels[%d] = %q, want %q (sorted)", i, got[i], want[i])
		}
	}
}

func TestSnapshotsSkipEmptyBuffers(t *testing.T) {
	r := mkRegistry(t)

	full, err := r.GetOrCreate("UW.GNW..HHZ")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrCreate("UW.RCM..EHZ"); err != nil {
		t.Fatal(err)
	}

	seg, err := trace.New("UW.GNW..HHZ", 1, 0, []float64{1, 2, 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := full.Append(seg); err != nil {
		t.Fatal(err)
	}

	snaps := r.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if _, ok := snaps["UW.GNW..HHZ"]; !ok {
		t.Error("populated channel missing from snapshots")
	}
}
