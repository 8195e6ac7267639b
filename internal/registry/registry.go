// Package registry maintains the per-channel set of fold buffers.
//
// Each channel gets exactly one FoldBuffer, created on first use with the
// registry's shared options. The registry only guards the channel map; the
// buffers themselves are unlocked and follow the single-writer contract,
// so all Append calls for a channel must come from one goroutine (in the
// daemon this is the ingest loop).
package registry

import (
	"sort"
	"sync"

	"github.com/xtxerr/wavebuf/internal/buffer"
	"github.com/xtxerr/wavebuf/internal/errors"
	"github.com/xtxerr/wavebuf/internal/trace"
	"github.com/xtxerr/wavebuf/internal/validation"
)

// Registry maps channel identifiers to their fold buffers.
type Registry struct {
	mu      sync.RWMutex
	opts    buffer.Options
	buffers map[string]*buffer.FoldBuffer
}

// New creates a Registry whose buffers all share opts.
func New(opts buffer.Options) (*Registry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		opts:    opts,
		buffers: make(map[string]*buffer.FoldBuffer),
	}, nil
}

// GetOrCreate returns the buffer for the channel, creating it if needed.
// The channel identifier is validated on creation only.
func (r *Registry) GetOrCreate(channel string) (*buffer.FoldBuffer, error) {
	r.mu.RLock()
	b, ok := r.buffers[channel]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	if err := validation.ValidateChannel(channel); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidChannelID, "channel %q: %v", channel, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buffers[channel]; ok {
		return b, nil
	}
	b, err := buffer.New(r.opts)
	if err != nil {
		return nil, err
	}
	r.buffers[channel] = b
	return b, nil
}

// Get returns the buffer for the channel, if present.
func (r *Registry) Get(channel string) (*buffer.FoldBuffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buffers[channel]
	return b, ok
}

// Channels returns the known channel identifiers in sorted order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.buffers))
	for ch := range r.buffers {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buffers)
}

// Snapshots returns deep copies of all populated buffers, keyed by channel.
// Empty buffers are skipped. Snapshot copies are safe to read concurrently
// with ongoing appends only if taken from the writer goroutine; consumers
// on their own cadence must arrange that with the writer.
func (r *Registry) Snapshots() map[string]*trace.Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*trace.Segment, len(r.buffers))
	for ch, b := range r.buffers {
		if snap, ok := b.Snapshot(); ok {
			out[ch] = snap
		}
	}
	return out
}
