// Package feed supplies segments to the ingest service.
//
// The production source is a Kafka topic carrying wire-encoded segments;
// tests and tools can implement Source over anything else (files, in-memory
// queues, network streams).
package feed

import (
	"context"

	"github.com/xtxerr/wavebuf/internal/trace"
)

// Source yields segments in arrival order. Next blocks until a segment is
// available or the context is canceled.
type Source interface {
	Next(ctx context.Context) (*trace.Segment, error)
	Close() error
}
