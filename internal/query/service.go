// Package query provides read access to archived and hot buffer data.
//
// Archived snapshots are Parquet files queried through an in-memory DuckDB
// instance; hot data comes straight from the channel registry. Results from
// both sides are merged with hot data winning on timestamp collisions,
// since the buffer may have folded more observations into a sample after it
// was archived.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/wavebuf/config"
	"github.com/xtxerr/wavebuf/internal/registry"
)

// Options configures the query service.
type Options struct {
	// ArchiveDir is the directory holding snapshot Parquet files.
	ArchiveDir string

	// MemoryLimit is the DuckDB memory limit (e.g. "1GB").
	MemoryLimit string

	// Timeout bounds a single query.
	Timeout time.Duration

	// MaxRows caps result set sizes.
	MaxRows int
}

// DefaultOptions returns the default query configuration.
func DefaultOptions(archiveDir string) Options {
	return Options{
		ArchiveDir:  archiveDir,
		MemoryLimit: config.DefaultQueryMemoryLimit,
		Timeout:     config.DefaultQueryTimeout,
		MaxRows:     config.DefaultQueryMaxRows,
	}
}

// Point is one sample in a query result.
type Point struct {
	Channel     string
	TimestampNs int64
	Value       float64
	Fold        float64
}

// RangeQuery defines parameters for querying one channel over a time range.
type RangeQuery struct {
	Channel string
	StartNs int64
	EndNs   int64
	Limit   int
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// Service provides query capabilities over stored and hot data.
type Service struct {
	mu sync.RWMutex

	opts Options
	db   *sql.DB
	reg  *registry.Registry

	stats Stats
}

// New creates a new query service. reg may be nil for archive-only use.
func New(opts Options, reg *registry.Registry) (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if opts.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", opts.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{opts: opts, db: db, reg: reg}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Stats returns query statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// QueryRange returns all samples for a channel in [StartNs, EndNs],
// combining archived snapshots with the hot buffer.
func (s *Service) QueryRange(ctx context.Context, q RangeQuery) ([]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	archived, err := s.queryArchive(ctx, q)
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("query archive: %w", err)
	}

	hot := s.queryHot(q)

	results := mergePoints(archived, hot)

	limit := q.Limit
	if limit <= 0 || limit > s.opts.MaxRows {
		limit = s.opts.MaxRows
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))
	return results, nil
}

// queryArchive queries the Parquet archive via DuckDB.
func (s *Service) queryArchive(ctx context.Context, q RangeQuery) ([]Point, error) {
	pattern := filepath.Join(s.opts.ArchiveDir, "*.parquet")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		// read_parquet fails on an empty glob; an empty archive is not
		// an error.
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT channel, timestamp_ns, value, fold
		FROM read_parquet('%s')
		WHERE channel = ? AND timestamp_ns >= ? AND timestamp_ns <= ?
		ORDER BY timestamp_ns`, pattern)

	rows, err := s.db.QueryContext(ctx, query, q.Channel, q.StartNs, q.EndNs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Channel, &p.TimestampNs, &p.Value, &p.Fold); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// queryHot pulls matching samples from the channel's live buffer.
func (s *Service) queryHot(q RangeQuery) []Point {
	if s.reg == nil {
		return nil
	}
	b, ok := s.reg.Get(q.Channel)
	if !ok {
		return nil
	}
	snap, ok := b.Snapshot()
	if !ok {
		return nil
	}

	var out []Point
	for i := range snap.Data {
		if snap.Fold[i] <= 0 {
			continue
		}
		ts := snap.TimeAt(i)
		if ts < q.StartNs || ts > q.EndNs {
			continue
		}
		out = append(out, Point{
			Channel:     snap.Channel,
			TimestampNs: ts,
			Value:       snap.Data[i],
			Fold:        snap.Fold[i],
		})
	}
	return out
}

// mergePoints combines archived and hot points, deduplicating on timestamp
// with hot data taking precedence.
func mergePoints(archived, hot []Point) []Point {
	if len(hot) == 0 {
		return archived
	}

	seen := make(map[int64]struct{}, len(hot))
	out := make([]Point, 0, len(archived)+len(hot))
	for _, p := range hot {
		seen[p.TimestampNs] = struct{}{}
		out = append(out, p)
	}
	for _, p := range archived {
		if _, ok := seen[p.TimestampNs]; ok {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].TimestampNs < out[j].TimestampNs
	})
	return out
}

// ExecuteSQL runs an arbitrary SQL statement against the DuckDB instance.
// Intended for operational inspection, not the hot path.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c] = vals[i]
		}
		out = append(out, m)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(out))
	return out, rows.Err()
}
