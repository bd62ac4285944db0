// Package eviction reclaims blob store space by age and by per-category
// capacity.
package eviction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/index"
	"github.com/charlesng35/mediacache/internal/models"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/pkg/logger"
)

const (
	phaseTTL      = "ttl"
	phaseCapacity = "capacity"
)

// Index is the metadata view the engine walks.
type Index interface {
	ListOldest(ctx context.Context, filter index.OldestFilter, limit int) ([]models.CacheEntry, error)
	BytesByCategory(ctx context.Context, category models.Category) (int64, error)
	DeleteMany(ctx context.Context, keys []string) error
}

// Blobs deletes stored objects.
type Blobs interface {
	Delete(ctx context.Context, keys []string) error
}

// Capacity reports the per-category ceiling in megabytes.
type Capacity interface {
	CapacityMB(ctx context.Context, category models.Category) (float64, error)
}

// Result summarises one run.
type Result struct {
	Deleted    int   `json:"deleted"`
	FreedBytes int64 `json:"freed_bytes"`
}

func (r *Result) add(deleted int, freed int64) {
	r.Deleted += deleted
	r.FreedBytes += freed
}

// Option customises an Engine.
type Option func(*Engine)

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger overrides the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine runs bounded TTL and capacity eviction passes.
type Engine struct {
	index    Index
	blobs    Blobs
	capacity Capacity
	policy   Policy
	now      func() time.Time
	log      *zap.Logger
}

// NewEngine builds an engine. Capacity may be nil to disable the capacity phase.
func NewEngine(idx Index, blobs Blobs, capacity Capacity, policy Policy, opts ...Option) (*Engine, error) {
	if idx == nil {
		return nil, errors.New("eviction: index is required")
	}
	if blobs == nil {
		return nil, errors.New("eviction: blob store is required")
	}

	e := &Engine{
		index:    idx,
		blobs:    blobs,
		capacity: capacity,
		policy:   policy.withDefaults(),
		now:      time.Now,
		log:      logger.WithModule("eviction"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Run performs one eviction pass. The result is valid even when an error is
// returned; errors only mean some phase stopped early.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var (
		result Result
		errs   error
	)

	if e.policy.TTLDays > 0 {
		deleted, freed, err := e.evictExpired(ctx)
		result.add(deleted, freed)
		monitoring.RecordEviction(phaseTTL, "all", deleted, freed)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ttl phase: %w", err))
		}
	}

	if e.capacity != nil {
		for _, category := range models.Categories {
			deleted, freed, err := e.evictOverCapacity(ctx, category)
			result.add(deleted, freed)
			monitoring.RecordEviction(phaseCapacity, string(category), deleted, freed)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("capacity phase %s: %w", category, err))
			}
		}
	}

	fields := []zap.Field{
		zap.Int("deleted", result.Deleted),
		zap.Int64("freed_bytes", result.FreedBytes),
	}
	if errs != nil {
		e.log.Warn("eviction run finished with errors", append(fields, zap.Error(errs))...)
	} else {
		e.log.Info("eviction run finished", fields...)
	}
	return result, errs
}

func (e *Engine) evictExpired(ctx context.Context) (int, int64, error) {
	threshold := e.now().UnixMilli() - int64(e.policy.TTLDays)*dayMs
	if threshold <= 0 {
		// The cutoff predates every timestamp, so no row qualifies.
		return 0, 0, nil
	}
	filter := index.OldestFilter{Before: threshold}

	var (
		deleted int
		freed   int64
	)
	for range ttlIterations {
		rows, err := e.index.ListOldest(ctx, filter, e.policy.BatchSize)
		if err != nil {
			return deleted, freed, err
		}
		if len(rows) == 0 {
			break
		}
		n, bytes, err := e.deleteUnit(ctx, rows)
		if err != nil {
			return deleted, freed, err
		}
		deleted += n
		freed += bytes
		if len(rows) < e.policy.BatchSize {
			break
		}
	}
	return deleted, freed, nil
}

func (e *Engine) evictOverCapacity(ctx context.Context, category models.Category) (int, int64, error) {
	mb, err := e.capacity.CapacityMB(ctx, category)
	if err != nil {
		return 0, 0, err
	}
	ceiling := MBToBytes(mb)
	if ceiling <= 0 {
		return 0, 0, nil
	}

	current, err := e.index.BytesByCategory(ctx, category)
	if err != nil {
		return 0, 0, err
	}
	if current <= ceiling {
		return 0, 0, nil
	}

	filter := index.OldestFilter{Category: category}
	var (
		deleted int
		freed   int64
	)
	for i := 0; i < capacityIterations && current > ceiling; i++ {
		rows, err := e.index.ListOldest(ctx, filter, e.policy.BatchSize)
		if err != nil {
			return deleted, freed, err
		}
		if len(rows) == 0 {
			break
		}
		n, bytes, err := e.deleteUnit(ctx, rows)
		if err != nil {
			return deleted, freed, err
		}
		deleted += n
		freed += bytes
		// The running total is decremented locally rather than re-queried.
		current = max(current-bytes, 0)
		if len(rows) < e.policy.BatchSize {
			break
		}
	}
	return deleted, freed, nil
}

// deleteUnit removes blobs first, then index rows. There is no rollback.
func (e *Engine) deleteUnit(ctx context.Context, rows []models.CacheEntry) (int, int64, error) {
	keys := make([]string, 0, len(rows))
	var bytes int64
	for _, row := range rows {
		keys = append(keys, row.Key)
		bytes += max(row.Size, 0)
	}

	if err := e.blobs.Delete(ctx, keys); err != nil {
		return 0, 0, fmt.Errorf("delete %d blobs: %w", len(keys), err)
	}
	if err := e.index.DeleteMany(ctx, keys); err != nil {
		return 0, 0, fmt.Errorf("delete %d index rows: %w", len(keys), err)
	}
	e.log.Debug("evicted batch", zap.Int("count", len(keys)), zap.Int64("bytes", bytes))
	return len(keys), bytes, nil
}
