// Package dataset memoizes loaded tables for a bounded time so that
// queries reuse one immutable snapshot instead of re-reading exports.
package dataset

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded table is reused before reloading.
const DefaultTTL = time.Hour

// LoadFunc produces a fresh value for a Slot.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// snapshot is an immutable published value.
type snapshot[T any] struct {
	value    T
	loadedAt time.Time
}

// Slot holds a single lazily loaded value with a time-to-live.
// Concurrent misses share one load, and readers only ever see a complete
// snapshot.
type Slot[T any] struct {
	name   string
	load   LoadFunc[T]
	ttl    time.Duration
	now    func() time.Time
	logger logrus.FieldLogger

	group   singleflight.Group
	current atomic.Pointer[snapshot[T]]
	gen     atomic.Uint64 // bumped by Invalidate
}

// SlotOption configures a Slot.
type SlotOption func(*slotConfig)

type slotConfig struct {
	ttl    time.Duration
	now    func() time.Time
	logger logrus.FieldLogger
}

// WithTTL sets how long a loaded value stays fresh.
func WithTTL(d time.Duration) SlotOption {
	return func(c *slotConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SlotOption {
	return func(c *slotConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used to report loads.
func WithLogger(l logrus.FieldLogger) SlotOption {
	return func(c *slotConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSlot creates a Slot that fills itself with load on first use.
func NewSlot[T any](name string, load LoadFunc[T], opts ...SlotOption) *Slot[T] {
	cfg := slotConfig{
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Slot[T]{
		name:   name,
		load:   load,
		ttl:    cfg.ttl,
		now:    cfg.now,
		logger: cfg.logger,
	}
}

// Get returns the cached value, loading it if absent or expired. A failed
// load leaves any previous snapshot in place and returns the error.
func (s *Slot[T]) Get(ctx context.Context) (T, error) {
	if snap := s.current.Load(); snap != nil && s.fresh(snap) {
		return snap.value, nil
	}

	v, err, _ := s.group.Do(s.name, func() (any, error) {
		// Another caller may have refreshed while we waited.
		if snap := s.current.Load(); snap != nil && s.fresh(snap) {
			return snap, nil
		}

		gen := s.gen.Load()
		start := s.now()
		value, err := s.load(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("dataset", s.name).Error("Loading dataset failed")
			return nil, err
		}

		snap := &snapshot[T]{value: value, loadedAt: s.now()}
		if s.gen.Load() != gen {
			// Invalidated mid-load: hand the value to the waiting callers
			// but do not keep it.
			s.logger.WithField("dataset", s.name).Info("Dataset changed while loading, discarding snapshot")
			return snap, nil
		}
		s.current.Store(snap)
		s.logger.WithFields(logrus.Fields{
			"dataset":  s.name,
			"duration": s.now().Sub(start),
		}).Info("Dataset loaded")
		return snap, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(*snapshot[T]).value, nil
}

// LoadedAt returns when the current snapshot was loaded, or the zero time.
func (s *Slot[T]) LoadedAt() time.Time {
	if snap := s.current.Load(); snap != nil {
		return snap.loadedAt
	}
	return time.Time{}
}

// Invalidate drops the current snapshot so the next Get reloads. A load
// already in progress is not published, and later callers do not join it.
func (s *Slot[T]) Invalidate() {
	s.gen.Add(1)
	s.current.Store(nil)
	s.group.Forget(s.name)
}

func (s *Slot[T]) fresh(snap *snapshot[T]) bool {
	return s.now().Before(snap.loadedAt.Add(s.ttl))
}
