// Package background runs fire-and-forget work that must still finish before
// the process exits.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/pkg/logger"
)

// ErrClosed is returned by Go once the group has started draining.
var ErrClosed = errors.New("background: group closed")

const defaultTaskTimeout = 10 * time.Minute

// Task is a unit of deferred work. The context expires after the group's
// task timeout or when the group is cancelled.
type Task func(ctx context.Context) error

// Group tracks deferred tasks detached from the request that spawned them.
type Group struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	timeout time.Duration
	base    context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

// Option customises a Group.
type Option func(*Group)

// WithTaskTimeout bounds every task's context.
func WithTaskTimeout(d time.Duration) Option {
	return func(g *Group) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger overrides the logger used for task failures.
func WithLogger(log *zap.Logger) Option {
	return func(g *Group) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGroup creates an open task group.
func NewGroup(opts ...Option) *Group {
	base, cancel := context.WithCancel(context.Background())
	g := &Group{
		timeout: defaultTaskTimeout,
		base:    base,
		cancel:  cancel,
		log:     logger.WithModule("background"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Go schedules task. Errors and panics are logged under name and never
// propagate to the caller.
func (g *Group) Go(name string, task Task) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(g.base, g.timeout)
		defer cancel()

		if err := g.run(ctx, task); err != nil {
			g.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
	return nil
}

func (g *Group) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// Wait stops accepting tasks and blocks until running ones finish. When ctx
// ends first the remaining tasks are cancelled and ctx's error is returned.
func (g *Group) Wait(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.cancel()
		<-done
		return ctx.Err()
	}
}
