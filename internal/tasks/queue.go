// Package tasks is the async side channel for best-effort work (analytics
// writes, email delivery). Submitting never blocks the caller and a failing
// task is logged and counted, never returned to the request that queued it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hackgods/gov-appointments/internal/observability"
)

var ErrQueueFull = errors.New("task queue full")

// Runner accepts fire-and-forget work.
type Runner interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Queue is a bounded in-process queue drained by a fixed worker pool.
type Queue struct {
	tasks       chan task
	workers     int
	taskTimeout time.Duration
	logger      *observability.Logger

	mu     sync.RWMutex
	closed bool
}

func NewQueue(size, workers int, logger *observability.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		tasks:       make(chan task, size),
		workers:     workers,
		taskTimeout: 30 * time.Second,
		logger:      logger,
	}
}

func (q *Queue) Submit(name string, fn func(ctx context.Context) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		observability.SideTasks.WithLabelValues(name, "dropped").Inc()
		return fmt.Errorf("submit %s: queue closed", name)
	}

	select {
	case q.tasks <- task{name: name, fn: fn}:
		observability.TaskQueueDepth.Inc()
		return nil
	default:
		observability.SideTasks.WithLabelValues(name, "dropped").Inc()
		q.logger.Warn("side task dropped", "task", name)
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. Tasks already
// queued are drained before Run returns.
func (q *Queue) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for t := range q.tasks {
				observability.TaskQueueDepth.Dec()
				q.execute(t)
			}
			return nil
		})
	}

	<-ctx.Done()

	q.mu.Lock()
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	return g.Wait()
}

func (q *Queue) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			observability.SideTasks.WithLabelValues(t.name, "panic").Inc()
			q.logger.Error("side task panicked", "task", t.name, "panic", fmt.Sprint(r))
		}
	}()

	if err := t.fn(ctx); err != nil {
		observability.SideTasks.WithLabelValues(t.name, "failed").Inc()
		q.logger.Error("side task failed", "task", t.name, "error", err)
		return
	}
	observability.SideTasks.WithLabelValues(t.name, "ok").Inc()
}

// Inline runs tasks synchronously on the caller's goroutine while still
// swallowing their errors. CLIs and tests use it.
type Inline struct {
	Logger *observability.Logger
}

func (i Inline) Submit(name string, fn func(ctx context.Context) error) error {
	if err := fn(context.Background()); err != nil {
		observability.SideTasks.WithLabelValues(name, "failed").Inc()
		if i.Logger != nil {
			i.Logger.Error("side task failed", "task", name, "error", err)
		}
	}
	return nil
}
