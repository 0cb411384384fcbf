// Copyright (c) 2026 tasquencer authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package worker runs the host-side loop that polls a Store for due
// ScheduledJob rows and dispatches each to a Handler, outside the
// transaction that originally enqueued it (§6's "released to a host-run
// dispatcher only once that transaction commits").
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tasquencer/tasquencer/internal"
)

// Handler processes one due scheduled job. It is expected to re-validate
// the job against current state itself (the job's (workflowId, taskName,
// generation) may be stale if it raced a cancellation, per §5's
// cancellation semantics) and return TaskNotFoundError rather than panic
// when that happens; Dispatcher treats that as a terminal, non-retried
// outcome.
type Handler func(ctx context.Context, job *internal.ScheduledJobRow) error

// Dispatcher polls store on an interval, fanning due jobs out to Handler
// with bounded concurrency and exponential backoff on transient errors.
type Dispatcher struct {
	store    internal.Store
	handler  Handler
	logger   *zap.Logger
	interval time.Duration
	batch    int
	maxRetry int
	backoff  Backoff
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

func WithInterval(d time.Duration) Option { return func(d2 *Dispatcher) { d2.interval = d } }
func WithBatchSize(n int) Option          { return func(d *Dispatcher) { d.batch = n } }
func WithMaxRetries(n int) Option         { return func(d *Dispatcher) { d.maxRetry = n } }
func WithBackoff(b Backoff) Option        { return func(d *Dispatcher) { d.backoff = b } }
func WithLogger(l *zap.Logger) Option     { return func(d *Dispatcher) { d.logger = l } }

// New builds a Dispatcher over store, calling handler for every due job.
func New(store internal.Store, handler Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		handler:  handler,
		logger:   zap.NewNop(),
		interval: time.Second,
		batch:    64,
		maxRetry: 5,
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until ctx is canceled, dispatching each poll's due jobs
// concurrently (one goroutine per job within a poll, so at most the batch
// size at once) before sleeping interval and polling again.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if err := d.pollOnce(ctx); err != nil {
			d.logger.Warn("scheduled job poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) error {
	var due []*internal.ScheduledJobRow
	err := d.store.Tx(ctx, func(tx internal.Tx) error {
		jobs, err := tx.DueScheduledJobs(time.Now(), d.batch)
		if err != nil {
			return err
		}
		due = jobs
		return nil
	})
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range due {
		job := job
		g.Go(func() error {
			d.dispatchWithRetry(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

// dispatchWithRetry calls the handler, retrying on error up to maxRetry
// times with backoff between attempts. It never returns an error itself:
// a job that exhausts its retries is logged and left for the next poll
// to pick up again, since DueScheduledJobs only filters on
// canceled/dispatched, not on attempt count.
func (d *Dispatcher) dispatchWithRetry(ctx context.Context, job *internal.ScheduledJobRow) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.backoff.Delay(attempt)):
			}
		}
		if err := d.handler(ctx, job); err != nil {
			lastErr = err
			if internal.IsCode(err, internal.CodeTaskNotFound) {
				// stale job raced a cancellation; cancel it so no later poll
				// picks it up again
				if cErr := d.store.Tx(ctx, func(tx internal.Tx) error {
					return tx.CancelScheduledJob(job.ID)
				}); cErr != nil {
					d.logger.Warn("failed to cancel stale scheduled job", zap.Error(cErr), zap.String("jobId", string(job.ID)))
				}
				return
			}
			continue
		}
		if err := d.markDispatched(ctx, job.ID); err != nil {
			d.logger.Warn("failed to mark scheduled job dispatched", zap.Error(err), zap.String("jobId", string(job.ID)))
		}
		return
	}
	d.logger.Warn("scheduled job exhausted retries",
		zap.String("jobId", string(job.ID)), zap.Error(lastErr))
}

func (d *Dispatcher) markDispatched(ctx context.Context, id internal.ScheduledJobID) error {
	return d.store.Tx(ctx, func(tx internal.Tx) error {
		return tx.MarkScheduledJobDispatched(id, time.Now())
	})
}
