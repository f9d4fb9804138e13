// Package serial provides a lightweight sharded work-queue that guarantees
// FIFO order per key while allowing parallelism across shards. The stores
// use it as their single-writer discipline: every remote mutation for a
// given key runs alone, in submission order.
//
// Contract: callers must not invoke Submit concurrently for the *same*
// key if they rely on FIFO ordering between those submissions.
package serial

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	apierr "github.com/wanderapp/wander-go/internal/errors"
)

// Config tunes an Executor. Zero values fall back to defaults suitable for
// interactive client use: short retries, small queues.
type Config struct {
	Shards         int
	QueueSize      int
	EnqueueTimeout time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxInterval    time.Duration

	// ErrorHandler receives the final error of fire-and-forget jobs.
	ErrorHandler func(error)

	Logger zerolog.Logger
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// Executor runs Jobs on worker goroutines partitioned by a stable hash of
// the key (e.g. "session", "favorites/<userID>"). FIFO ordering is
// preserved within a shard; jobs with different keys may run in parallel.
type Executor struct {
	cfg    Config
	queues []chan queuedJob // len == cfg.Shards
	log    zerolog.Logger

	done   chan struct{} // closed in Stop()
	closed uint32        // 0 -> running, 1 -> closed

	wg sync.WaitGroup
}

// New constructs the executor and starts its shard workers.
func New(cfg Config) *Executor {
	if cfg.Shards <= 0 {
		cfg.Shards = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	e := &Executor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		log:    cfg.Logger,
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		e.queues[i] = ch
		e.wg.Add(1)
		go e.runWorker(i, ch)
	}
	return e
}

// Submit enqueues job for the shard derived from key.
//
//   - Returns nil on success.
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns a *QueueFullError if the shard is still full after
//     EnqueueTimeout elapses.
//   - Returns ctx.Err() if the caller-provided context is cancelled first.
func (e *Executor) Submit(ctx context.Context, key string, job Job) error {
	if atomic.LoadUint32(&e.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-e.done:
		return ErrExecutorClosed
	default:
	}

	qj := queuedJob{ctx: ctx, job: job}
	shard := e.shardFor(key)
	ch := e.queues[shard]

	timer := time.NewTimer(e.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-e.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Do submits fn for the shard derived from key and waits for its final
// disposition, retries included. The serialized execution plus the
// synchronous result make Do the mutation path for the stores.
func (e *Executor) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	j := &resultJob{fn: fn, done: make(chan error, 1)}
	if err := e.Submit(ctx, key, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-j.done:
		return err
	}
}

// Barrier enqueues a no-op job on the shard for key and waits until it runs,
// ensuring all previously submitted jobs for that key have completed.
func (e *Executor) Barrier(ctx context.Context, key string) error {
	return e.Do(ctx, key, func(context.Context) error { return nil })
}

// Stop signals every worker to finish draining its current queue, waits for
// them to terminate, and then returns. Idempotent and safe for concurrent use.
func (e *Executor) Stop() {
	if !atomic.CompareAndSwapUint32(&e.closed, 0, 1) {
		return
	}
	e.log.Debug().Int("shards", e.cfg.Shards).Msg("serial: stopping executor")
	close(e.done)
	e.wg.Wait()
	e.log.Debug().Msg("serial: executor stopped, all queues drained")
}

// Close lets Executor satisfy io.Closer.
func (e *Executor) Close() error {
	e.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (e *Executor) runWorker(idx int, ch <-chan queuedJob) {
	defer e.wg.Done()

	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			if qj.job == nil {
				continue
			}

			// Honour caller context so a cancelled job doesn't stall the shard.
			select {
			case <-qj.ctx.Done():
				e.dispose(qj.job, qj.ctx.Err())
			default:
				e.runWithRetry(label, qj)
			}
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-e.done:
			// Drain remaining jobs, preserving FIFO, then exit.
			for {
				select {
				case qj := <-ch:
					if qj.job != nil {
						e.dispose(qj.job, e.runOnce(label, qj))
					}
				default:
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// runWithRetry executes one job, retrying recoverable errors with
// exponential backoff up to MaxAttempts total attempts.
func (e *Executor) runWithRetry(label string, qj queuedJob) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = e.cfg.MaxInterval
	exp.Reset()

	attempts := 0
	for {
		err := e.runOnce(label, qj)
		if err == nil {
			e.dispose(qj.job, nil)
			return
		}
		// Fail fast on errors retrying cannot fix.
		if apierr.IsIrrecoverable(err) || attempts >= e.cfg.MaxAttempts-1 {
			e.dispose(qj.job, err)
			return
		}
		attempts++
		select {
		case <-time.After(exp.NextBackOff()):
		case <-e.done:
			e.dispose(qj.job, err)
			return
		case <-qj.ctx.Done():
			e.dispose(qj.job, qj.ctx.Err())
			return
		}
	}
}

// runOnce executes a single attempt with a panic guard so a misbehaving job
// cannot take down the shard worker.
func (e *Executor) runOnce(label string, qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("serial: job panic")
			err = &apierr.ClassifiedError{
				Kind:       apierr.Validation,
				Category:   apierr.Irrecoverable,
				Underlying: fmt.Errorf("job panic: %v", r),
			}
		}
	}()
	start := time.Now()
	err = qj.job.Run(qj.ctx)
	runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return err
}

// dispose delivers the final error to waiting callers and the configured
// fire-and-forget handler.
func (e *Executor) dispose(job Job, err error) {
	if f, ok := job.(finisher); ok {
		f.finish(err)
		return
	}
	if err == nil || e.cfg.ErrorHandler == nil {
		return
	}
	func() {
		// Guard against panics in the user-supplied handler.
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Interface("panic", r).Msg("serial: error handler panic")
			}
		}()
		e.cfg.ErrorHandler(err)
	}()
}

func (e *Executor) shardFor(key string) int {
	h := fnv.New32a() // fast and sufficient at our scale
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % e.cfg.Shards
}
