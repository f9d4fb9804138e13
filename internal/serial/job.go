package serial

import "context"

// Job is a unit of work executed by an Executor.
// Run must be safe for concurrent invocations when the same Job instance is reused.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc is a helper to adapt a function to a Job.
type JobFunc func(ctx context.Context) error

// Run implements Job for JobFunc.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// finisher is implemented by jobs that want the final disposition after
// retries are exhausted. Used by Do to deliver results to waiting callers.
type finisher interface {
	finish(err error)
}

// resultJob carries the outcome of a synchronous submission back to Do.
type resultJob struct {
	fn   func(ctx context.Context) error
	done chan error // buffered, written exactly once by the owning worker
}

func (j *resultJob) Run(ctx context.Context) error { return j.fn(ctx) }

func (j *resultJob) finish(err error) {
	select {
	case j.done <- err:
	default:
	}
}
