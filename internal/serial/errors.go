package serial

import (
	"errors"
	"fmt"
)

// ErrExecutorClosed is returned by Submit and Do after Stop.
var ErrExecutorClosed = errors.New("serial: executor closed")

// ErrQueueFull is the sentinel matched by errors.Is for *QueueFullError.
var ErrQueueFull = errors.New("serial: queue full")

// QueueFullError reports a shard that could not accept a job within the
// enqueue timeout.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("serial: shard %d full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

// Is lets errors.Is(err, ErrQueueFull) match.
func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }
