package wander

import "context"

// executor abstracts the internal serialized job runner the stores push
// their remote mutations through.
type executor interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
	Stop()
}

// Note: all clients include an executor by default; mutation methods require it.
