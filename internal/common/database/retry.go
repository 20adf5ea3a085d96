package database

import (
	"context"
	"time"
)

// retry calls fn up to attempts times, doubling the wait after each failure.
func retry(ctx context.Context, attempts int, wait time.Duration, fn func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
