package app

import (
	"context"
	"time"

	"review_studio/internal/domain"
)

// RetryWithBackoff calls fn up to maxRetries times, sleeping base*2^attempt
// between attempts. Errors matching domain.IsAlreadyExists are returned
// immediately. The last error is returned when attempts run out.
func RetryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func(attempt int) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if domain.IsAlreadyExists(err) {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}
		if !sleepCtx(ctx, base*time.Duration(1<<attempt)) {
			return ctx.Err()
		}
	}
	return err
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
