package campaign

import (
	"context"
	"time"
)

// RetryPolicy bounds directory resolution attempts with a fixed delay
// between them. The zero value retries nothing.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the site's observed flakiness: three attempts
// spaced three seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 3 * time.Second}
}

// Wait blocks for the fixed delay or until ctx is done, whichever is first.
func (p RetryPolicy) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
