package contextutil

import (
	"context"
	"time"
)

// ParseTimeout returns the first of values that parses as a positive
// duration, or 0 when none does.
func ParseTimeout(values ...string) time.Duration {
	for _, v := range values {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// WithOptionalTimeout bounds ctx by timeout. A zero timeout only adds
// cancellation.
func WithOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
