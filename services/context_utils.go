package services

import (
	"context"
	"time"
)

// cleanupTimeout bounds bookkeeping that runs after the caller's context is
// done: finishing a run row or releasing the advisory lock.
const cleanupTimeout = 10 * time.Second

// cleanupContext keeps ctx values but replaces its cancellation with
// cleanupTimeout, so cleanup still runs after a canceled job without hanging
// on a dead database.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
