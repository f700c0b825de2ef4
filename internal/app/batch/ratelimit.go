package batch

import (
	"context"
	"fmt"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/pkg/common"
)

// RateLimited wraps p so each Process call first waits on limiter. A wait
// that is cut short by the context fails only the record being processed.
func RateLimited[T any](p stream.Processor[T], limiter *common.RateLimiter) stream.Processor[T] {
	if limiter == nil {
		return p
	}

	return stream.ProcessorFunc[T](func(ctx context.Context, rec T) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for processor rate limit: %w", err)
		}
		return p.Process(ctx, rec)
	})
}
