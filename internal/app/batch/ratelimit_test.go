package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/streambatch/internal/domain/stream"
	"github.com/ahrav/streambatch/pkg/common"
)

func TestRateLimitedProcessor(t *testing.T) {
	var calls int
	inner := stream.ProcessorFunc[string](func(context.Context, string) error {
		calls++
		return nil
	})

	t.Run("nil limiter returns processor unchanged", func(t *testing.T) {
		p := RateLimited[string](inner, nil)
		require.NoError(t, p.Process(context.Background(), "a"))
		assert.Equal(t, 1, calls)
	})

	t.Run("waits on limiter before processing", func(t *testing.T) {
		calls = 0
		p := RateLimited[string](inner, common.NewRateLimiter(1000, 1))
		for range 3 {
			require.NoError(t, p.Process(context.Background(), "a"))
		}
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled wait fails the record", func(t *testing.T) {
		calls = 0
		limiter := common.NewRateLimiter(0.001, 1)
		p := RateLimited[string](inner, limiter)
		require.NoError(t, p.Process(context.Background(), "first"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.Process(ctx, "second")
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
