package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearSequence(t *testing.T) {
	ctx := context.Background()
	gen := NewYearSequence("TCK")

	t.Run("strictly increasing within a year", func(t *testing.T) {
		store := NewMemoryCounterStore()
		now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

		first, err := gen.Next(ctx, store, now)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-0001", first)

		second, err := gen.Next(ctx, store, now)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-0002", second)
	})

	t.Run("sequence resets per calendar year", func(t *testing.T) {
		store := NewMemoryCounterStore()

		dec := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)
		tn, err := gen.Next(ctx, store, dec)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-0001", tn)

		jan := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
		tn, err = gen.Next(ctx, store, jan)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2026-0001", tn)

		// The old year keeps its own counter.
		tn, err = gen.Next(ctx, store, dec)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-0002", tn)
	})

	t.Run("width grows past 9999", func(t *testing.T) {
		store := NewMemoryCounterStore()
		store.Seed(2025, 9998)
		now := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

		tn, err := gen.Next(ctx, store, now)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-9999", tn)

		tn, err = gen.Next(ctx, store, now)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-10000", tn)
	})

	t.Run("empty prefix falls back to default", func(t *testing.T) {
		store := NewMemoryCounterStore()
		plain := NewYearSequence("")
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		tn, err := plain.Next(ctx, store, now)
		require.NoError(t, err)
		assert.Equal(t, "TCK-2025-0001", tn)
	})

	t.Run("concurrent generation yields no duplicates or gaps", func(t *testing.T) {
		store := NewMemoryCounterStore()
		now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

		const workers = 50
		results := make(chan string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tn, err := gen.Next(ctx, store, now)
				assert.NoError(t, err)
				results <- tn
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool)
		for tn := range results {
			assert.False(t, seen[tn], "duplicate number %s", tn)
			seen[tn] = true
		}
		require.Len(t, seen, workers)
		for i := 1; i <= workers; i++ {
			assert.True(t, seen[fmt.Sprintf("TCK-2025-%04d", i)], "missing sequence value %d", i)
		}
	})
}
