package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGeneratorNew(t *testing.T) {
	t.Run("returns sequential ids", func(t *testing.T) {
		var idGen IDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), idGen.New())
		}
		require.Equal(t, 5, idGen.InUse())
	})

	t.Run("returns the lowest released id", func(t *testing.T) {
		var idGen IDGenerator

		for i := 1; i <= 5; i++ {
			idGen.New()
		}

		idGen.Release(4)
		idGen.Release(2)
		require.Equal(t, 3, idGen.InUse())

		require.Equal(t, uint32(2), idGen.New())
		require.Equal(t, uint32(4), idGen.New())
		require.Equal(t, uint32(6), idGen.New())
	})

	t.Run("ignores unknown and double releases", func(t *testing.T) {
		var idGen IDGenerator
		idGen.New()

		idGen.Release(0)
		idGen.Release(7)
		idGen.Release(1)
		idGen.Release(1)
		require.Equal(t, 0, idGen.InUse())
		require.Equal(t, uint32(1), idGen.New())
	})

	t.Run("is safe for concurrent use", func(t *testing.T) {
		var idGen IDGenerator
		var wg sync.WaitGroup

		ids := make([]uint32, 100)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = idGen.New()
			}(i)
		}
		wg.Wait()

		seen := make(map[uint32]bool)
		for _, id := range ids {
			require.False(t, seen[id])
			seen[id] = true
		}
		require.Equal(t, 100, idGen.InUse())
	})
}
