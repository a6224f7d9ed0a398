// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConcurrentArenaLenCap(t *testing.T) {
	arena := NewConcurrentArena(NewBufferArena(make([]byte, 1024)))

	require.Equal(t, 0, arena.Len())
	require.Equal(t, 1024, arena.Cap())

	ptr1, err := arena.Alloc(100, 1)
	require.NoError(t, err)
	require.NotNil(t, ptr1)
	require.Equal(t, 100, arena.Len())

	ptr2, err := arena.Alloc(200, 1)
	require.NoError(t, err)
	require.NotNil(t, ptr2)
	require.Equal(t, 300, arena.Len())
	require.Equal(t, 300, arena.Peak())
}

func TestConcurrentArenaConcurrentAccess(t *testing.T) {
	arena := NewConcurrentArena(NewBufferArena(make([]byte, 1024)))

	const numGoroutines = 8
	const allocationsPerGoroutine = 16

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Start multiple goroutines that allocate memory concurrently
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < allocationsPerGoroutine; j++ {
				ptr, err := arena.Alloc(8, 8)
				require.NoError(t, err)
				require.NotNil(t, ptr)
			}
		}()
	}

	wg.Wait()

	// The buffer is filled exactly
	require.Equal(t, 1024, arena.Len())
	_, err := arena.Alloc(8, 8)
	require.ErrorIs(t, err, ErrBufferExhausted)
}

func TestConcurrentArenaRelease(t *testing.T) {
	arena := NewConcurrentArena(NewBufferArena(make([]byte, 64)))

	_, err := arena.Alloc(8, 8)
	require.NoError(t, err)

	arena.Release()
	require.Equal(t, 0, arena.Len())
	_, err = arena.Alloc(8, 8)
	require.ErrorIs(t, err, ErrReleased)
}

func TestConcurrentArenaNilArena(t *testing.T) {
	arena := NewConcurrentArena(nil)

	_, err := arena.Alloc(8, 8)
	require.ErrorIs(t, err, ErrReleased)
	require.Equal(t, 0, arena.Len())
	require.Equal(t, 0, arena.Cap())
	require.Equal(t, 0, arena.Peak())
	arena.Free(nil, 0)
	arena.Release()
}
