// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func classUsage(a *SizeClassArena) map[int]int {
	used := make(map[int]int)
	for _, c := range a.Stats().Classes {
		used[c.SlotSize] = c.Used
	}
	return used
}

func TestSizeClassArenaDefaults(t *testing.T) {
	arena := NewSizeClassArena()
	require.Equal(t, (8+16+32+64+128+256+512+1024)*256, arena.Cap())
	require.Equal(t, 0, arena.Len())
	require.Len(t, arena.Stats().Classes, 8)
}

func TestSizeClassArenaRoundsClasses(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(100, 3, 24, 24, 0, -5), WithSlotsPerClass(4))

	stats := arena.Stats()
	require.Len(t, stats.Classes, 3)
	require.Equal(t, 8, stats.Classes[0].SlotSize)
	require.Equal(t, 32, stats.Classes[1].SlotSize)
	require.Equal(t, 128, stats.Classes[2].SlotSize)
	require.Equal(t, (8+32+128)*4, arena.Cap())
}

func TestSizeClassArenaPicksSmallestFittingClass(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(8, 32, 16), WithSlotsPerClass(2), WithoutFallback())

	_, err := arena.Alloc(10, 8)
	require.NoError(t, err)
	require.Equal(t, map[int]int{8: 0, 16: 1, 32: 0}, classUsage(arena))

	_, err = arena.Alloc(16, 8)
	require.NoError(t, err)
	require.Equal(t, map[int]int{8: 0, 16: 2, 32: 0}, classUsage(arena))

	// the 16-byte class is full, so the next larger class serves the request
	_, err = arena.Alloc(12, 4)
	require.NoError(t, err)
	require.Equal(t, map[int]int{8: 0, 16: 2, 32: 1}, classUsage(arena))

	_, err = arena.Alloc(4, 4)
	require.NoError(t, err)
	require.Equal(t, map[int]int{8: 1, 16: 2, 32: 1}, classUsage(arena))

	require.Equal(t, 8+16+16+32, arena.Len())
	require.Equal(t, arena.Len(), arena.Peak())
}

func TestSizeClassArenaExhaustion(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(64), WithSlotsPerClass(3), WithoutFallback())

	seen := make(map[uintptr]bool)
	for i := 0; i < 3; i++ {
		ptr, err := arena.Alloc(64, 8)
		require.NoError(t, err)
		require.Zero(t, uintptr(ptr)%8)
		require.False(t, seen[uintptr(ptr)])
		seen[uintptr(ptr)] = true
	}

	_, err := arena.Alloc(64, 8)
	require.ErrorIs(t, err, ErrArenaExhausted)
	require.Equal(t, 3*64, arena.Len())

	_, err = arena.Alloc(1, 1)
	require.ErrorIs(t, err, ErrArenaExhausted)
	require.Equal(t, 3, arena.Stats().Classes[0].Used)
}

func TestSizeClassArenaFallsBackWhenFull(t *testing.T) {
	heap := NewHeapArena()
	arena := NewSizeClassArena(WithSizeClasses(64), WithSlotsPerClass(3), WithFallback(heap))

	var managed []unsafe.Pointer
	for i := 0; i < 3; i++ {
		ptr, err := arena.Alloc(48, 8)
		require.NoError(t, err)
		managed = append(managed, ptr)
	}
	require.Equal(t, 0, arena.Stats().Fallbacks)

	ptr, err := arena.Alloc(48, 8)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	require.Equal(t, 1, arena.Stats().Fallbacks)
	require.Equal(t, 48, heap.Len())

	// freeing a managed slot is a no-op, freeing a fallback block reaches the heap
	arena.Free(managed[0], 48)
	require.Equal(t, 3*64, arena.Len())
	arena.Free(ptr, 48)
	require.Equal(t, 0, heap.Len())
}

func TestSizeClassArenaFallbackForOversizedAndOveraligned(t *testing.T) {
	heap := NewHeapArena()
	arena := NewSizeClassArena(WithSizeClasses(8, 1024), WithSlotsPerClass(1), WithFallback(heap))

	_, err := arena.Alloc(2048, 8)
	require.NoError(t, err)
	require.Equal(t, 2048, heap.Len())

	ptr, err := arena.Alloc(8, 16)
	require.NoError(t, err)
	require.Zero(t, uintptr(ptr)%16)
	require.Equal(t, 2, arena.Stats().Fallbacks)
	require.Equal(t, 0, arena.Len())
}

func TestSizeClassArenaInvalidRequests(t *testing.T) {
	arena := NewSizeClassArena()

	_, err := arena.Alloc(0, 8)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = arena.Alloc(8, 6)
	require.ErrorIs(t, err, ErrInvalidSize)
	require.Equal(t, 0, arena.Len())
}

func TestSizeClassArenaRelease(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(16), WithSlotsPerClass(4))

	ptr, err := arena.Alloc(16, 8)
	require.NoError(t, err)

	arena.Release()
	require.True(t, arena.Stats().Released)

	_, err = arena.Alloc(16, 8)
	require.ErrorIs(t, err, ErrReleased)

	// freeing after release stays a no-op
	arena.Free(ptr, 16)
	arena.Release()
}

func TestSizeClassArenaConcurrentAccess(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(8), WithSlotsPerClass(1000), WithoutFallback())

	const numGoroutines = 10
	const allocationsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[uintptr]struct{}, numGoroutines*allocationsPerGoroutine)

	var g errgroup.Group
	for i := 0; i < numGoroutines; i++ {
		g.Go(func() error {
			for j := 0; j < allocationsPerGoroutine; j++ {
				ptr, err := arena.Alloc(8, 8)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[uintptr(ptr)] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, seen, numGoroutines*allocationsPerGoroutine)
	require.Equal(t, arena.Cap(), arena.Len())

	_, err := arena.Alloc(8, 8)
	require.ErrorIs(t, err, ErrArenaExhausted)
}

func TestSizeClassArenaConcurrentExhaustion(t *testing.T) {
	arena := NewSizeClassArena(WithSizeClasses(32), WithSlotsPerClass(500), WithoutFallback())

	const numGoroutines = 10
	const allocationsPerGoroutine = 100

	var ok, exhausted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < allocationsPerGoroutine; j++ {
				if _, err := arena.Alloc(24, 8); err != nil {
					require.ErrorIs(t, err, ErrArenaExhausted)
					exhausted.Add(1)
					continue
				}
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 500, ok.Load())
	require.EqualValues(t, 500, exhausted.Load())
	require.Equal(t, 500*32, arena.Len())
}

func TestDefaultArenaIsShared(t *testing.T) {
	require.Same(t, DefaultArena(), DefaultArena())
}

func BenchmarkSizeClassArenaAlloc(b *testing.B) {
	arena := NewSizeClassArena(WithSizeClasses(16), WithSlotsPerClass(b.N+1), WithoutFallback())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = arena.Alloc(16, 8)
	}
}
