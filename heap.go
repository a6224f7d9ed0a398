// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

type heapConfig struct {
	limit int64
}

// HeapOption represents a configuration option for the heap backends.
type HeapOption func(*heapConfig)

// WithLimit caps the number of live bytes a heap backend hands out.
// Requests beyond the cap fail with ErrOutOfMemory. Zero means unlimited.
func WithLimit(bytes int) HeapOption {
	return func(c *heapConfig) {
		c.limit = int64(bytes)
	}
}

// heapCounter tracks live and peak bytes for the heap backends. It is safe for
// concurrent use.
type heapCounter struct {
	limit int64
	live  atomic.Int64
	peak  atomic.Int64
}

func (c *heapCounter) acquire(bytes int64) error {
	for {
		live := c.live.Load()
		next := live + bytes
		if c.limit > 0 && next > c.limit {
			return errors.Wrapf(ErrOutOfMemory, "requested %d bytes with %d of %d in use", bytes, live, c.limit)
		}
		if c.live.CompareAndSwap(live, next) {
			c.raisePeak(next)
			return nil
		}
	}
}

func (c *heapCounter) release(bytes int64) {
	c.live.Add(-bytes)
}

func (c *heapCounter) raisePeak(v int64) {
	for {
		peak := c.peak.Load()
		if v <= peak || c.peak.CompareAndSwap(peak, v) {
			return
		}
	}
}

func (c *heapCounter) capacity() int {
	if c.limit > 0 {
		return int(c.limit)
	}
	return math.MaxInt
}

// HeapAllocator delegates to the Go heap and accounts for every byte it hands out.
// It is safe for concurrent use.
type HeapAllocator[T any] struct {
	Lifecycle[T]
	counter heapCounter
}

// NewHeapAllocator creates a HeapAllocator with optional configuration.
func NewHeapAllocator[T any](opts ...HeapOption) *HeapAllocator[T] {
	var cfg heapConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HeapAllocator[T]{counter: heapCounter{limit: cfg.limit}}
}

// Allocate satisfies the Allocator interface.
func (h *HeapAllocator[T]) Allocate(n int) ([]T, error) {
	bytes, err := sliceBytes[T](n)
	if err != nil {
		return nil, err
	}
	if err := h.counter.acquire(int64(bytes)); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// Deallocate satisfies the Allocator interface.
func (h *HeapAllocator[T]) Deallocate(s []T) {
	if cap(s) == 0 {
		return
	}
	var x T
	h.counter.release(int64(cap(s)) * int64(unsafe.Sizeof(x)))
}

// Len returns the number of bytes currently handed out.
func (h *HeapAllocator[T]) Len() int {
	return int(h.counter.live.Load())
}

// Cap returns the configured limit, or math.MaxInt when unlimited.
func (h *HeapAllocator[T]) Cap() int {
	return h.counter.capacity()
}

// Peak returns the high-water mark of Len.
func (h *HeapAllocator[T]) Peak() int {
	return int(h.counter.peak.Load())
}

// SimpleAllocator is a thin wrapper over make with no bookkeeping.
// It is the baseline the other backends are measured against.
type SimpleAllocator[T any] struct {
	Lifecycle[T]
}

// Allocate satisfies the Allocator interface.
func (SimpleAllocator[T]) Allocate(n int) ([]T, error) {
	if _, err := sliceBytes[T](n); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// Deallocate satisfies the Allocator interface.
func (SimpleAllocator[T]) Deallocate([]T) {}

// HeapArena is an Arena backed by the Go heap. It never runs out unless a limit
// is configured, and is the default fallback of SizeClassArena.
type HeapArena struct {
	counter heapCounter
}

// NewHeapArena creates a HeapArena with optional configuration.
func NewHeapArena(opts ...HeapOption) *HeapArena {
	var cfg heapConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HeapArena{counter: heapCounter{limit: cfg.limit}}
}

// Alloc satisfies the Arena interface.
func (h *HeapArena) Alloc(size, alignment uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, errors.Wrap(ErrInvalidSize, "zero-byte allocation")
	}
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}
	if size > uintptr(math.MaxInt)-alignment {
		return nil, errors.Wrapf(ErrOutOfMemory, "request of %d bytes overflows", size)
	}
	if err := h.counter.acquire(int64(size)); err != nil {
		return nil, err
	}
	buf := make([]byte, size+alignment-1)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), alignUp(base, alignment)-base), nil
}

// Free satisfies the Arena interface. The memory itself is reclaimed by the
// garbage collector once unreferenced.
func (h *HeapArena) Free(_ unsafe.Pointer, size uintptr) {
	h.counter.release(int64(size))
}

// Release satisfies the Arena interface.
func (h *HeapArena) Release() {}

// Len returns the total number of bytes currently allocated in the arena.
func (h *HeapArena) Len() int {
	return int(h.counter.live.Load())
}

// Cap returns the configured limit, or math.MaxInt when unlimited.
func (h *HeapArena) Cap() int {
	return h.counter.capacity()
}

// Peak returns the peak number of bytes that have been allocated in the arena.
func (h *HeapArena) Peak() int {
	return int(h.counter.peak.Load())
}

// sliceBytes returns the byte size of n elements of T, or an error when n is
// negative or the size overflows.
func sliceBytes[T any](n int) (uintptr, error) {
	if n < 0 {
		return 0, errors.Wrapf(ErrInvalidSize, "negative element count %d", n)
	}
	var x T
	size := unsafe.Sizeof(x)
	if size > 0 && uintptr(n) > uintptr(math.MaxInt)/size {
		return 0, errors.Wrapf(ErrOutOfMemory, "%d elements of %d bytes overflow", n, size)
	}
	return uintptr(n) * size, nil
}
