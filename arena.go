// SPDX-License-Identifier: Apache-2.0

// Package alloc provides pluggable allocation backends: a heap allocator, a
// bookkeeping-free baseline, size-class and external-buffer bump arenas and a
// single-type arena. Typed allocators implement Allocator and are consumed by
// containers such as vector.Vector.
package alloc

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Arena is an interface that describes a source of raw, untyped memory.
//
// Memory returned by an Arena is not scanned by the garbage collector unless the
// implementation says otherwise, so it must only hold pointer-free data.
type Arena interface {
	// Alloc allocates memory of the given size and returns a pointer to it.
	// The alignment parameter specifies the alignment of the allocated memory
	// and must be a power of two.
	Alloc(size, alignment uintptr) (unsafe.Pointer, error)

	// Free releases memory previously returned by Alloc. Bump-style arenas
	// treat it as a no-op and reclaim everything on Release.
	Free(ptr unsafe.Pointer, size uintptr)

	// Release releases the arena's underlying memory back to the system.
	// After invoking this method, the arena should not be used for further allocations.
	Release()

	// Len returns the total number of bytes currently allocated in the arena.
	Len() int

	// Cap returns the total capacity (maximum bytes) that can be allocated in the arena.
	Cap() int

	// Peak returns the peak number of bytes that have been allocated in the arena.
	Peak() int
}

// Allocator is the contract between a container and its allocation strategy.
// Storage obtained from Allocate is raw: a container must Construct a slot
// before reading it and Destroy it before handing the storage back.
type Allocator[T any] interface {
	// Allocate returns storage for n elements with len and cap equal to n.
	Allocate(n int) ([]T, error)

	// Deallocate releases storage previously returned by Allocate.
	// It may be a no-op.
	Deallocate(s []T)

	// Construct begins the lifetime of the element at p. The slot is zeroed
	// and init, if not nil, fills it in. When init fails the slot is left zeroed.
	Construct(p *T, init func(*T) error) error

	// Destroy ends the lifetime of the element at p without releasing storage.
	Destroy(p *T)
}

// Allocate allocates memory for a single value of type T from the provided Arena.
// If passed arena is nil, it allocates memory using Go's built-in new function.
func Allocate[T any](a Arena) (*T, error) {
	if a == nil {
		return new(T), nil
	}
	var x T
	size := unsafe.Sizeof(x)
	if size == 0 {
		return new(T), nil
	}
	ptr, err := a.Alloc(size, unsafe.Alignof(x))
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

func checkAlignment(alignment uintptr) error {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return errors.Wrapf(ErrInvalidSize, "alignment %d is not a power of two", alignment)
	}
	return nil
}

func alignUp(v, alignment uintptr) uintptr {
	return (v + alignment - 1) &^ (alignment - 1)
}
