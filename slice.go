// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// AllocateSlice carves storage for n elements of type T out of the provided Arena.
// The returned slice has len and cap equal to n. If the arena is nil, it returns
// a slice using Go's built-in make function.
func AllocateSlice[T any](a Arena, n int) ([]T, error) {
	bytes, err := sliceBytes[T](n)
	if err != nil {
		return nil, err
	}
	if a == nil || bytes == 0 {
		return make([]T, n), nil
	}
	var x T
	ptr, err := a.Alloc(bytes, unsafe.Alignof(x))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(ptr), n), nil
}

// FreeSlice returns storage obtained from AllocateSlice to the arena.
func FreeSlice[T any](a Arena, s []T) {
	if a == nil || cap(s) == 0 {
		return
	}
	var x T
	a.Free(unsafe.Pointer(unsafe.SliceData(s)), uintptr(cap(s))*unsafe.Sizeof(x))
}

// ArenaAllocator adapts an Arena to the typed Allocator contract.
type ArenaAllocator[T any] struct {
	Lifecycle[T]
	arena Arena
}

// NewArenaAllocator returns an allocator drawing storage for T from a.
// Arena memory is not scanned by the garbage collector, so element types that
// contain Go pointers are rejected with ErrPointerType.
func NewArenaAllocator[T any](a Arena) (*ArenaAllocator[T], error) {
	if a == nil {
		return nil, errors.New("alloc: nil arena")
	}
	if t := reflect.TypeFor[T](); hasPointers(t) {
		return nil, errors.Wrapf(ErrPointerType, "%s", t)
	}
	return &ArenaAllocator[T]{arena: a}, nil
}

// Allocate satisfies the Allocator interface.
func (a *ArenaAllocator[T]) Allocate(n int) ([]T, error) {
	return AllocateSlice[T](a.arena, n)
}

// Deallocate satisfies the Allocator interface.
func (a *ArenaAllocator[T]) Deallocate(s []T) {
	FreeSlice(a.arena, s)
}

// Arena returns the arena the allocator draws from.
func (a *ArenaAllocator[T]) Arena() Arena {
	return a.arena
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
