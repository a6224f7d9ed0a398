// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// DefaultTypedArenaSize is the number of objects reserved by TypedArenaOf.
const DefaultTypedArenaSize = 1024

// TypedArena pre-reserves storage for a fixed number of objects of one type and
// hands them out one at a time. It serves as the allocation hook of a single
// type: route the type's constructor through New and its disposal through Delete.
//
// Taking more than the reserved number of objects is a precondition violation
// and panics with an index out of range; the arena does not guard against it.
type TypedArena[T any] struct {
	block []T
	next  atomic.Int64
}

// NewTypedArena reserves room for n objects of type T.
func NewTypedArena[T any](n int) *TypedArena[T] {
	return &TypedArena[T]{block: make([]T, n)}
}

// New returns a pointer to the next unused zeroed object. It is safe for
// concurrent use.
func (a *TypedArena[T]) New() *T {
	i := a.next.Add(1) - 1
	return &a.block[i]
}

// Delete ends the lifetime of an object obtained from New. The slot is zeroed
// but never handed out again.
func (a *TypedArena[T]) Delete(p *T) {
	if p == nil {
		return
	}
	Lifecycle[T]{}.Destroy(p)
}

// Len returns the number of objects handed out.
func (a *TypedArena[T]) Len() int {
	return int(min(a.next.Load(), int64(len(a.block))))
}

// Cap returns the number of objects reserved.
func (a *TypedArena[T]) Cap() int {
	return len(a.block)
}

var typedArenas = struct {
	sync.Mutex
	m map[reflect.Type]any
}{m: make(map[reflect.Type]any)}

// TypedArenaOf returns the process-wide arena for T, creating it with
// DefaultTypedArenaSize slots on first use. The arena lives until the process exits.
func TypedArenaOf[T any]() *TypedArena[T] {
	t := reflect.TypeFor[T]()

	typedArenas.Lock()
	defer typedArenas.Unlock()

	if a, ok := typedArenas.m[t]; ok {
		return a.(*TypedArena[T])
	}
	a := NewTypedArena[T](DefaultTypedArenaSize)
	typedArenas.m[t] = a
	return a
}

// DefaultArena returns the process-wide size-class arena, created with default
// options on first use. It is never released.
var DefaultArena = sync.OnceValue(func() *SizeClassArena {
	return NewSizeClassArena()
})
