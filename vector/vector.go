// SPDX-License-Identifier: Apache-2.0

// Package vector provides Vector, a growable array that acquires storage and
// constructs, relocates and destroys its elements exclusively through an
// alloc.Allocator.
//
// Every operation either completes or returns an error with the vector as it
// was before the call. Element failures come from the element's CopyTo or
// MoveTo hooks (see alloc.Copier and alloc.Mover) or from EmplaceBack init
// functions; allocation failures come from the allocator. Both are returned
// unchanged.
//
// A Vector is not safe for concurrent use.
package vector

import (
	"iter"

	alloc "github.com/wundergraph/go-alloc"
)

// initialCapacity is the capacity the first growth of an empty vector reserves.
const initialCapacity = 16

// Vector is a contiguous sequence of elements of type T.
//
// Slots [0, Len()) hold live elements; slots [Len(), Cap()) are raw storage.
// The zero value is an empty vector using a heap allocator.
type Vector[T any] struct {
	alloc alloc.Allocator[T]
	data  []T // len(data) == capacity, nil iff capacity == 0
	size  int
}

// Option configures a Vector at construction.
type Option[T any] func(*Vector[T])

// WithAllocator sets the allocator the vector draws its storage from.
func WithAllocator[T any](a alloc.Allocator[T]) Option[T] {
	return func(v *Vector[T]) {
		v.alloc = a
	}
}

// New creates an empty vector. It never allocates.
func New[T any](opts ...Option[T]) *Vector[T] {
	v := &Vector[T]{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewFilled creates a vector holding n copies of value, with capacity exactly n.
func NewFilled[T any](n int, value T, opts ...Option[T]) (*Vector[T], error) {
	v := New(opts...)
	if n <= 0 {
		return v, nil
	}
	data, err := v.allocator().Allocate(n)
	if err != nil {
		return nil, err
	}
	if err := alloc.UninitializedFill(v.alloc, data, value); err != nil {
		v.alloc.Deallocate(data)
		return nil, err
	}
	v.data, v.size = data, n
	return v, nil
}

// From creates a vector holding copies of values, with capacity exactly len(values).
func From[T any](values []T, opts ...Option[T]) (*Vector[T], error) {
	v := New(opts...)
	if err := v.adoptCopy(values); err != nil {
		return nil, err
	}
	return v, nil
}

// FromSeq creates a vector holding copies of the values yielded by seq.
func FromSeq[T any](seq iter.Seq[T], opts ...Option[T]) (*Vector[T], error) {
	v := New(opts...)
	for value := range seq {
		if err := v.PushBack(value); err != nil {
			v.Free()
			return nil, err
		}
	}
	return v, nil
}

// Clone returns a copy of v sharing its allocator, with capacity equal to v.Len().
func (v *Vector[T]) Clone() (*Vector[T], error) {
	c := New(WithAllocator(v.allocator()))
	if err := c.adoptCopy(v.Slice()); err != nil {
		return nil, err
	}
	return c, nil
}

// adoptCopy fills an empty vector with copies of values.
func (v *Vector[T]) adoptCopy(values []T) error {
	if len(values) == 0 {
		return nil
	}
	data, err := v.allocator().Allocate(len(values))
	if err != nil {
		return err
	}
	if err := alloc.UninitializedCopy(v.alloc, values, data); err != nil {
		v.alloc.Deallocate(data)
		return err
	}
	v.data, v.size = data, len(values)
	return nil
}

// Take transfers v's storage to a new vector and leaves v empty, with no
// storage and the same allocator. It never allocates and cannot fail.
func (v *Vector[T]) Take() *Vector[T] {
	t := &Vector[T]{alloc: v.allocator(), data: v.data, size: v.size}
	v.data, v.size = nil, 0
	return t
}

// Free destroys the live elements in order and returns the storage to the
// allocator. The vector is left empty and may be reused.
func (v *Vector[T]) Free() {
	v.release()
	v.data, v.size = nil, 0
}

// release destroys the live elements and deallocates the current storage
// without resetting the fields.
func (v *Vector[T]) release() {
	if v.data == nil {
		return
	}
	alloc.DestroyRange(v.alloc, v.data[:v.size])
	v.alloc.Deallocate(v.data)
}

// Assign replaces the contents of v with copies of src's elements. On failure v
// is unchanged.
func (v *Vector[T]) Assign(src *Vector[T]) error {
	if v == src {
		return nil
	}
	tmp := New(WithAllocator(v.allocator()))
	if err := tmp.adoptCopy(src.Slice()); err != nil {
		return err
	}
	v.Swap(tmp)
	tmp.Free()
	return nil
}

// MoveAssign replaces the contents of v with src's storage, leaving src empty.
// v's previous elements are destroyed and its storage released.
func (v *Vector[T]) MoveAssign(src *Vector[T]) {
	if v == src {
		return
	}
	tmp := src.Take()
	v.Swap(tmp)
	tmp.Free()
}

// Swap exchanges the storage, length and allocator of v and other.
func (v *Vector[T]) Swap(other *Vector[T]) {
	v.alloc, other.alloc = other.alloc, v.alloc
	v.data, other.data = other.data, v.data
	v.size, other.size = other.size, v.size
}

// Allocator returns the allocator the vector draws from.
func (v *Vector[T]) Allocator() alloc.Allocator[T] {
	return v.allocator()
}

func (v *Vector[T]) allocator() alloc.Allocator[T] {
	if v.alloc == nil {
		v.alloc = alloc.NewHeapAllocator[T]()
	}
	return v.alloc
}

// Len returns the number of live elements.
func (v *Vector[T]) Len() int {
	return v.size
}

// Cap returns the number of slots the current storage can hold.
func (v *Vector[T]) Cap() int {
	return len(v.data)
}

// Empty reports whether the vector has no live elements.
func (v *Vector[T]) Empty() bool {
	return v.size == 0
}

// At returns the element at index i. i must be in [0, Len()).
func (v *Vector[T]) At(i int) T {
	return v.data[:v.size][i]
}

// Ref returns a pointer to the element at index i. i must be in [0, Len()).
// The pointer is valid until the next operation that changes the capacity.
func (v *Vector[T]) Ref(i int) *T {
	return &v.data[:v.size][i]
}

// Front returns the first element. The vector must not be empty.
func (v *Vector[T]) Front() T {
	return v.At(0)
}

// Back returns the last element. The vector must not be empty.
func (v *Vector[T]) Back() T {
	return v.At(v.size - 1)
}

// Slice returns the live elements. The slice aliases the vector's storage and
// is valid until the next mutating call.
func (v *Vector[T]) Slice() []T {
	return v.data[:v.size:v.size]
}

// All returns an iterator over index-value pairs in order.
func (v *Vector[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < v.size; i++ {
			if !yield(i, v.data[i]) {
				return
			}
		}
	}
}

// Values returns an iterator over the elements in order.
func (v *Vector[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < v.size; i++ {
			if !yield(v.data[i]) {
				return
			}
		}
	}
}

// Backward returns an iterator over index-value pairs from last to first.
func (v *Vector[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := v.size - 1; i >= 0; i-- {
			if !yield(i, v.data[i]) {
				return
			}
		}
	}
}

// Equal reports whether a and b hold the same elements in the same order.
func Equal[T comparable](a, b *Vector[T]) bool {
	return EqualFunc(a, b, func(x, y T) bool { return x == y })
}

// EqualFunc is like Equal but compares elements with eq.
func EqualFunc[T any](a, b *Vector[T], eq func(T, T) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.size; i++ {
		if !eq(a.data[i], b.data[i]) {
			return false
		}
	}
	return true
}
