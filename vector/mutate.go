// SPDX-License-Identifier: Apache-2.0

package vector

import (
	alloc "github.com/wundergraph/go-alloc"
)

// PushBack appends a copy of value, growing the storage first if it is full.
// If the copy fails the existing elements are untouched.
func (v *Vector[T]) PushBack(value T) error {
	return v.EmplaceBack(func(slot *T) error {
		return alloc.CopyValue(slot, &value)
	})
}

// EmplaceBack appends an element built in place by init. If init fails the
// existing elements are untouched and the new slot stays raw.
func (v *Vector[T]) EmplaceBack(init func(*T) error) error {
	if v.size == len(v.data) {
		if err := v.grow(); err != nil {
			return err
		}
	}
	if err := v.alloc.Construct(&v.data[v.size], init); err != nil {
		return err
	}
	v.size++
	return nil
}

// PopBack destroys the last element. The vector must not be empty.
func (v *Vector[T]) PopBack() {
	v.size--
	v.alloc.Destroy(&v.data[v.size])
}

// Clear destroys every element and keeps the storage.
func (v *Vector[T]) Clear() {
	if v.data == nil {
		return
	}
	alloc.DestroyRange(v.alloc, v.data[:v.size])
	v.size = 0
}

// grow doubles the capacity, or reserves initialCapacity slots when there is no storage.
func (v *Vector[T]) grow() error {
	return v.reallocate(v.nextCapacity(v.size + 1))
}

// nextCapacity returns the capacity to grow to so that at least need elements fit.
func (v *Vector[T]) nextCapacity(need int) int {
	c := len(v.data)
	if c == 0 {
		c = initialCapacity
	}
	for c < need {
		c *= 2
	}
	return c
}

// Reserve makes room for at least n elements. It does nothing when n <= Cap().
// On failure the vector is unchanged.
func (v *Vector[T]) Reserve(n int) error {
	if n <= len(v.data) {
		return nil
	}
	return v.reallocate(n)
}

// Resize reserves room for n elements and appends zero values up to n. Like
// Reserve, it does nothing when n <= Cap().
func (v *Vector[T]) Resize(n int) error {
	if n <= len(v.data) {
		return nil
	}
	if err := v.reallocate(n); err != nil {
		return err
	}
	if err := alloc.UninitializedValueConstruct(v.alloc, v.data[v.size:n]); err != nil {
		return err
	}
	v.size = n
	return nil
}

// reallocate moves the live elements into fresh storage of n slots. Elements are
// moved when moves cannot fail and copied otherwise; a failed copy releases the
// new storage and leaves the vector as it was.
func (v *Vector[T]) reallocate(n int) error {
	a := v.allocator()
	data, err := a.Allocate(n)
	if err != nil {
		return err
	}
	if err := alloc.UninitializedRelocate(a, v.data[:v.size], data); err != nil {
		a.Deallocate(data)
		return err
	}
	v.release()
	v.data = data
	return nil
}

// Insert inserts copies of values before index pos and returns the index of the
// first inserted element. pos must be in [0, Len()].
//
// When moves cannot fail the values are first copied aside, so that a failing
// copy leaves the vector untouched, and the tail is shifted in place. Otherwise
// the whole sequence is copied into fresh storage.
func (v *Vector[T]) Insert(pos int, values ...T) (int, error) {
	_ = v.data[pos:v.size]
	if len(values) == 0 {
		return pos, nil
	}
	a := v.allocator()
	if !alloc.MoveIsSafe[T]() {
		n := len(v.data)
		if v.size+len(values) > n {
			n = v.nextCapacity(v.size + len(values))
		}
		return pos, v.rebuild(n, v.data[:pos], values, v.data[pos:v.size])
	}

	staged := make([]T, len(values))
	if err := alloc.UninitializedCopy(a, values, staged); err != nil {
		return pos, err
	}
	if free := len(v.data) - v.size; free < len(values) {
		// storage is replaced; pos stays valid as an index into the new block
		if err := v.reallocate(v.nextCapacity(v.size + len(values))); err != nil {
			alloc.DestroyRange(a, staged)
			return pos, err
		}
	}
	v.insertInPlace(pos, staged)
	alloc.DestroyRange(a, staged)
	return pos, nil
}

// insertInPlace opens a gap of len(staged) slots at pos and moves staged into it.
// The storage must have room and every move must be infallible.
func (v *Vector[T]) insertInPlace(pos int, staged []T) {
	a, d := v.alloc, v.data
	n := len(staged)
	end := v.size
	after := end - pos

	if after > n {
		// the last n elements land on raw storage, the rest shifts within live slots
		alloc.MustMove(a, d[end-n:end], d[end:end+n])
		for i := end - n - 1; i >= pos; i-- {
			v.moveAssign(&d[i+n], &d[i])
		}
		for i := range staged {
			v.moveAssign(&d[pos+i], &staged[i])
		}
	} else {
		// staged values past the old end land on raw storage, then the whole tail does
		alloc.MustMove(a, staged[after:], d[end:end+n-after])
		alloc.MustMove(a, d[pos:end], d[pos+n:end+n])
		for i := 0; i < after; i++ {
			v.moveAssign(&d[pos+i], &staged[i])
		}
	}
	v.size += n
}

// moveAssign replaces the live element at dst with *src, leaving src moved-from.
func (v *Vector[T]) moveAssign(dst, src *T) {
	v.alloc.Destroy(dst)
	alloc.MustMoveConstruct(v.alloc, dst, src)
}

// Erase removes the element at index pos and returns pos, which now holds the
// element that followed, or equals Len() if the last element was removed.
// pos must be in [0, Len()).
func (v *Vector[T]) Erase(pos int) (int, error) {
	_ = v.data[:v.size][pos]
	if !alloc.MoveIsSafe[T]() {
		return pos, v.rebuild(len(v.data), v.data[:pos], v.data[pos+1:v.size])
	}
	d := v.data
	for i := pos; i < v.size-1; i++ {
		v.moveAssign(&d[i], &d[i+1])
	}
	v.size--
	v.alloc.Destroy(&d[v.size])
	return pos, nil
}

// rebuild copies parts, in order, into fresh storage of n slots and adopts it.
// On failure everything copied so far is destroyed and the vector is unchanged.
func (v *Vector[T]) rebuild(n int, parts ...[]T) error {
	a := v.allocator()
	data, err := a.Allocate(n)
	if err != nil {
		return err
	}
	size := 0
	for _, part := range parts {
		if err := alloc.UninitializedCopy(a, part, data[size:]); err != nil {
			alloc.DestroyRange(a, data[:size])
			a.Deallocate(data)
			return err
		}
		size += len(part)
	}
	v.release()
	v.data, v.size = data, size
	return nil
}
