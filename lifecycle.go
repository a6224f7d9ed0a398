// SPDX-License-Identifier: Apache-2.0

package alloc

// Copier is implemented by *T for element types whose copies must be deep.
// CopyTo writes an independent copy of the receiver into dst, which is a zeroed slot.
// A failed copy leaves nothing in dst that needs destroying.
type Copier[T any] interface {
	CopyTo(dst *T) error
}

// Mover is implemented by *T for element types that cannot be relocated by plain
// assignment, typically because they hold pointers into themselves. MoveTo
// transfers the receiver into dst and leaves the receiver in a moved-from state.
type Mover[T any] interface {
	MoveTo(dst *T) error
}

// NoFailMover marks a Mover whose MoveTo never returns an error. Containers
// relocate such types by moving rather than copying.
type NoFailMover interface {
	MoveCannotFail()
}

// Destroyer is implemented by *T for element types that release resources when
// their lifetime ends. Destroy is also called on moved-from and zero values.
type Destroyer interface {
	Destroy()
}

// Lifecycle supplies the default Construct and Destroy used by every allocator
// in this package. Embed it to satisfy the object half of Allocator.
type Lifecycle[T any] struct{}

// Construct satisfies the Allocator interface.
func (Lifecycle[T]) Construct(p *T, init func(*T) error) error {
	var zero T
	*p = zero
	if init == nil {
		return nil
	}
	if err := init(p); err != nil {
		*p = zero
		return err
	}
	return nil
}

// Destroy satisfies the Allocator interface.
func (Lifecycle[T]) Destroy(p *T) {
	if d, ok := any(p).(Destroyer); ok {
		d.Destroy()
	}
	var zero T
	*p = zero
}

// MoveIsSafe reports whether relocating a T by moving can never fail.
// Plain assignment is the default move and cannot fail.
func MoveIsSafe[T any]() bool {
	var p *T
	if _, ok := any(p).(Mover[T]); !ok {
		return true
	}
	_, ok := any(p).(NoFailMover)
	return ok
}

// CopyConstruct constructs a copy of *src at dst through a.
func CopyConstruct[T any](a Allocator[T], dst, src *T) error {
	return a.Construct(dst, func(d *T) error {
		return CopyValue(d, src)
	})
}

// MoveConstruct constructs *src at dst through a, leaving src moved-from.
func MoveConstruct[T any](a Allocator[T], dst, src *T) error {
	return a.Construct(dst, func(d *T) error {
		return MoveValue(d, src)
	})
}

// CopyValue writes a copy of *src into the zeroed slot dst, using the Copier
// hook when *T has one and plain assignment otherwise.
func CopyValue[T any](dst, src *T) error {
	if c, ok := any(src).(Copier[T]); ok {
		return c.CopyTo(dst)
	}
	*dst = *src
	return nil
}

// MoveValue transfers *src into the zeroed slot dst, using the Mover hook when
// *T has one. Otherwise it assigns and zeroes src.
func MoveValue[T any](dst, src *T) error {
	if m, ok := any(src).(Mover[T]); ok {
		return m.MoveTo(dst)
	}
	var zero T
	*dst = *src
	*src = zero
	return nil
}
