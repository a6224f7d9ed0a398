// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"github.com/pkg/errors"
)

// UninitializedFill constructs a copy of value in every slot of dst.
// If a copy fails, the slots constructed so far are destroyed and the error is returned.
func UninitializedFill[T any](a Allocator[T], dst []T, value T) error {
	for i := range dst {
		if err := CopyConstruct(a, &dst[i], &value); err != nil {
			DestroyRange(a, dst[:i])
			return err
		}
	}
	return nil
}

// UninitializedCopy copy-constructs src into the raw slots at the front of dst.
// On failure nothing is left constructed in dst and src is untouched.
func UninitializedCopy[T any](a Allocator[T], src, dst []T) error {
	dst = dst[:len(src)]
	for i := range src {
		if err := CopyConstruct(a, &dst[i], &src[i]); err != nil {
			DestroyRange(a, dst[:i])
			return err
		}
	}
	return nil
}

// UninitializedMove move-constructs src into the raw slots at the front of dst,
// leaving every element of src moved-from. On failure the constructed part of dst
// is destroyed; elements of src already moved are not restored.
func UninitializedMove[T any](a Allocator[T], src, dst []T) error {
	dst = dst[:len(src)]
	for i := range src {
		if err := MoveConstruct(a, &dst[i], &src[i]); err != nil {
			DestroyRange(a, dst[:i])
			return err
		}
	}
	return nil
}

// UninitializedRelocate transfers src into the raw slots at the front of dst,
// moving when MoveIsSafe reports that no move can fail and copying otherwise.
// When it returns an error src is intact and dst holds no live elements.
// The caller destroys src after a successful transfer either way.
func UninitializedRelocate[T any](a Allocator[T], src, dst []T) error {
	if MoveIsSafe[T]() {
		MustMove(a, src, dst)
		return nil
	}
	return UninitializedCopy(a, src, dst)
}

// MustMove is UninitializedMove for element types whose moves cannot fail.
// A failing move is a broken NoFailMover and panics.
func MustMove[T any](a Allocator[T], src, dst []T) {
	if err := UninitializedMove(a, src, dst); err != nil {
		panic(errors.Wrap(err, "alloc: move declared infallible failed"))
	}
}

// UninitializedValueConstruct constructs a zero value in every slot of dst.
func UninitializedValueConstruct[T any](a Allocator[T], dst []T) error {
	for i := range dst {
		if err := a.Construct(&dst[i], nil); err != nil {
			DestroyRange(a, dst[:i])
			return err
		}
	}
	return nil
}

// MustMoveConstruct is MoveConstruct for element types whose moves cannot fail.
func MustMoveConstruct[T any](a Allocator[T], dst, src *T) {
	if err := MoveConstruct(a, dst, src); err != nil {
		panic(errors.Wrap(err, "alloc: move declared infallible failed"))
	}
}

// DestroyRange destroys every element of s in order.
func DestroyRange[T any](a Allocator[T], s []T) {
	for i := range s {
		a.Destroy(&s[i])
	}
}
