// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"github.com/pkg/errors"
)

var (
	// ErrOutOfMemory is returned when the general-purpose heap cannot satisfy a request,
	// either because a configured limit is reached or the request size overflows.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrArenaExhausted is returned when no size class of an arena can satisfy a request
	// and the arena has no fallback.
	ErrArenaExhausted = errors.New("alloc: arena exhausted")

	// ErrBufferExhausted is returned when an external buffer has no room left for a request.
	ErrBufferExhausted = errors.New("alloc: buffer exhausted")

	// ErrReleased is returned when allocating from an arena after Release.
	ErrReleased = errors.New("alloc: arena released")

	// ErrInvalidSize is returned for negative counts, zero-byte requests and
	// alignments that are not a power of two.
	ErrInvalidSize = errors.New("alloc: invalid size")

	// ErrPointerType is returned when a typed allocator would place an element type
	// containing Go pointers into memory the garbage collector does not scan.
	ErrPointerType = errors.New("alloc: element type contains pointers")
)
