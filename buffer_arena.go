// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"unsafe"

	"github.com/pkg/errors"
)

// BufferArena bump-allocates from a caller-owned byte span. The caller keeps the
// span alive and unaliased for as long as anything allocated from it is in use.
// Free is a no-op: the span is reclaimed by its owner, not by the arena.
//
// BufferArena is not safe for concurrent use; wrap it with NewConcurrentArena
// to share it between goroutines.
type BufferArena struct {
	buf    []byte
	offset uintptr
	peak   uintptr
}

// NewBufferArena creates an arena over buf.
func NewBufferArena(buf []byte) *BufferArena {
	return &BufferArena{buf: buf}
}

// Alloc satisfies the Arena interface. A request that does not fit fails with
// ErrBufferExhausted and leaves the cursor where it was.
func (b *BufferArena) Alloc(size, alignment uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, errors.Wrap(ErrInvalidSize, "zero-byte allocation")
	}
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}
	if b.buf == nil {
		return nil, ErrReleased
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(b.buf)))
	start := alignUp(base+b.offset, alignment) - base
	if start > uintptr(len(b.buf)) || size > uintptr(len(b.buf))-start {
		return nil, errors.Wrapf(ErrBufferExhausted, "requested %d bytes with %d available", size, b.availableBytes())
	}
	b.offset = start + size
	b.peak = max(b.peak, b.offset)
	return unsafe.Pointer(&b.buf[start]), nil
}

// Free satisfies the Arena interface.
func (b *BufferArena) Free(unsafe.Pointer, uintptr) {}

// Release detaches the arena from its buffer. The buffer itself stays with its owner.
func (b *BufferArena) Release() {
	b.buf = nil
	b.offset = 0
}

// Reset moves the cursor back to the start of the buffer and clears the peak.
// Everything allocated before is invalid afterwards.
func (b *BufferArena) Reset() {
	b.offset = 0
	b.peak = 0
}

// Remaining returns the number of bytes left after the cursor, ignoring alignment padding.
func (b *BufferArena) Remaining() int {
	return int(b.availableBytes())
}

func (b *BufferArena) availableBytes() uintptr {
	return uintptr(len(b.buf)) - b.offset
}

// Len returns the total number of bytes currently allocated in the arena.
func (b *BufferArena) Len() int {
	return int(b.offset)
}

// Cap returns the size of the underlying buffer.
func (b *BufferArena) Cap() int {
	return len(b.buf)
}

// Peak returns the highest cursor position since creation or the last Reset.
func (b *BufferArena) Peak() int {
	return int(b.peak)
}
