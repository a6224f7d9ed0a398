// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"slices"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	minSlotSize = 8
	// blocks are backed by []uint64, so every slot is aligned to at least this
	maxSlotAlign = unsafe.Alignof(uint64(0))

	defaultSlotsPerClass = 256
)

var defaultSizeClasses = []int{8, 16, 32, 64, 128, 256, 512, 1024}

// bumpBlock is one contiguous block holding a fixed number of same-size slots.
// The cursor only moves forward; slots are never handed out twice.
type bumpBlock struct {
	mem      []uint64 // keeps the block alive
	base     uintptr
	slotSize uintptr
	slots    int
	next     int
}

func newBumpBlock(slotSize uintptr, slots int) *bumpBlock {
	words := int(slotSize/8) * slots
	mem := make([]uint64, words)
	b := &bumpBlock{mem: mem, slotSize: slotSize, slots: slots}
	if words > 0 {
		b.base = uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	}
	return b
}

func (b *bumpBlock) fits(size, alignment uintptr) bool {
	return b.mem != nil && size <= b.slotSize && alignment <= min(b.slotSize, maxSlotAlign) && b.next < b.slots
}

func (b *bumpBlock) alloc() unsafe.Pointer {
	ptr := unsafe.Add(unsafe.Pointer(unsafe.SliceData(b.mem)), uintptr(b.next)*b.slotSize)
	b.next++
	return ptr
}

func (b *bumpBlock) owns(ptr uintptr) bool {
	return b.base != 0 && b.base <= ptr && ptr < b.base+b.slotSize*uintptr(b.slots)
}

func (b *bumpBlock) size() uintptr {
	return b.slotSize * uintptr(b.slots)
}

// SizeClassStats describes the usage of one size class.
type SizeClassStats struct {
	SlotSize int // bytes per slot
	Slots    int // slots reserved for the class
	Used     int // slots handed out so far
}

// SizeClassArenaStats is a snapshot of a SizeClassArena.
type SizeClassArenaStats struct {
	Classes   []SizeClassStats
	Fallbacks int // allocations served by the fallback arena
	Released  bool
}

// SizeClassArena pre-reserves one block per size class and serves requests by
// bumping the cursor of the smallest class that fits. Requests no class can
// serve go to the fallback arena, a HeapArena unless configured otherwise.
//
// Free is a no-op for addresses inside a managed block: freed slots are not
// reclaimed until Release. Alloc is safe for concurrent use.
type SizeClassArena struct {
	mu        sync.Mutex
	classes   []*bumpBlock // ascending slot size, immutable after construction
	fallback  Arena
	fallbacks int
	used      uintptr
	released  bool
}

type sizeClassConfig struct {
	sizes    []int
	slots    int
	fallback Arena
	noFall   bool
}

// SizeClassArenaOption represents a configuration option for a size-class arena.
type SizeClassArenaOption func(*sizeClassConfig)

// WithSizeClasses sets the slot sizes. Each size is rounded up to a power of two
// of at least 8 bytes; duplicates collapse into one class.
func WithSizeClasses(sizes ...int) SizeClassArenaOption {
	return func(c *sizeClassConfig) {
		c.sizes = sizes
	}
}

// WithSlotsPerClass sets how many allocations each size class can serve.
func WithSlotsPerClass(slots int) SizeClassArenaOption {
	return func(c *sizeClassConfig) {
		c.slots = slots
	}
}

// WithFallback sets the arena used for requests no size class can serve.
func WithFallback(a Arena) SizeClassArenaOption {
	return func(c *sizeClassConfig) {
		c.fallback = a
		c.noFall = false
	}
}

// WithoutFallback makes the arena report ErrArenaExhausted instead of falling back.
func WithoutFallback() SizeClassArenaOption {
	return func(c *sizeClassConfig) {
		c.fallback = nil
		c.noFall = true
	}
}

// NewSizeClassArena creates a size-class arena with optional configuration.
// If no options are provided, it uses classes from 8 to 1024 bytes with 256
// slots each and falls back to a HeapArena.
func NewSizeClassArena(opts ...SizeClassArenaOption) *SizeClassArena {
	cfg := sizeClassConfig{
		sizes: defaultSizeClasses,
		slots: defaultSlotsPerClass,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fallback == nil && !cfg.noFall {
		cfg.fallback = NewHeapArena()
	}

	a := &SizeClassArena{fallback: cfg.fallback}
	for _, size := range roundSizeClasses(cfg.sizes) {
		a.classes = append(a.classes, newBumpBlock(size, max(cfg.slots, 0)))
	}
	return a
}

func roundSizeClasses(sizes []int) []uintptr {
	out := make([]uintptr, 0, len(sizes))
	for _, s := range sizes {
		if s <= 0 {
			continue
		}
		size := uintptr(minSlotSize)
		for size < uintptr(s) {
			size <<= 1
		}
		out = append(out, size)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Alloc satisfies the Arena interface.
func (a *SizeClassArena) Alloc(size, alignment uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, errors.Wrap(ErrInvalidSize, "zero-byte allocation")
	}
	if err := checkAlignment(alignment); err != nil {
		return nil, err
	}

	ptr, err := a.bump(size, alignment)
	if ptr != nil || err != nil {
		return ptr, err
	}

	if a.fallback == nil {
		return nil, errors.Wrapf(ErrArenaExhausted, "no size class can serve %d bytes", size)
	}
	ptr, err = a.fallback.Alloc(size, alignment)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.fallbacks++
	a.mu.Unlock()
	return ptr, nil
}

// bump takes a slot from the smallest fitting class, holding the lock only for
// the cursor update. It returns nil, nil when no class can serve the request.
func (a *SizeClassArena) bump(size, alignment uintptr) (unsafe.Pointer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, ErrReleased
	}
	for _, b := range a.classes {
		if b.fits(size, alignment) {
			a.used += b.slotSize
			return b.alloc(), nil
		}
	}
	return nil, nil
}

// Free satisfies the Arena interface.
func (a *SizeClassArena) Free(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	addr := uintptr(ptr)
	for _, b := range a.classes {
		if b.owns(addr) {
			return
		}
	}
	if a.fallback != nil {
		a.fallback.Free(ptr, size)
	}
}

// Release satisfies the Arena interface. Every block is dropped at once.
func (a *SizeClassArena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return
	}
	a.released = true
	for _, b := range a.classes {
		b.mem = nil
	}
	if a.fallback != nil {
		a.fallback.Release()
	}
}

// Len returns the number of bytes handed out from managed blocks.
func (a *SizeClassArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.used)
}

// Cap returns the total size of the managed blocks.
func (a *SizeClassArena) Cap() int {
	var total uintptr
	for _, b := range a.classes {
		total += b.size()
	}
	return int(total)
}

// Peak returns the peak number of bytes handed out from managed blocks.
// Cursors never move back, so it equals Len until Release.
func (a *SizeClassArena) Peak() int {
	return a.Len()
}

// Stats returns a snapshot of per-class usage.
func (a *SizeClassArena) Stats() SizeClassArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := SizeClassArenaStats{
		Classes:   make([]SizeClassStats, 0, len(a.classes)),
		Fallbacks: a.fallbacks,
		Released:  a.released,
	}
	for _, b := range a.classes {
		stats.Classes = append(stats.Classes, SizeClassStats{
			SlotSize: int(b.slotSize),
			Slots:    b.slots,
			Used:     b.next,
		})
	}
	return stats
}
