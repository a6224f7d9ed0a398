// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"sync"
	"weak"
)

// defaultPoolBufferSize is the buffer size handed out for a key with no history.
const defaultPoolBufferSize = 64 * 1024

// peakWindow is the number of releases averaged per key before the history is
// folded into a single sample.
const peakWindow = 50

// BufferPool hands out BufferArenas and takes them back for reuse.
//
// Returned arenas are held through weak pointers, so the garbage collector may
// reclaim idle buffers at any time and the pool shrinks under memory pressure.
// Each key remembers the average peak of the arenas released under it, and new
// buffers for that key are sized accordingly.
type BufferPool struct {
	pool  []weak.Pointer[PooledArena]
	sizes map[uint64]*peakHistory
	mu    sync.Mutex
}

type peakHistory struct {
	count      int
	totalBytes int
}

// PooledArena is a BufferArena checked out of a BufferPool.
type PooledArena struct {
	*BufferArena
	Key uint64
}

// NewBufferPool creates an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		sizes: make(map[uint64]*peakHistory),
	}
}

// Acquire returns an arena of at least minSize bytes, reusing a pooled one when
// a large enough buffer is still alive. key groups uses with similar needs.
func (p *BufferPool) Acquire(key uint64, minSize int) *PooledArena {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.pool[:0]
	var found *PooledArena
	for _, wp := range p.pool {
		v := wp.Value()
		if v == nil {
			continue
		}
		if found == nil && v.Cap() >= minSize {
			found = v
			continue
		}
		kept = append(kept, wp)
	}
	clear(p.pool[len(kept):])
	p.pool = kept

	if found != nil {
		found.Key = key
		return found
	}
	size := max(p.sizeFor(key), minSize)
	return &PooledArena{
		BufferArena: NewBufferArena(make([]byte, size)),
		Key:         key,
	}
}

// Release resets the arenas and returns them to the pool, recording their peaks.
// Nothing allocated from an arena may be used after it is released here.
func (p *BufferPool) Release(items ...*PooledArena) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, item := range items {
		p.record(item.Key, item.Peak())
		item.Reset()
		item.Key = 0
		p.pool = append(p.pool, weak.Make(item))
	}
}

func (p *BufferPool) record(key uint64, peak int) {
	h, ok := p.sizes[key]
	if !ok {
		p.sizes[key] = &peakHistory{count: 1, totalBytes: peak}
		return
	}
	if h.count == peakWindow {
		h.count = 1
		h.totalBytes /= peakWindow
	}
	h.count++
	h.totalBytes += peak
}

// sizeFor returns the buffer size for key: the average recorded peak, or
// defaultPoolBufferSize without history.
func (p *BufferPool) sizeFor(key uint64) int {
	if h, ok := p.sizes[key]; ok && h.totalBytes > 0 {
		return h.totalBytes / h.count
	}
	return defaultPoolBufferSize
}
