// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Size-class segmented BufferPool manager. Each class is a power of two;
// requests are served from the smallest class that fits.

package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-ring/api"
)

// BufferPoolManager provides one pool per power-of-two size class.
type BufferPoolManager struct {
	mu    sync.RWMutex
	pools map[int]*bufferPool // Key: size class in bytes
}

// NewBufferPoolManager creates and initializes a new manager.
func NewBufferPoolManager() *BufferPoolManager {
	return &BufferPoolManager{
		pools: make(map[int]*bufferPool),
	}
}

var (
	defaultOnce sync.Once
	defaultMgr  *BufferPoolManager
)

// DefaultManager returns a process-wide BufferPoolManager.
func DefaultManager() *BufferPoolManager {
	defaultOnce.Do(func() {
		defaultMgr = NewBufferPoolManager()
	})
	return defaultMgr
}

// GetPool obtains or creates the pool serving buffers of size bytes.
func (m *BufferPoolManager) GetPool(size int) api.BufferPool {
	class := sizeClass(size)
	m.mu.RLock()
	p, ok := m.pools[class]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[class]; ok {
		return p
	}
	p = newBufferPool(class)
	m.pools[class] = p
	return p
}

func sizeClass(size int) int {
	if size <= 64 {
		return 64
	}
	return 1 << bits.Len(uint(size-1))
}

// pooledBuffer implements api.Buffer.
type pooledBuffer struct {
	data []byte
	pool *bufferPool
	root bool
	used atomic.Bool
}

func (b *pooledBuffer) Bytes() []byte { return b.data }

// Slice creates a sub-buffer sharing storage; releasing it is a no-op.
func (b *pooledBuffer) Slice(from, to int) api.Buffer {
	if from < 0 || to > len(b.data) || from > to {
		panic("slice bounds out of range")
	}
	return &pooledBuffer{data: b.data[from:to], pool: b.pool}
}

// Release returns the buffer to the pool once.
func (b *pooledBuffer) Release() {
	if !b.root || !b.used.CompareAndSwap(true, false) {
		return
	}
	b.pool.put(b)
}

// bufferPool recycles buffers of one size class.
type bufferPool struct {
	pool  sync.Pool
	class int

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
}

func newBufferPool(class int) *bufferPool {
	return &bufferPool{class: class}
}

func (bp *bufferPool) Get(size int) api.Buffer {
	if size > bp.class {
		size = bp.class
	}
	var b *pooledBuffer
	if v := bp.pool.Get(); v != nil {
		b = v.(*pooledBuffer)
	} else {
		b = &pooledBuffer{data: make([]byte, bp.class), pool: bp, root: true}
	}
	b.data = b.data[:size]
	b.used.Store(true)
	bp.totalAlloc.Add(1)
	return b
}

func (bp *bufferPool) Put(b api.Buffer) {
	b.Release()
}

func (bp *bufferPool) put(b *pooledBuffer) {
	b.data = b.data[:cap(b.data)]
	bp.totalFree.Add(1)
	bp.pool.Put(b)
}

func (bp *bufferPool) Stats() api.BufferPoolStats {
	alloc := bp.totalAlloc.Load()
	free := bp.totalFree.Load()
	return api.BufferPoolStats{
		TotalAlloc: alloc,
		TotalFree:  free,
		InUse:      alloc - free,
	}
}
