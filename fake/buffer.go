// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake buffer and buffer pool implementations for testing.

package fake

import (
	"sync"

	"github.com/momentics/hioload-ring/api"
)

// Buffer is a fake implementation of api.Buffer.
type Buffer struct {
	data     []byte
	released bool
	mu       sync.Mutex
}

// NewBuffer creates a new fake buffer over a copy of data.
func NewBuffer(data []byte) *Buffer {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return &Buffer{data: dataCopy}
}

// Bytes returns the buffer data, or nil once released.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	return b.data
}

// Slice returns a sub-buffer sharing storage, or nil when out of range.
func (b *Buffer) Slice(from, to int) api.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released || from < 0 || to > len(b.data) || from > to {
		return nil
	}
	return &Buffer{data: b.data[from:to]}
}

// Release drops the data.
func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.data = nil
}

// Released reports whether Release was called.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// BufferPool is a fake implementation of api.BufferPool that counts traffic.
type BufferPool struct {
	mu        sync.Mutex
	allocated int64
	freed     int64
	inUse     int64
}

// NewBufferPool creates a new fake buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns a fresh zeroed buffer of size bytes.
func (p *BufferPool) Get(size int) api.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocated++
	p.inUse++
	return &Buffer{data: make([]byte, size)}
}

// Put releases b.
func (p *BufferPool) Put(b api.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freed++
	if p.inUse > 0 {
		p.inUse--
	}
	b.Release()
}

// Stats exposes allocation counters.
func (p *BufferPool) Stats() api.BufferPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.BufferPoolStats{
		TotalAlloc: p.allocated,
		TotalFree:  p.freed,
		InUse:      p.inUse,
	}
}
