// Package api
// Author: momentics
//
// Pooled scratch buffers for channel-side extension data.
//
// These buffers never hold ring payload; ring bytes live in leased
// transfer memory and travel as Region descriptors.

package api

// Buffer describes a resliceable pooled memory region.
type Buffer interface {
	// Bytes returns a view of the current buffer data.
	Bytes() []byte

	// Slice produces a sub-buffer in O(1) sharing the same storage.
	Slice(from, to int) Buffer

	// Release returns the buffer to its pool.
	// After Release, buffer must not be used.
	Release()
}

// BufferPool abstracts memory region management for buffers.
type BufferPool interface {
	// Get returns a buffer sized at least 'size' bytes.
	Get(size int) Buffer

	// Put returns buffer to pool; buffer must not be used afterwards.
	Put(b Buffer)

	// Stats exposes resource/accounting metrics for observability.
	Stats() BufferPoolStats
}

// BufferPoolStats aggregates buffer allocation/reuse stats.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}
