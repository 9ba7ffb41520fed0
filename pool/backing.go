// File: pool/backing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

// HeapBacking is process-private memory; useful for tests and for
// producer/consumer pairs living in one process.
type HeapBacking struct {
	mem []byte
}

// NewHeapBacking allocates size bytes.
func NewHeapBacking(size int) *HeapBacking {
	return &HeapBacking{mem: make([]byte, size)}
}

func (b *HeapBacking) Bytes() []byte { return b.mem }

func (b *HeapBacking) Close() error { return nil }
