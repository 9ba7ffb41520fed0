// File: transfer/extension.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-channel extension scratch buffers. Extension bytes ride alongside
// frames of one kind; they never enter the ring.

package transfer

import (
	"github.com/momentics/hioload-ring/api"
)

// ExtensionKind tags which frame an extension buffer is being built for.
type ExtensionKind uint8

const (
	ExtensionNone ExtensionKind = iota
	ExtensionBegin
	ExtensionData
	ExtensionEnd
	ExtensionAbort
)

func (k ExtensionKind) String() string {
	switch k {
	case ExtensionBegin:
		return "begin"
	case ExtensionData:
		return "data"
	case ExtensionEnd:
		return "end"
	case ExtensionAbort:
		return "abort"
	default:
		return "none"
	}
}

// ExtensionBuffer is an append-only scratch buffer with fixed capacity.
// The zero value is the empty read-only buffer.
type ExtensionBuffer struct {
	kind ExtensionKind
	buf  api.Buffer
	n    int
}

// Write appends p. It fails with api.ErrResourceExhausted, writing
// nothing, when p does not fit.
func (b *ExtensionBuffer) Write(p []byte) (int, error) {
	if b.buf == nil {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, api.ErrResourceExhausted
	}
	data := b.buf.Bytes()
	if len(p) > len(data)-b.n {
		return 0, api.NewError(api.ErrCodeResourceExhausted, "extension buffer full").
			WithContext("kind", b.kind.String()).
			WithContext("free", len(data)-b.n).
			WithContext("length", len(p))
	}
	b.n += copy(data[b.n:], p)
	return len(p), nil
}

// Bytes returns the written bytes; valid until the next Reset.
func (b *ExtensionBuffer) Bytes() []byte {
	if b.buf == nil {
		return nil
	}
	return b.buf.Bytes()[:b.n]
}

// Len returns the number of written bytes.
func (b *ExtensionBuffer) Len() int { return b.n }

// Cap returns the buffer capacity; zero for the empty buffer.
func (b *ExtensionBuffer) Cap() int {
	if b.buf == nil {
		return 0
	}
	return len(b.buf.Bytes())
}

// Kind returns the frame kind the buffer currently holds.
func (b *ExtensionBuffer) Kind() ExtensionKind { return b.kind }

// Reset discards the written bytes.
func (b *ExtensionBuffer) Reset() { b.n = 0 }

// emptyExtension is handed to read-only callers asking for a kind that is
// not being built. Callers must not write to it.
var emptyExtension = &ExtensionBuffer{}

// ExtensionCache keeps one read and one write extension buffer per channel,
// allocated on first use. Not safe for concurrent use.
type ExtensionCache struct {
	pool  api.BufferPool
	size  int
	read  *ExtensionBuffer
	write *ExtensionBuffer
}

// NewExtensionCache creates a cache drawing size-byte buffers from pool.
func NewExtensionCache(pool api.BufferPool, size int) *ExtensionCache {
	if size <= 0 {
		size = DefaultExtensionBufferSize
	}
	return &ExtensionCache{pool: pool, size: size}
}

// WriteExtension returns the write buffer for kind. Switching kinds
// clears the buffer. A read-only request for a kind other than the one
// being built returns an empty buffer and leaves the cache untouched.
func (c *ExtensionCache) WriteExtension(kind ExtensionKind, readonly bool) *ExtensionBuffer {
	if c.write != nil && c.write.kind == kind {
		return c.write
	}
	if readonly {
		return emptyExtension
	}
	c.write = c.switchKind(c.write, kind)
	return c.write
}

// ReadExtension returns the read buffer for kind, cleared when kind changes.
func (c *ExtensionCache) ReadExtension(kind ExtensionKind) *ExtensionBuffer {
	if c.read != nil && c.read.kind == kind {
		return c.read
	}
	c.read = c.switchKind(c.read, kind)
	return c.read
}

func (c *ExtensionCache) switchKind(b *ExtensionBuffer, kind ExtensionKind) *ExtensionBuffer {
	if b == nil {
		b = &ExtensionBuffer{buf: c.pool.Get(c.size)}
	}
	b.kind = kind
	b.Reset()
	return b
}

// Release returns both buffers to the pool. The cache may be reused.
func (c *ExtensionCache) Release() {
	for _, b := range []*ExtensionBuffer{c.read, c.write} {
		if b != nil && b.buf != nil {
			c.pool.Put(b.buf)
			b.buf = nil
		}
	}
	c.read, c.write = nil, nil
}
