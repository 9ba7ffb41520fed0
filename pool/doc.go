// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-ring.
// Arena is the lease manager handing out fixed, power-of-two transfer blocks
// over heap or mmap'd shared memory; BufferPoolManager recycles the small
// scratch buffers channels use for extension data.
// See arena.go, backing*.go, bufferpool.go for implementation details.
package pool
