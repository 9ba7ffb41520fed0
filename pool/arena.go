// File: pool/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size block arena implementing api.LeaseManager.

package pool

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/internal/concurrency"
)

// Backing is the memory an Arena carves blocks from.
type Backing interface {
	Bytes() []byte
	Close() error
}

// Arena hands out power-of-two blocks of a single backing region.
// Addresses are byte offsets into the backing, always block-aligned, so a
// ring of capacity <= BlockSize sees address&mask as its physical offset.
// Acquire, Resolve and Release are safe for concurrent use.
type Arena struct {
	backing   Backing
	mem       []byte
	blockSize uint64
	shift     uint
	free      *concurrency.LockFreeQueue[uint32]
	inUse     []atomic.Bool
	log       *zap.Logger

	totalAcquired atomic.Uint64
	totalReleased atomic.Uint64
	failed        atomic.Uint64
}

// ArenaStats reports block accounting.
type ArenaStats struct {
	Blocks        int
	BlockSize     uint64
	InUse         int64
	TotalAcquired uint64
	TotalReleased uint64
	Failed        uint64
}

// ArenaOption configures an Arena.
type ArenaOption func(*Arena)

// WithArenaLogger sets the arena logger.
func WithArenaLogger(l *zap.Logger) ArenaOption {
	return func(a *Arena) {
		if l != nil {
			a.log = l
		}
	}
}

var _ api.LeaseManager = (*Arena)(nil)

// NewArena splits backing into blocks of blockSize bytes.
func NewArena(backing Backing, blockSize uint64, opts ...ArenaOption) (*Arena, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "block size must be a power of two").
			WithContext("blockSize", blockSize)
	}
	mem := backing.Bytes()
	blocks := uint64(len(mem)) / blockSize
	if blocks == 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "backing smaller than one block").
			WithContext("blockSize", blockSize).
			WithContext("backing", len(mem))
	}
	if blocks > 1<<31 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "too many blocks").
			WithContext("blocks", blocks)
	}

	a := &Arena{
		backing:   backing,
		mem:       mem[:blocks*blockSize],
		blockSize: blockSize,
		shift:     uint(bits.TrailingZeros64(blockSize)),
		free:      concurrency.NewLockFreeQueue[uint32](int(blocks)),
		inUse:     make([]atomic.Bool, blocks),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	for i := uint32(0); i < uint32(blocks); i++ {
		a.free.Enqueue(i)
	}
	return a, nil
}

// NewHeapArena is a convenience constructor over process-private memory.
func NewHeapArena(blocks int, blockSize uint64, opts ...ArenaOption) (*Arena, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("heap arena: %w: blocks=%d", api.ErrInvalidArgument, blocks)
	}
	return NewArena(NewHeapBacking(blocks*int(blockSize)), blockSize, opts...)
}

// BlockSize returns the size of every block.
func (a *Arena) BlockSize() uint64 { return a.blockSize }

// Acquire returns a free block address or api.NoAddress.
func (a *Arena) Acquire(size uint64) uint64 {
	if size == 0 || size > a.blockSize {
		a.failed.Add(1)
		a.log.Warn("lease request does not fit block",
			zap.Uint64("size", size), zap.Uint64("blockSize", a.blockSize))
		return api.NoAddress
	}
	idx, ok := a.free.Dequeue()
	if !ok {
		a.failed.Add(1)
		a.log.Warn("lease arena exhausted", zap.Uint64("size", size), zap.Int("blocks", len(a.inUse)))
		return api.NoAddress
	}
	a.inUse[idx].Store(true)
	a.totalAcquired.Add(1)
	return uint64(idx) << a.shift
}

// Resolve returns the block view for address, or nil when it is not leased.
func (a *Arena) Resolve(address uint64) []byte {
	idx, ok := a.index(address)
	if !ok || !a.inUse[idx].Load() {
		return nil
	}
	return a.mem[address : address+a.blockSize : address+a.blockSize]
}

// Release returns a block. Unknown or already free addresses are ignored.
func (a *Arena) Release(address, size uint64) {
	idx, ok := a.index(address)
	if !ok {
		a.log.Warn("release of foreign address", zap.Uint64("address", address), zap.Uint64("size", size))
		return
	}
	if !a.inUse[idx].CompareAndSwap(true, false) {
		a.log.Warn("release of free block", zap.Uint64("address", address))
		return
	}
	a.totalReleased.Add(1)
	a.free.Enqueue(idx)
}

// View exposes the raw bytes behind address for a consumer mapping the
// same backing. It does not check lease state.
func (a *Arena) View(address uint64, length uint32) []byte {
	end := address + uint64(length)
	if end < address || end > uint64(len(a.mem)) {
		return nil
	}
	return a.mem[address:end:end]
}

// Stats returns accounting counters.
func (a *Arena) Stats() ArenaStats {
	acquired := a.totalAcquired.Load()
	released := a.totalReleased.Load()
	return ArenaStats{
		Blocks:        len(a.inUse),
		BlockSize:     a.blockSize,
		InUse:         int64(acquired) - int64(released),
		TotalAcquired: acquired,
		TotalReleased: released,
		Failed:        a.failed.Load(),
	}
}

// Close releases the backing memory. Outstanding leases become invalid.
func (a *Arena) Close() error {
	return a.backing.Close()
}

func (a *Arena) index(address uint64) (uint32, bool) {
	if address&(a.blockSize-1) != 0 {
		return 0, false
	}
	idx := address >> a.shift
	if idx >= uint64(len(a.inUse)) {
		return 0, false
	}
	return uint32(idx), true
}
