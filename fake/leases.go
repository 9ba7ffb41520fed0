// Package fake
// Author: momentics <momentics@gmail.com>
//
// Counting lease manager with failure injection.

package fake

import (
	"sync"

	"github.com/momentics/hioload-ring/api"
)

// LeaseManager hands out heap blocks at block-aligned addresses and counts
// every call. Addresses start at Base so tests can tell offsets from
// addresses.
type LeaseManager struct {
	mu        sync.Mutex
	blockSize uint64
	base      uint64
	next      uint64
	live      map[uint64][]byte
	exhausted bool

	acquired    int
	released    int
	badReleases int
}

// Base is the address of the first block handed out.
const Base uint64 = 1 << 20

// NewLeaseManager creates a manager handing out blockSize-byte blocks.
func NewLeaseManager(blockSize uint64) *LeaseManager {
	return &LeaseManager{
		blockSize: blockSize,
		base:      Base,
		next:      Base,
		live:      make(map[uint64][]byte),
	}
}

// SetExhausted makes subsequent Acquire calls fail.
func (m *LeaseManager) SetExhausted(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted = v
}

// Acquire implements api.LeaseManager.
func (m *LeaseManager) Acquire(size uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exhausted || size == 0 || size > m.blockSize {
		return api.NoAddress
	}
	address := m.next
	m.next += m.blockSize
	m.live[address] = make([]byte, m.blockSize)
	m.acquired++
	return address
}

// Resolve implements api.LeaseManager.
func (m *LeaseManager) Resolve(address uint64) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[address]
}

// Release implements api.LeaseManager. Unknown addresses are counted
// as bad releases.
func (m *LeaseManager) Release(address, size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[address]; !ok || size > m.blockSize {
		m.badReleases++
		return
	}
	delete(m.live, address)
	m.released++
}

// View returns length bytes at address inside any live block, or nil.
func (m *LeaseManager) View(address uint64, length uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if address < m.base {
		return nil
	}
	start := m.base + (address-m.base)/m.blockSize*m.blockSize
	mem, ok := m.live[start]
	if !ok {
		return nil
	}
	off := address - start
	end := off + uint64(length)
	if end > uint64(len(mem)) {
		return nil
	}
	return mem[off:end]
}

// Counts returns acquire, release and bad release counts.
func (m *LeaseManager) Counts() (acquired, released, bad int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired, m.released, m.badReleases
}

// Live returns the number of blocks currently leased.
func (m *LeaseManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
