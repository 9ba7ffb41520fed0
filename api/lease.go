// File: api/lease.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Memory lease contract for shared transfer memory.

package api

// NoAddress is the sentinel returned by LeaseManager.Acquire on failure
// and held by writers that own no lease.
const NoAddress = ^uint64(0)

// LeaseManager hands out blocks of shared memory addressed by opaque
// addresses in a shared address space.
type LeaseManager interface {
	// Acquire returns the address of a block of at least size bytes,
	// or NoAddress. It never blocks.
	Acquire(size uint64) uint64

	// Resolve turns an acquired address into a process-local view of the
	// same bytes. The view starts at address; nil if address is unknown.
	Resolve(address uint64) []byte

	// Release returns a previously acquired block. Releasing the same
	// block twice is the caller's responsibility to avoid.
	Release(address, size uint64)
}
