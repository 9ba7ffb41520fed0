// Package concurrency
// Author: momentics <momentics@gmail.com>
//
// Lock-free queue and single-owner event loop used by the transfer ring:
// the queue backs the lease arena free list, the loop gives every
// transfer.Driver one goroutine that owns its writer indices.
package concurrency
