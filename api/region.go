// File: api/region.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Region descriptors: the only data exchanged between the transfer ring
// and the transport layer.

package api

import "fmt"

// Region describes one contiguous physical slice [Address, Address+Length)
// of a transfer ring that was written for StreamID.
type Region struct {
	Address  uint64
	Length   uint32
	StreamID uint64
}

// End returns the first address past the region.
func (r Region) End() uint64 { return r.Address + uint64(r.Length) }

func (r Region) String() string {
	return fmt.Sprintf("region[address=%#x, length=%d, streamId=%d]", r.Address, r.Length, r.StreamID)
}

// RegionSink accepts region descriptors in emission order.
// The consumer must apply them in that order to rebuild the byte stream.
type RegionSink interface {
	Send(regions []Region) error
}

// RegionSinkFunc adapts a function to RegionSink.
type RegionSinkFunc func(regions []Region) error

// Send implements RegionSink.
func (f RegionSinkFunc) Send(regions []Region) error { return f(regions) }
