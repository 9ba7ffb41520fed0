// Package fake
// Author: momentics <momentics@gmail.com>
//
// Consumer plays the remote side of a transfer ring: it dereferences
// regions in emission order, rebuilds each stream, and acknowledges
// regions back in whatever order the test asks for.

package fake

import (
	"math/rand"
	"sync"

	"github.com/momentics/hioload-ring/api"
)

// RegionReader resolves a region to its bytes. *LeaseManager and
// *pool.Arena both provide View.
type RegionReader interface {
	View(address uint64, length uint32) []byte
}

// AckOrder permutes regions before they are acknowledged.
type AckOrder func(regions []api.Region)

// InOrder acknowledges regions as received.
func InOrder(regions []api.Region) {}

// Reversed acknowledges regions last first.
func Reversed(regions []api.Region) {
	for i, j := 0, len(regions)-1; i < j; i, j = i+1, j-1 {
		regions[i], regions[j] = regions[j], regions[i]
	}
}

// Shuffled returns an order driven by a seeded source.
func Shuffled(seed int64) AckOrder {
	rng := rand.New(rand.NewSource(seed))
	return func(regions []api.Region) {
		rng.Shuffle(len(regions), func(i, j int) {
			regions[i], regions[j] = regions[j], regions[i]
		})
	}
}

// Consumer copies region bytes into per-stream buffers.
type Consumer struct {
	mu      sync.Mutex
	reader  RegionReader
	order   AckOrder
	streams map[uint64][]byte
	held    []api.Region
}

// NewConsumer creates a consumer reading through reader.
func NewConsumer(reader RegionReader, order AckOrder) *Consumer {
	if order == nil {
		order = InOrder
	}
	return &Consumer{
		reader:  reader,
		order:   order,
		streams: make(map[uint64][]byte),
	}
}

// Receive reads regions in the given order and holds them for acknowledgment.
// A region that cannot be resolved is returned as an error.
func (c *Consumer) Receive(regions []api.Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range regions {
		b := c.reader.View(r.Address, r.Length)
		if b == nil && r.Length > 0 {
			return api.NewError(api.ErrCodeInvalidArgument, "unresolvable region").
				WithContext("region", r.String())
		}
		c.streams[r.StreamID] = append(c.streams[r.StreamID], b...)
		c.held = append(c.held, r)
	}
	return nil
}

// Send implements api.RegionSink.
func (c *Consumer) Send(regions []api.Region) error { return c.Receive(regions) }

// Acks returns the held regions permuted by the ack order and forgets them.
func (c *Consumer) Acks() []api.Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.held
	c.held = nil
	c.order(out)
	return out
}

// Held returns the number of regions awaiting acknowledgment.
func (c *Consumer) Held() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.held)
}

// Stream returns a copy of the bytes received for streamID.
func (c *Consumer) Stream(streamID uint64) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.streams[streamID]...)
}
