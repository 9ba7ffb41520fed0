// File: cmd/ringpump/link.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/pool"
	"github.com/momentics/hioload-ring/protocol"
	"github.com/momentics/hioload-ring/transfer"
)

// link carries encoded region lists from the driver to the consumer.
type link struct {
	proto  bool
	frames chan []byte
	quit   chan struct{}
	once   sync.Once
}

func newLink(wire string) *link {
	return &link{
		proto:  wire == "proto",
		frames: make(chan []byte, 1024),
		quit:   make(chan struct{}),
	}
}

// Send implements api.RegionSink.
func (l *link) Send(regions []api.Region) error {
	var frame []byte
	if l.proto {
		frame = protocol.MarshalRegionsProto(nil, regions)
	} else {
		frame = protocol.AppendRegions(make([]byte, 0, protocol.RegionListSize(len(regions))), regions)
	}
	select {
	case l.frames <- frame:
		return nil
	case <-l.quit:
		return api.ErrTransportClosed
	}
}

// Close unblocks a pending Send and stops the consumer.
func (l *link) Close() {
	l.once.Do(func() { close(l.quit) })
}

func (l *link) decode(frame []byte) ([]api.Region, error) {
	if l.proto {
		return protocol.UnmarshalRegionsProto(frame, nil)
	}
	regions, n, err := protocol.DecodeRegions(frame, nil)
	if err == nil && n != len(frame) {
		err = protocol.ErrMalformedRegions
	}
	return regions, err
}

// consumer reads regions straight out of the arena and acknowledges them
// in shuffled batches.
type consumer struct {
	arena *pool.Arena
	link  *link
	d     *transfer.Driver
	rng   *rand.Rand

	mu      sync.Mutex
	streams map[uint64][]byte
	held    []api.Region
}

func newConsumer(arena *pool.Arena, l *link, d *transfer.Driver, seed int64) *consumer {
	return &consumer{
		arena:   arena,
		link:    l,
		d:       d,
		rng:     rand.New(rand.NewSource(seed)),
		streams: make(map[uint64][]byte),
	}
}

func (c *consumer) run(ctx context.Context) {
	tick := time.NewTicker(100 * time.Microsecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.link.quit:
			return
		case frame := <-c.link.frames:
			regions, err := c.link.decode(frame)
			if err != nil {
				_ = c.d.Abort(err)
				return
			}
			c.receive(regions)
		case <-tick.C:
			c.flushAcks()
		}
	}
}

func (c *consumer) receive(regions []api.Region) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range regions {
		c.streams[r.StreamID] = append(c.streams[r.StreamID], c.arena.View(r.Address, r.Length)...)
		c.held = append(c.held, r)
	}
}

func (c *consumer) flushAcks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.held) == 0 {
		return
	}
	c.rng.Shuffle(len(c.held), func(i, j int) { c.held[i], c.held[j] = c.held[j], c.held[i] })
	if err := c.d.Acknowledge(c.held); err == nil {
		c.held = c.held[:0]
	}
}

// waitIdle returns once every received region was acknowledged and the
// link is drained.
func (c *consumer) waitIdle(ctx context.Context) {
	for {
		c.mu.Lock()
		idle := len(c.held) == 0 && len(c.link.frames) == 0
		c.mu.Unlock()
		if idle && c.d.Indices().InFlight() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *consumer) stream(id uint64) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[id]
}
