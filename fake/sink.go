// Package fake
// Author: momentics <momentics@gmail.com>
//
// Collecting region sink.

package fake

import (
	"sync"

	"github.com/momentics/hioload-ring/api"
)

// Sink records every region batch it is sent.
type Sink struct {
	mu       sync.Mutex
	batches  [][]api.Region
	sendErr  error
	closed   bool
	closeErr error
	notify   chan struct{}
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{notify: make(chan struct{}, 1)}
}

// Send implements api.RegionSink. The batch is copied.
func (s *Sink) Send(regions []api.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrTransportClosed
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	s.batches = append(s.batches, append([]api.Region(nil), regions...))
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close marks the sink closed and returns the configured close error.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

// SetSendError makes subsequent sends fail with err.
func (s *Sink) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// SetCloseError sets the error returned by Close.
func (s *Sink) SetCloseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeErr = err
}

// Notify is signalled after each accepted batch.
func (s *Sink) Notify() <-chan struct{} { return s.notify }

// Batches returns a copy of the recorded batches.
func (s *Sink) Batches() [][]api.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]api.Region, len(s.batches))
	copy(out, s.batches)
	return out
}

// Regions returns every recorded region in emission order.
func (s *Sink) Regions() []api.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.Region
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// Take returns and forgets the recorded regions.
func (s *Sink) Take() []api.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []api.Region
	for _, b := range s.batches {
		out = append(out, b...)
	}
	s.batches = nil
	return out
}
