// File: internal/concurrency/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop is a batched single-goroutine dispatcher. Everything a handler
// touches from HandleEvent is owned by the loop goroutine, so handlers keep
// plain mutable state without locks.

package concurrency

import (
	"sync"
	"sync/atomic"
)

// Event is an opaque unit of work posted to the loop.
type Event = any

// EventHandler processes events on the loop goroutine.
type EventHandler interface {
	// HandleEvent processes a single Event.
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ev Event)

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// EventLoop drains its inbox in batches and dispatches to registered handlers.
// Handler registration is copy-on-write under a mutex.
type EventLoop struct {
	handlers   atomic.Value // []EventHandler
	handlersMu sync.Mutex
	inbox      chan Event
	batchSize  int
	quitCh     chan struct{}
	doneCh     chan struct{}
	running    atomic.Bool
	stopped    atomic.Bool
	stopOnce   sync.Once
}

// NewEventLoop creates a new EventLoop.
// batchSize bounds events handled per cycle, inboxSize bounds buffered events.
func NewEventLoop(batchSize, inboxSize int) *EventLoop {
	if batchSize <= 0 {
		batchSize = 16
	}
	if inboxSize <= 0 {
		inboxSize = 1024
	}
	el := &EventLoop{
		inbox:     make(chan Event, inboxSize),
		batchSize: batchSize,
		quitCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	el.handlers.Store([]EventHandler{})
	return el
}

// RegisterHandler adds a new event handler.
func (el *EventLoop) RegisterHandler(h EventHandler) {
	el.handlersMu.Lock()
	defer el.handlersMu.Unlock()
	old := el.handlers.Load().([]EventHandler)
	next := make([]EventHandler, len(old)+1)
	copy(next, old)
	next[len(old)] = h
	el.handlers.Store(next)
}

// Run dispatches events until Stop is called. Only the first call runs.
func (el *EventLoop) Run() {
	if !el.running.CompareAndSwap(false, true) {
		return
	}
	defer close(el.doneCh)

	batch := make([]Event, 0, el.batchSize)
	for {
		batch = batch[:0]
		select {
		case <-el.quitCh:
			return
		default:
		}
		select {
		case <-el.quitCh:
			return
		case ev := <-el.inbox:
			batch = append(batch, ev)
		}

	drain:
		for len(batch) < el.batchSize {
			select {
			case ev := <-el.inbox:
				batch = append(batch, ev)
			default:
				break drain
			}
		}

		handlers := el.handlers.Load().([]EventHandler)
		for _, ev := range batch {
			for _, h := range handlers {
				h.HandleEvent(ev)
			}
		}
	}
}

// Push adds an event to the inbox without blocking.
func (el *EventLoop) Push(ev Event) error {
	if el.stopped.Load() {
		return ErrLoopStopped
	}
	select {
	case el.inbox <- ev:
		return nil
	default:
		return ErrInboxFull
	}
}

// Pending returns approximate count of buffered events waiting in inbox.
func (el *EventLoop) Pending() int {
	return len(el.inbox)
}

// Stop signals Run to exit and waits for it if it was started.
// Events still buffered are discarded.
func (el *EventLoop) Stop() {
	el.stopOnce.Do(func() {
		el.stopped.Store(true)
		close(el.quitCh)
	})
	if el.running.Load() {
		<-el.doneCh
	}
}

// DrainPending hands events left in the inbox to fn and returns how many
// there were. Intended for cleanup after Stop; fn runs on the caller.
func (el *EventLoop) DrainPending(fn func(Event)) int {
	n := 0
	for {
		select {
		case ev := <-el.inbox:
			n++
			if fn != nil {
				fn(ev)
			}
		default:
			return n
		}
	}
}
