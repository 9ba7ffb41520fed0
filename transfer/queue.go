// File: transfer/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transfer

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-ring/api"
)

// WriteRequest is a payload waiting for ring space.
type WriteRequest struct {
	Payload  []byte
	StreamID uint64
	Done     func(error)

	flushed int
}

// Remaining returns the bytes of the request not yet flushed.
func (r *WriteRequest) Remaining() []byte { return r.Payload[r.flushed:] }

func (r *WriteRequest) complete(err error) {
	if r.Done != nil {
		r.Done(err)
	}
}

// WriteQueue holds writes in arrival order until the ring has room for
// them. A request larger than the free space is flushed piecewise, so a
// payload of any size eventually fits a ring of any capacity.
// Not safe for concurrent use.
type WriteQueue struct {
	q       *queue.Queue
	flushed []*WriteRequest
	pending int
}

// NewWriteQueue creates an empty queue.
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{q: queue.New()}
}

// Push appends a request; done, if non-nil, is called once with the outcome.
func (wq *WriteQueue) Push(payload []byte, streamID uint64, done func(error)) {
	wq.q.Add(&WriteRequest{Payload: payload, StreamID: streamID, Done: done})
	wq.pending += len(payload)
}

// Len returns the number of queued requests.
func (wq *WriteQueue) Len() int { return wq.q.Length() }

// PendingBytes returns the payload bytes not yet flushed.
func (wq *WriteQueue) PendingBytes() int { return wq.pending }

// Drain flushes queued requests into w while it has writable bytes and
// appends the emitted regions to dst. The head request may be flushed
// partially. Fully flushed requests wait for Settle, so callers can hand
// the regions on before reporting completion. A flush error stops the
// drain and is returned; the failing request stays queued.
func (wq *WriteQueue) Drain(w *Writer, dst []api.Region) ([]api.Region, error) {
	for wq.q.Length() > 0 {
		req := wq.q.Peek().(*WriteRequest)
		rest := req.Remaining()
		if len(rest) > 0 {
			n := min(len(rest), w.WritableBytes())
			if n == 0 {
				break
			}
			var err error
			if dst, err = w.Flush(dst, rest[:n], req.StreamID); err != nil {
				return dst, err
			}
			req.flushed += n
			wq.pending -= n
			if req.flushed < len(req.Payload) {
				break
			}
		}
		wq.q.Remove()
		wq.flushed = append(wq.flushed, req)
	}
	return dst, nil
}

// Settle completes the requests fully flushed since the last Settle with
// err and returns how many there were.
func (wq *WriteQueue) Settle(err error) int {
	n := len(wq.flushed)
	for i, req := range wq.flushed {
		wq.flushed[i] = nil
		req.complete(err)
	}
	wq.flushed = wq.flushed[:0]
	return n
}

// Fail completes every queued or unsettled request with err and empties
// the queue.
func (wq *WriteQueue) Fail(err error) {
	wq.Settle(err)
	for wq.q.Length() > 0 {
		req := wq.q.Remove().(*WriteRequest)
		req.complete(err)
	}
	wq.pending = 0
}
