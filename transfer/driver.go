// File: transfer/driver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Driver pins one Writer to an event loop goroutine. Producers and the
// acknowledgment path post events; only the loop touches writer state.

package transfer

import (
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-ring/affinity"
	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
	"github.com/momentics/hioload-ring/internal/concurrency"
	"github.com/momentics/hioload-ring/pool"
)

type writeEvent struct {
	payload  []byte
	streamID uint64
	done     func(error)
}

type ackEvent struct{ regions []api.Region }

type closeEvent struct{}

type abortEvent struct{ err error }

type taskEvent struct {
	fn   func(*Writer, *ExtensionCache)
	done chan struct{}
}

// Driver serializes all operations on one Writer.
type Driver struct {
	w       *Writer
	queue   *WriteQueue
	ext     *ExtensionCache
	sink    api.RegionSink
	loop    *concurrency.EventLoop
	log     *zap.Logger
	metrics *control.RingMetrics
	onFault func(error)

	batchSize int
	inboxSize int
	cpu       int

	// loop-owned
	scratch      []api.Region
	closePending bool

	indices  atomic.Pointer[Indices]
	fault    atomic.Pointer[error]
	quit     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithBatchSize bounds events handled per loop cycle.
func WithBatchSize(n int) DriverOption { return func(d *Driver) { d.batchSize = n } }

// WithInboxSize bounds events buffered ahead of the loop.
func WithInboxSize(n int) DriverOption { return func(d *Driver) { d.inboxSize = n } }

// WithFaultHandler is called on the loop goroutine when the channel fails.
func WithFaultHandler(fn func(error)) DriverOption { return func(d *Driver) { d.onFault = fn } }

// WithCPU pins the loop goroutine's thread to cpu. Negative disables pinning.
func WithCPU(cpu int) DriverOption { return func(d *Driver) { d.cpu = cpu } }

// WithExtensionCache replaces the default extension cache.
func WithExtensionCache(c *ExtensionCache) DriverOption { return func(d *Driver) { d.ext = c } }

// WithDriverLogger sets the driver logger.
func WithDriverLogger(l *zap.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDriver wraps w. Regions produced by flushes are handed to sink in
// write order; the slice passed to Send is reused after Send returns.
func NewDriver(w *Writer, sink api.RegionSink, opts ...DriverOption) (*Driver, error) {
	if w == nil || sink == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "driver needs a writer and a region sink")
	}
	d := &Driver{
		w:       w,
		queue:   NewWriteQueue(),
		sink:    sink,
		log:     w.log,
		metrics: w.metrics,
		cpu:     -1,
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ext == nil {
		d.ext = NewExtensionCache(pool.DefaultManager().GetPool(DefaultExtensionBufferSize), DefaultExtensionBufferSize)
	}
	d.loop = concurrency.NewEventLoop(d.batchSize, d.inboxSize)
	d.loop.RegisterHandler(concurrency.HandlerFunc(d.handle))
	d.publish()
	return d, nil
}

// Start runs the event loop on its own goroutine, locked to an OS thread
// and pinned when WithCPU was given.
func (d *Driver) Start() {
	go func() {
		if err := affinity.Pin(d.cpu); err != nil {
			d.log.Warn("cpu pinning failed", zap.Int("cpu", d.cpu), zap.Error(err))
		}
		d.loop.Run()
	}()
}

// Write queues payload for streamID. done is called on the loop goroutine
// once the whole payload has been flushed, or with the error that ended
// the channel first. payload must not be modified until then.
func (d *Driver) Write(payload []byte, streamID uint64, done func(error)) error {
	return d.post(writeEvent{payload: payload, streamID: streamID, done: done})
}

// Acknowledge posts an acknowledgment batch. The slice is copied.
func (d *Driver) Acknowledge(regions []api.Region) error {
	return d.post(ackEvent{regions: append([]api.Region(nil), regions...)})
}

// CloseWrite ends the write side once queued writes have been flushed.
func (d *Driver) CloseWrite() error {
	return d.post(closeEvent{})
}

// Abort fails queued writes with err and ends the write side immediately.
func (d *Driver) Abort(err error) error {
	if err == nil {
		err = api.ErrTransportClosed
	}
	return d.post(abortEvent{err: err})
}

// Do runs fn on the loop goroutine and waits for it.
func (d *Driver) Do(fn func(*Writer, *ExtensionCache)) error {
	done := make(chan struct{})
	if err := d.post(taskEvent{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-d.quit:
		return api.ErrTransportClosed
	}
}

func (d *Driver) post(ev concurrency.Event) error {
	switch err := d.loop.Push(ev); err {
	case nil:
		return nil
	case concurrency.ErrInboxFull:
		return api.ErrResourceExhausted
	default:
		return api.ErrTransportClosed
	}
}

// Stop halts the loop, fails whatever is still queued and releases the
// lease. It returns the latched channel fault combined with the sink's
// Close error when the sink is an io.Closer. Must not be called from a
// fault handler or a Do callback.
func (d *Driver) Stop() error {
	d.stopOnce.Do(func() {
		d.loop.Stop()
		close(d.quit)
		d.loop.DrainPending(func(ev concurrency.Event) {
			if we, ok := ev.(writeEvent); ok && we.done != nil {
				we.done(api.ErrTransportClosed)
			}
		})
		d.queue.Fail(api.ErrTransportClosed)
		d.w.Terminate(ChannelClosed)
		d.metrics.DropInFlight(d.w.Indices().InFlight())
		d.ext.Release()
		d.publish()

		var err error
		if fault := d.Err(); fault != nil {
			err = multierr.Append(err, fault)
		}
		if c, ok := d.sink.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
		d.stopErr = err
	})
	return d.stopErr
}

// Err returns the fault that failed the channel, if any.
func (d *Driver) Err() error {
	if p := d.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Indices returns the index set as of the last handled event.
func (d *Driver) Indices() Indices { return *d.indices.Load() }

// Termination returns how the write side ended, if it has.
func (d *Driver) Termination() Termination { return d.w.Termination() }

// RegisterProbes exposes driver state on dp under prefix.
func (d *Driver) RegisterProbes(dp *control.DebugProbes, prefix string) {
	dp.RegisterProbe(prefix+".indices", func() any { return d.Indices() })
	dp.RegisterProbe(prefix+".lease", func() any { return leaseState(d.w.lease.Load()).String() })
	dp.RegisterProbe(prefix+".termination", func() any { return d.w.Termination().String() })
	dp.RegisterProbe(prefix+".inbox", func() any { return d.loop.Pending() })
}

func (d *Driver) handle(ev concurrency.Event) {
	switch e := ev.(type) {
	case writeEvent:
		if err := d.refuse(); err != nil {
			if e.done != nil {
				e.done(err)
			}
			break
		}
		d.queue.Push(e.payload, e.streamID, e.done)
		d.pump()
	case ackEvent:
		if d.Err() != nil {
			break
		}
		if err := d.w.Acknowledge(e.regions); err != nil {
			d.fail(err)
			break
		}
		d.pump()
	case closeEvent:
		d.closePending = true
		d.w.SetClosing()
		d.pump()
	case abortEvent:
		d.fail(e.err)
	case taskEvent:
		e.fn(d.w, d.ext)
		close(e.done)
	}
	d.publish()
}

// refuse returns the error new writes fail with, or nil to accept them.
func (d *Driver) refuse() error {
	if err := d.Err(); err != nil {
		return err
	}
	if d.closePending || d.w.Termination() != NotTerminated {
		return api.ErrTransportClosed
	}
	return nil
}

func (d *Driver) pump() {
	if d.w.Termination() != NotTerminated {
		return
	}
	regions, err := d.queue.Drain(d.w, d.scratch[:0])
	if len(regions) > 0 {
		d.scratch = regions
		if serr := d.sink.Send(regions); serr != nil {
			d.metrics.ObserveFault(control.FaultSink)
			d.fail(serr)
			return
		}
	}
	d.queue.Settle(nil)
	if err != nil {
		d.fail(err)
		return
	}
	if d.closePending && d.queue.Len() == 0 {
		d.w.Terminate(WriteClosed)
		d.log.Debug("write side closed", zap.Uint64("transferIndex", d.w.transferIndex))
	}
}

func (d *Driver) fail(err error) {
	if !d.fault.CompareAndSwap(nil, &err) {
		return
	}
	d.log.Error("transfer channel failed",
		zap.Error(err),
		zap.Stringer("code", errorCode(api.CodeOf(err))),
		zap.Int("pendingWrites", d.queue.Len()))
	d.queue.Fail(err)
	d.w.Terminate(WriteAborted)
	if d.onFault != nil {
		d.onFault(err)
	}
}

func (d *Driver) publish() {
	idx := d.w.Indices()
	d.indices.Store(&idx)
}

type errorCode api.ErrorCode

func (c errorCode) String() string {
	switch api.ErrorCode(c) {
	case api.ErrCodeLeaseExhausted:
		return "lease_exhausted"
	case api.ErrCodeLeaseReleased:
		return "lease_released"
	case api.ErrCodeCapacityViolation:
		return "capacity_violation"
	case api.ErrCodeAckOutOfRange:
		return "ack_out_of_range"
	case api.ErrCodeResourceExhausted:
		return "resource_exhausted"
	default:
		return "internal"
	}
}
