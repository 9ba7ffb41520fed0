// File: transfer/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring writer: lazy lease, backpressure accounting, wraparound split.

package transfer

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
)

type leaseState uint32

const (
	leaseIdle leaseState = iota
	leaseHeld
	leaseReleased
)

func (s leaseState) String() string {
	switch s {
	case leaseHeld:
		return "held"
	case leaseReleased:
		return "released"
	default:
		return "idle"
	}
}

// Indices is a snapshot of a writer's index set.
type Indices struct {
	TransferIndex uint64
	AckIndex      uint64
	AckHighMark   uint64
	AckProgress   uint64
}

// InFlight returns written but unacknowledged bytes.
func (i Indices) InFlight() uint64 { return i.TransferIndex - i.AckIndex }

// Writer is the write side of one transfer channel.
type Writer struct {
	leases  api.LeaseManager
	log     *zap.Logger
	metrics *control.RingMetrics

	capacity uint64
	mask     uint64

	// owner state
	leaseBase     uint64
	mem           []byte
	transferIndex uint64
	ackIndex      uint64
	ackHighMark   uint64
	ackProgress   uint64
	ackCount      uint64

	_           cpu.CacheLinePad
	lease       atomic.Uint32 // leaseState
	closing     atomic.Bool
	termination atomic.Uint32 // Termination
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetrics attaches shared ring metrics.
func WithMetrics(m *control.RingMetrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter creates a writer that leases its ring from leases on first use.
func NewWriter(leases api.LeaseManager, cfg Config, opts ...Option) (*Writer, error) {
	if leases == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil lease manager")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Writer{
		leases:        leases,
		log:           zap.NewNop(),
		capacity:      cfg.Capacity,
		mask:          cfg.Capacity - 1,
		leaseBase:     api.NoAddress,
		transferIndex: cfg.InitialTransferIndex,
		ackIndex:      cfg.InitialAckIndex,
		ackHighMark:   cfg.InitialAckIndex,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Capacity returns the ring size in bytes.
func (w *Writer) Capacity() uint64 { return w.capacity }

// LeaseAddress returns the lease base address, or api.NoAddress before
// the first acquisition.
func (w *Writer) LeaseAddress() uint64 { return w.leaseBase }

// HasLease reports whether a lease is currently held.
func (w *Writer) HasLease() bool { return leaseState(w.lease.Load()) == leaseHeld }

// AcquireLease obtains the ring memory if not yet held.
func (w *Writer) AcquireLease() error {
	switch leaseState(w.lease.Load()) {
	case leaseHeld:
		return nil
	case leaseReleased:
		return w.released()
	}

	address := w.leases.Acquire(w.capacity)
	if address == api.NoAddress {
		w.metrics.ObserveFault(control.FaultLeaseExhausted)
		w.log.Error("unable to allocate memory block", zap.Uint64("capacity", w.capacity))
		return api.NewError(api.ErrCodeLeaseExhausted, "unable to allocate memory block").
			WithContext("capacity", w.capacity)
	}
	mem := w.leases.Resolve(address)
	if uint64(len(mem)) < w.capacity {
		w.leases.Release(address, w.capacity)
		w.metrics.ObserveFault(control.FaultLeaseExhausted)
		return api.NewError(api.ErrCodeLeaseExhausted, "leased block smaller than capacity").
			WithContext("capacity", w.capacity).
			WithContext("resolved", len(mem))
	}

	w.leaseBase = address
	w.mem = mem[:w.capacity:w.capacity]
	if !w.lease.CompareAndSwap(uint32(leaseIdle), uint32(leaseHeld)) {
		// terminated while acquiring
		w.leases.Release(address, w.capacity)
		w.mem = nil
		return api.NewError(api.ErrCodeLeaseReleased, "transfer memory already released")
	}
	w.metrics.ObserveLease(1)
	w.log.Debug("transfer memory acquired",
		zap.Uint64("address", address), zap.Uint64("capacity", w.capacity))
	return nil
}

// ReleaseLease gives the ring memory back at most once, no matter how
// many callers race. It reports whether this call returned a block.
// Later Flush and AcquireLease calls fail with api.ErrLeaseReleased.
func (w *Writer) ReleaseLease() bool {
	for {
		s := leaseState(w.lease.Load())
		if s == leaseReleased {
			return false
		}
		if !w.lease.CompareAndSwap(uint32(s), uint32(leaseReleased)) {
			continue
		}
		if s != leaseHeld {
			return false
		}
		w.leases.Release(w.leaseBase, w.capacity)
		w.metrics.ObserveLease(-1)
		w.log.Debug("transfer memory released",
			zap.Uint64("address", w.leaseBase), zap.Uint64("capacity", w.capacity))
		return true
	}
}

func (w *Writer) released() error {
	w.mem = nil
	w.metrics.ObserveFault(control.FaultLeaseReleased)
	return api.NewError(api.ErrCodeLeaseReleased, "transfer memory already released")
}

// WritableBytes is the free ring space; callers must not flush more.
func (w *Writer) WritableBytes() int {
	return int(w.capacity - (w.transferIndex - w.ackIndex))
}

// Flush copies src into the ring at the write offset and appends the
// describing regions to dst: one, or two when the write crosses the ring
// end, in write order. A flush larger than WritableBytes is rejected
// before anything is touched.
func (w *Writer) Flush(dst []api.Region, src []byte, streamID uint64) ([]api.Region, error) {
	if leaseState(w.lease.Load()) == leaseReleased {
		return dst, w.released()
	}
	n := len(src)
	if writable := w.WritableBytes(); n > writable {
		w.metrics.ObserveFault(control.FaultCapacityViolation)
		return dst, api.NewError(api.ErrCodeCapacityViolation, "flush exceeds writable bytes").
			WithContext("length", n).
			WithContext("writable", writable)
	}
	if err := w.AcquireLease(); err != nil {
		return dst, err
	}
	if n == 0 {
		return dst, nil
	}

	offset := w.transferIndex & w.mask
	limit := offset + uint64(n)
	regions := 1
	if limit <= w.capacity {
		copy(w.mem[offset:limit], src)
		dst = append(dst, api.Region{
			Address:  w.leaseBase + offset,
			Length:   uint32(n),
			StreamID: streamID,
		})
	} else {
		n0 := w.capacity - offset
		copy(w.mem[offset:], src[:n0])
		copy(w.mem, src[n0:])
		dst = append(dst,
			api.Region{Address: w.leaseBase + offset, Length: uint32(n0), StreamID: streamID},
			api.Region{Address: w.leaseBase, Length: uint32(uint64(n) - n0), StreamID: streamID},
		)
		regions = 2
	}
	w.transferIndex += uint64(n)
	w.metrics.ObserveFlush(n, regions)
	return dst, nil
}

// Indices returns the current index set.
func (w *Writer) Indices() Indices {
	return Indices{
		TransferIndex: w.transferIndex,
		AckIndex:      w.ackIndex,
		AckHighMark:   w.ackHighMark,
		AckProgress:   w.ackProgress,
	}
}
