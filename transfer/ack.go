// File: transfer/ack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acknowledgment tracking. Regions come back carrying only a physical
// address, so the lap each one belongs to is inferred from ackIndex; this
// is sound because at most one lap (capacity bytes) is ever in flight.

package transfer

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
)

// Acknowledge folds one batch of echoed regions, in the order given, into
// the acknowledged index. The index only moves once every byte from it up
// to the highest acknowledged byte is confirmed. The first out-of-range
// region stops the fold; regions before it stay applied.
func (w *Writer) Acknowledge(regions []api.Region) error {
	w.ackCount++
	w.metrics.ObserveAckBatch(len(regions))
	for i := range regions {
		if err := w.AcknowledgeRegion(regions[i]); err != nil {
			if e, ok := err.(*api.Error); ok {
				e.WithContext("batchPosition", i)
			}
			return err
		}
	}
	return nil
}

// AcknowledgeRegion folds a single region. Each byte must be acknowledged
// exactly once; overlapping acknowledgments are a caller error.
func (w *Writer) AcknowledgeRegion(r api.Region) error {
	if w.leaseBase == api.NoAddress {
		return w.ackFault("acknowledgment before transfer memory was acquired", r, 0)
	}
	offset := r.Address - w.leaseBase
	if r.Address < w.leaseBase || offset >= w.capacity {
		return w.ackFault("acknowledged address outside transfer memory", r, 0)
	}

	epoch := w.ackIndex
	if offset < w.ackIndex&w.mask {
		epoch += w.capacity
	}
	regionIndex := epoch&^w.mask | offset
	regionEnd := regionIndex + uint64(r.Length)
	if regionIndex < w.ackIndex || regionEnd > w.transferIndex {
		return w.ackFault("acknowledged region outside in-flight window", r, regionIndex)
	}

	highMark := max(w.ackHighMark, regionEnd)
	progress := w.ackProgress + uint64(r.Length)
	candidate := w.ackIndex + progress
	if candidate > highMark {
		return w.ackFault("acknowledged progress exceeds high-water mark", r, regionIndex)
	}

	if candidate == highMark {
		freed := candidate - w.ackIndex
		w.ackIndex = candidate
		w.ackHighMark = candidate
		w.ackProgress = 0
		w.metrics.ObserveFreed(freed)
		return nil
	}
	w.ackHighMark = highMark
	w.ackProgress = progress
	return nil
}

// HasAcknowledged reports whether any acknowledgment batch was processed,
// whether or not it moved the acknowledged index.
func (w *Writer) HasAcknowledged() bool { return w.ackCount != 0 }

func (w *Writer) ackFault(msg string, r api.Region, regionIndex uint64) error {
	w.metrics.ObserveFault(control.FaultAckOutOfRange)
	w.log.Warn(msg,
		zap.Stringer("region", r),
		zap.Uint64("regionIndex", regionIndex),
		zap.Uint64("ackIndex", w.ackIndex),
		zap.Uint64("ackHighMark", w.ackHighMark),
		zap.Uint64("transferIndex", w.transferIndex))
	return api.NewError(api.ErrCodeAckOutOfRange, msg).
		WithContext("address", r.Address).
		WithContext("length", r.Length).
		WithContext("regionIndex", regionIndex).
		WithContext("ackIndex", w.ackIndex).
		WithContext("transferIndex", w.transferIndex)
}
