// File: transfer/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transfer

// Termination names the path that ended the write side.
type Termination uint32

const (
	NotTerminated Termination = iota
	WriteClosed
	WriteAborted
	ChannelClosed
)

func (t Termination) String() string {
	switch t {
	case WriteClosed:
		return "write-closed"
	case WriteAborted:
		return "write-aborted"
	case ChannelClosed:
		return "closed"
	default:
		return "open"
	}
}

// Terminate ends the write side for reason and releases the lease.
// Safe to call concurrently from every close path: only the first call
// records its reason and returns true; the lease is released at most once.
func (w *Writer) Terminate(reason Termination) bool {
	if reason == NotTerminated {
		return false
	}
	if !w.termination.CompareAndSwap(uint32(NotTerminated), uint32(reason)) {
		return false
	}
	w.ReleaseLease()
	return true
}

// Termination returns the first recorded termination reason.
func (w *Writer) Termination() Termination {
	return Termination(w.termination.Load())
}

// SetClosing marks the channel as closing; true only for the first caller.
func (w *Writer) SetClosing() bool {
	return w.closing.CompareAndSwap(false, true)
}

// IsClosing reports whether SetClosing was called.
func (w *Writer) IsClosing() bool {
	return w.closing.Load()
}
