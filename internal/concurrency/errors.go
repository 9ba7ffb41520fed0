// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrLoopStopped indicates the event loop has been shut down
	ErrLoopStopped = errors.New("event loop is stopped")

	// ErrInboxFull indicates the event loop inbox cannot take more events
	ErrInboxFull = errors.New("event loop inbox is full")
)
