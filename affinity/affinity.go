// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files guarded by build tags.

package affinity

import "runtime"

// SetAffinity pins the current OS thread to a given logical CPU.
// On unsupported platforms returns api.ErrNotSupported.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Pin locks the calling goroutine to its OS thread and pins that thread
// to cpuID. A negative cpuID only locks the thread. The lock is never
// undone, so the runtime retires the pinned thread when the goroutine exits.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return nil
	}
	return setAffinityPlatform(cpuID)
}
