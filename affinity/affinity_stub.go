//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-ring/api"

func setAffinityPlatform(cpuID int) error {
	return api.ErrNotSupported
}
