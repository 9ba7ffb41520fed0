//go:build !unix

// File: pool/backing_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "github.com/momentics/hioload-ring/api"

// SharedBacking is unavailable on this platform.
type SharedBacking struct{}

// NewSharedBacking always fails on this platform.
func NewSharedBacking(dir string, size int) (*SharedBacking, error) {
	return nil, api.ErrNotSupported
}

// OpenSharedBacking always fails on this platform.
func OpenSharedBacking(path string) (*SharedBacking, error) {
	return nil, api.ErrNotSupported
}

func (b *SharedBacking) Bytes() []byte { return nil }

func (b *SharedBacking) Path() string { return "" }

func (b *SharedBacking) Close() error { return nil }
