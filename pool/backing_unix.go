//go:build unix

// File: pool/backing_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// File-backed MAP_SHARED memory so a consumer process can map the same
// transfer blocks and dereference region descriptors directly.

package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const defaultShmDir = "/dev/shm"

// SharedBacking is an mmap'd file, normally under /dev/shm.
type SharedBacking struct {
	file   *os.File
	mem    []byte
	path   string
	owner  bool
	once   sync.Once
	closed error
}

// NewSharedBacking creates a fresh segment file of size bytes in dir
// (default /dev/shm, falling back to the temp dir) and maps it shared.
// The creator unlinks the file on Close.
func NewSharedBacking(dir string, size int) (*SharedBacking, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shared backing: invalid size %d", size)
	}
	if dir == "" {
		dir = defaultShmDir
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			dir = os.TempDir()
		}
	}
	path := filepath.Join(dir, "hioload-ring-"+uuid.NewString())

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", path, err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		return nil, multierr.Combine(
			fmt.Errorf("resize segment %s: %w", path, err),
			file.Close(),
			os.Remove(path),
		)
	}
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, multierr.Combine(
			fmt.Errorf("mmap segment %s: %w", path, err),
			file.Close(),
			os.Remove(path),
		)
	}
	return &SharedBacking{file: file, mem: mem, path: path, owner: true}, nil
}

// OpenSharedBacking maps an existing segment created by NewSharedBacking.
func OpenSharedBacking(path string) (*SharedBacking, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	st, err := file.Stat()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("stat segment %s: %w", path, err), file.Close())
	}
	mem, err := unix.Mmap(int(file.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("mmap segment %s: %w", path, err), file.Close())
	}
	return &SharedBacking{file: file, mem: mem, path: path}, nil
}

func (b *SharedBacking) Bytes() []byte { return b.mem }

// Path returns the segment file path for handing to a consumer.
func (b *SharedBacking) Path() string { return b.path }

// Close unmaps the segment; the creating side also removes the file.
func (b *SharedBacking) Close() error {
	b.once.Do(func() {
		err := multierr.Combine(unix.Munmap(b.mem), b.file.Close())
		if b.owner {
			err = multierr.Append(err, os.Remove(b.path))
		}
		b.mem = nil
		b.closed = err
	})
	return b.closed
}
