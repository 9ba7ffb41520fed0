// File: transfer/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transfer

import (
	"fmt"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
)

const (
	// DefaultCapacity is the ring size used when none is configured.
	DefaultCapacity = 32 * 1024

	// MaxCapacity keeps every region length representable as uint32.
	MaxCapacity = 1 << 30

	// DefaultExtensionBufferSize sizes lazily allocated extension buffers.
	DefaultExtensionBufferSize = 8192
)

// Config store keys read by ConfigFromStore.
const (
	KeyCapacity            = "ring.capacity"
	KeyTransferIndex       = "ring.transfer_index"
	KeyAckIndex            = "ring.ack_index"
	KeyExtensionBufferSize = "ring.ext_buffer_size"
)

// Config fixes a writer's ring geometry and starting indices.
// Non-zero initial indices let harnesses resume mid-stream.
type Config struct {
	Capacity             uint64
	InitialTransferIndex uint64
	InitialAckIndex      uint64
	ExtensionBufferSize  int
}

// DefaultConfig returns a 32 KiB ring starting at index zero.
func DefaultConfig() Config {
	return Config{
		Capacity:            DefaultCapacity,
		ExtensionBufferSize: DefaultExtensionBufferSize,
	}
}

// Validate checks ring geometry and index consistency.
func (c Config) Validate() error {
	switch {
	case c.Capacity == 0 || c.Capacity&(c.Capacity-1) != 0:
		return invalidConfig("capacity must be a positive power of two", c)
	case c.Capacity > MaxCapacity:
		return invalidConfig(fmt.Sprintf("capacity exceeds %d", MaxCapacity), c)
	case c.InitialAckIndex > c.InitialTransferIndex:
		return invalidConfig("initial ack index ahead of transfer index", c)
	case c.InitialTransferIndex-c.InitialAckIndex > c.Capacity:
		return invalidConfig("initial in-flight bytes exceed capacity", c)
	case c.ExtensionBufferSize < 0:
		return invalidConfig("negative extension buffer size", c)
	}
	return nil
}

func invalidConfig(msg string, c Config) error {
	return api.NewError(api.ErrCodeInvalidConfig, msg).
		WithContext("capacity", c.Capacity).
		WithContext("transferIndex", c.InitialTransferIndex).
		WithContext("ackIndex", c.InitialAckIndex)
}

// ConfigFromStore reads ring settings from cs over DefaultConfig.
func ConfigFromStore(cs *control.ConfigStore) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if cfg.Capacity, err = cs.Uint64(KeyCapacity, cfg.Capacity); err != nil {
		return cfg, err
	}
	if cfg.InitialTransferIndex, err = cs.Uint64(KeyTransferIndex, cfg.InitialTransferIndex); err != nil {
		return cfg, err
	}
	if cfg.InitialAckIndex, err = cs.Uint64(KeyAckIndex, cfg.InitialAckIndex); err != nil {
		return cfg, err
	}
	if cfg.ExtensionBufferSize, err = cs.Int(KeyExtensionBufferSize, cfg.ExtensionBufferSize); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
