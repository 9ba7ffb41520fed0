// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with reload propagation.

package control

import (
	"fmt"
	"strconv"
	"sync"
)

// ConfigStore is a dynamic key/value map with snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// SetConfig merges new values and notifies listeners synchronously,
// outside the store lock.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	listeners := append([]func(){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// Get returns the raw value stored under key.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// Uint64 returns key as uint64, def when absent. Non-negative integer
// kinds and decimal strings are accepted; anything else is an error.
func (cs *ConfigStore) Uint64(key string, def uint64) (uint64, error) {
	v, ok := cs.Get(key)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case int32:
		if n >= 0 {
			return uint64(n), nil
		}
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return def, fmt.Errorf("config %q: %w", key, err)
		}
		return u, nil
	}
	return def, fmt.Errorf("config %q: unsupported value %v (%T)", key, v, v)
}

// Int returns key as int, def when absent.
func (cs *ConfigStore) Int(key string, def int) (int, error) {
	if def < 0 {
		def = 0
	}
	u, err := cs.Uint64(key, uint64(def))
	if err != nil {
		return def, err
	}
	if u > uint64(int(^uint(0)>>1)) {
		return def, fmt.Errorf("config %q: %d overflows int", key, u)
	}
	return int(u), nil
}
