// control/plane.go
// Author: momentics <momentics@gmail.com>
//
// Plane implements api.Control on top of the control package primitives.

package control

import (
	"github.com/momentics/hioload-ring/api"
)

// Plane bundles config, metrics and debug probes behind api.Control.
type Plane struct {
	config  *ConfigStore
	metrics *RingMetrics
	debug   *DebugProbes
}

var _ api.Control = (*Plane)(nil)

// NewPlane builds a control plane with a private metrics registry.
func NewPlane() *Plane {
	p := &Plane{
		config:  NewConfigStore(),
		metrics: NewRingMetrics(nil),
		debug:   NewDebugProbes(),
	}
	RegisterPlatformProbes(p.debug)
	return p
}

// Config returns the underlying store.
func (p *Plane) Config() *ConfigStore { return p.config }

// Metrics returns the ring metrics shared by writers of this plane.
func (p *Plane) Metrics() *RingMetrics { return p.metrics }

// Probes returns the debug probe registry.
func (p *Plane) Probes() *DebugProbes { return p.debug }

func (p *Plane) GetConfig() map[string]any {
	return p.config.GetSnapshot()
}

func (p *Plane) SetConfig(cfg map[string]any) error {
	p.config.SetConfig(cfg)
	return nil
}

// Stats merges metric values with probe output under a "debug." prefix.
func (p *Plane) Stats() map[string]any {
	combined := p.metrics.Snapshot()
	for k, v := range p.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}

func (p *Plane) OnReload(fn func()) {
	p.config.OnReload(fn)
}

func (p *Plane) RegisterDebugProbe(name string, fn func() any) {
	p.debug.RegisterProbe(name, fn)
}
