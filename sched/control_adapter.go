// File: sched/control_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import "github.com/momentics/dplane-sched/control"

// controlAdapter implements api.Control over the control package's
// primitives: a ConfigStore, a MetricsRegistry, and DebugProbes.
type controlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

func (c *controlAdapter) GetConfig() map[string]any { return c.config.GetSnapshot() }

func (c *controlAdapter) SetConfig(cfg map[string]any) error {
	c.config.SetConfig(cfg)
	return nil
}

func (c *controlAdapter) Stats() map[string]any {
	out := c.metrics.GetSnapshot()
	for k, v := range c.debug.DumpState() {
		out["debug."+k] = v
	}
	return out
}

func (c *controlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
	control.RegisterReloadHook(fn)
}

func (c *controlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
