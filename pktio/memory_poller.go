// File: pktio/memory_poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package pktio

import "sync/atomic"

// MemoryPoller is a reference Poller over an in-process packet source,
// used by scheduler tests and by callers with no real NIC driver to bind.
// Poll delivers no packets: it only counts calls and reports whether Stop
// has been called; Stop marks the interface stopped for the next Poll.
type MemoryPoller struct {
	stopped atomic.Bool
	polls   atomic.Int64
}

// NewMemoryPoller returns a Poller that never reports stopped until Stop
// is called.
func NewMemoryPoller() *MemoryPoller {
	return &MemoryPoller{}
}

// Poll records a poll and reports whether Stop has been called.
func (p *MemoryPoller) Poll() bool {
	p.polls.Add(1)
	return p.stopped.Load()
}

// Stop marks the interface stopped; the next Poll call reports it.
func (p *MemoryPoller) Stop() {
	p.stopped.Store(true)
}

// Polls returns the number of times Poll has been called, for tests.
func (p *MemoryPoller) Polls() int64 {
	return p.polls.Load()
}
