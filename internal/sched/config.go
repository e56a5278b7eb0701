// File: internal/sched/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import "github.com/momentics/dplane-sched/event"

// Config carries the build-time constants spec.md §6 calls out: P, B,
// MAX_DEQ, and the fixed capacities bounding the command-record pool and
// group table.
type Config struct {
	P               int
	B               int
	MaxDeq          int
	MaxQueues       int
	MaxPktios       int
	MaxOrderedLocks int
	MaxGroups       int
	MaxGroupNameLen int

	// SpinPauseEvery bounds how many spin iterations OrderLock performs
	// before yielding, mirroring the backoff cadence the teacher tunes in
	// its event loop.
	SpinPauseEvery int
}

const (
	defaultP               = 8
	defaultB               = 4
	defaultMaxDeq          = 4
	defaultMaxQueues       = 1024
	defaultMaxPktios       = 64
	defaultMaxGroups       = 256
	defaultMaxGroupNameLen = 64
	defaultSpinPauseEvery  = 64
)

// withDefaults returns a copy of c with zero fields replaced by defaults
// and B rounded up to a power of two (required by the mask/bucket-id
// arithmetic in internal/fanout).
func (c Config) withDefaults() Config {
	if c.P <= 0 {
		c.P = defaultP
	}
	if c.B <= 0 {
		c.B = defaultB
	}
	b := 1
	for b < c.B {
		b <<= 1
	}
	c.B = b
	if c.MaxDeq <= 0 {
		c.MaxDeq = defaultMaxDeq
	}
	if c.MaxQueues <= 0 {
		c.MaxQueues = defaultMaxQueues
	}
	if c.MaxPktios <= 0 {
		c.MaxPktios = defaultMaxPktios
	}
	if c.MaxOrderedLocks <= 0 || c.MaxOrderedLocks > event.MaxOrderedLocks {
		c.MaxOrderedLocks = event.MaxOrderedLocks
	}
	if c.MaxGroups <= 0 {
		c.MaxGroups = defaultMaxGroups
	}
	if c.MaxGroupNameLen <= 0 {
		c.MaxGroupNameLen = defaultMaxGroupNameLen
	}
	if c.SpinPauseEvery <= 0 {
		c.SpinPauseEvery = defaultSpinPauseEvery
	}
	return c
}
