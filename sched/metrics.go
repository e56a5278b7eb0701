// File: sched/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sched

import (
	"github.com/momentics/dplane-sched/api"
	intsched "github.com/momentics/dplane-sched/internal/sched"
)

// QueueStats is a point-in-time snapshot of a single producer queue's
// lifetime counters: when it was registered and how many events have
// been dispatched out of it (spec §3 EXPANSION).
type QueueStats = intsched.QueueStats

// Metrics is the scheduler's queue-level metrics surface, obtained via
// Scheduler.Metrics. It is a thin read-only view over the Registry;
// process-wide counters (outstanding command count, queue counts by
// discipline, events enqueued, pause/resume counts) are published
// through Scheduler's embedded control.MetricsRegistry instead and
// reachable via Control().Stats().
type Metrics struct {
	reg *intsched.Registry
}

// QueueStats returns h's registration time and cumulative dispatched
// event count.
func (m *Metrics) QueueStats(h api.Handle) (QueueStats, error) {
	return m.reg.QueueStats(intsched.QueueHandle(h))
}

// Outstanding returns the number of command-record pool slots currently
// occupied by registered producer queues and pktios.
func (m *Metrics) Outstanding() int { return m.reg.Outstanding() }

// QueueCountsByDiscipline returns the number of currently registered
// producer queues for each discipline.
func (m *Metrics) QueueCountsByDiscipline() map[string]int { return m.reg.QueueCountsByDiscipline() }
