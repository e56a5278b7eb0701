// File: internal/group/group.go
// Package group implements the thread-group registry (spec §4.6).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded directly on original_source's odp_schedule_group_* family:
// built-in groups occupy reserved low ids, user ("named") groups start at
// a fixed base, and duplicate names are deliberately NOT rejected by
// Create (spec §9 Open Question a) — callers must de-duplicate via
// Lookup, exactly as upstream.
package group

import (
	"sync"

	"github.com/momentics/dplane-sched/api"
)

// Mask is a thread-mask: bit i set means thread i is a member.
type Mask uint64

func (m Mask) Has(thread int) bool {
	if thread < 0 || thread >= 64 {
		return false
	}
	return m&(1<<uint(thread)) != 0
}

// Set returns a copy of m with thread added.
func (m Mask) Set(thread int) Mask {
	if thread < 0 || thread >= 64 {
		return m
	}
	return m | (1 << uint(thread))
}

type slot struct {
	name string
	mask Mask
	used bool
}

// Registry holds the fixed-capacity group table: built-in groups at ids
// [0, GroupNamedBase), user groups at [GroupNamedBase, cap).
type Registry struct {
	mu    sync.Mutex
	slots []slot
}

// New creates a registry with room for cap groups total (built-ins
// included). ALL/WORKER/CONTROL are pre-occupied with empty names and an
// empty mask; the engine populates WORKER/CONTROL via JoinBuiltin as
// threads call InitLocal. ALL never gates dispatch (spec: qe_grp >
// GroupAll), so its mask is never consulted.
func New(cap int) *Registry {
	if cap < int(api.GroupNamedBase) {
		cap = int(api.GroupNamedBase)
	}
	r := &Registry{slots: make([]slot, cap)}
	r.slots[api.GroupAll].used = true
	r.slots[api.GroupWorker].used = true
	r.slots[api.GroupControl].used = true
	return r
}

// Create finds the first unoccupied named slot, stores name/mask, and
// returns its id. Does not reject a name already used by another slot —
// preserved intentionally, see package doc.
func (r *Registry) Create(name string, mask Mask) (api.GroupID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := int(api.GroupNamedBase); i < len(r.slots); i++ {
		if !r.slots[i].used {
			r.slots[i] = slot{name: name, mask: mask, used: true}
			return api.GroupID(i), nil
		}
	}
	return api.GroupInvalid, api.ErrResourceExhausted
}

// Destroy clears a named group's slot.
func (r *Registry) Destroy(g api.GroupID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validNamed(g) {
		return api.ErrInvalidArgument
	}
	r.slots[g] = slot{}
	return nil
}

// Lookup returns the first group whose name matches, or GroupInvalid.
func (r *Registry) Lookup(name string) api.GroupID {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := int(api.GroupNamedBase); i < len(r.slots); i++ {
		if r.slots[i].used && r.slots[i].name == name {
			return api.GroupID(i)
		}
	}
	return api.GroupInvalid
}

// Join bitwise-ORs mask into named group g's mask. Matches upstream's
// group_join bound (group >= _ODP_SCHED_GROUP_NAMED); built-in groups are
// never joined through the public API, see JoinBuiltin.
func (r *Registry) Join(g api.GroupID, mask Mask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validNamed(g) {
		return api.ErrInvalidArgument
	}
	r.slots[g].mask |= mask
	return nil
}

// Leave clears the bits in mask from named group g's mask.
func (r *Registry) Leave(g api.GroupID, mask Mask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validNamed(g) {
		return api.ErrInvalidArgument
	}
	r.slots[g].mask &^= mask
	return nil
}

// Thrmask returns the current mask for named group g.
func (r *Registry) Thrmask(g api.GroupID) (Mask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validNamed(g) {
		return 0, api.ErrInvalidArgument
	}
	return r.slots[g].mask, nil
}

// JoinBuiltin adds thread to the WORKER or CONTROL built-in mask. Called
// only by the engine's InitLocal/TermLocal, never exposed through the
// public group API: upstream populates these masks as threads register
// with the scheduler, not through odp_schedule_group_join.
func (r *Registry) JoinBuiltin(g api.GroupID, thread int) {
	if g != api.GroupWorker && g != api.GroupControl {
		return
	}
	r.mu.Lock()
	r.slots[g].mask = r.slots[g].mask.Set(thread)
	r.mu.Unlock()
}

// LeaveBuiltin clears thread from the WORKER or CONTROL built-in mask.
func (r *Registry) LeaveBuiltin(g api.GroupID, thread int) {
	if g != api.GroupWorker && g != api.GroupControl {
		return
	}
	r.mu.Lock()
	r.slots[g].mask &^= 1 << uint(thread)
	r.mu.Unlock()
}

// IsMember reports whether thread is a member of g, used by the engine's
// per-dispatch gating check (spec §4.3 step 6).
func (r *Registry) IsMember(g api.GroupID, thread int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g < 0 || int(g) >= len(r.slots) || !r.slots[g].used {
		return false
	}
	return r.slots[g].mask.Has(thread)
}

// validNamed requires g to be an occupied user (named) slot — built-ins
// cannot be destroyed, joined, or left through the public API, matching
// upstream's `group >= _ODP_SCHED_GROUP_NAMED` bound.
func (r *Registry) validNamed(g api.GroupID) bool {
	return g >= api.GroupNamedBase && int(g) < len(r.slots) && r.slots[g].used
}
