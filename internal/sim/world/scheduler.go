package world

import "sort"

// QueuedUpdate is one pending entry in snapshot form.
type QueuedUpdate struct {
	Pos [3]int `json:"pos"`
	Due uint64 `json:"due"`
}

// fluidQueue holds pending per-voxel updates keyed by position. A position
// carries at most one entry; rescheduling keeps the earlier due tick, so a
// cell woken twice still updates once.
type fluidQueue struct {
	due map[Vec3i]uint64
}

func newFluidQueue() *fluidQueue {
	return &fluidQueue{due: make(map[Vec3i]uint64)}
}

func (q *fluidQueue) schedule(pos Vec3i, due uint64) {
	if cur, ok := q.due[pos]; ok && cur <= due {
		return
	}
	q.due[pos] = due
}

func (q *fluidQueue) pending() int {
	return len(q.due)
}

// popDue removes and returns up to max positions due at or before now,
// ordered by (Y, X, Z) ascending so lower cells settle before the fluid
// above them. Entries beyond max stay queued for the next tick.
func (q *fluidQueue) popDue(now uint64, max int) []Vec3i {
	if max <= 0 || len(q.due) == 0 {
		return nil
	}
	ready := make([]Vec3i, 0, 16)
	for pos, due := range q.due {
		if due <= now {
			ready = append(ready, pos)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	if len(ready) > max {
		ready = ready[:max]
	}
	for _, pos := range ready {
		delete(q.due, pos)
	}
	return ready
}

// export lists every pending entry sorted by due tick then position, for
// snapshots and digests.
func (q *fluidQueue) export() []QueuedUpdate {
	out := make([]QueuedUpdate, 0, len(q.due))
	for pos, due := range q.due {
		out = append(out, QueuedUpdate{Pos: pos.ToArray(), Due: due})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Due != b.Due {
			return a.Due < b.Due
		}
		if a.Pos[1] != b.Pos[1] {
			return a.Pos[1] < b.Pos[1]
		}
		if a.Pos[0] != b.Pos[0] {
			return a.Pos[0] < b.Pos[0]
		}
		return a.Pos[2] < b.Pos[2]
	})
	return out
}

func (q *fluidQueue) restore(entries []QueuedUpdate) {
	q.due = make(map[Vec3i]uint64, len(entries))
	for _, e := range entries {
		pos := Vec3i{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]}
		q.schedule(pos, e.Due)
	}
}
