package node

import "github.com/m-lab/overlay/agent"
import "github.com/m-lab/overlay/location"

// neighborTable is the bounded, duplicate-free, self-excluding routing table
// a Node maintains over its known neighbors. It is not safe for concurrent
// use; a Node serializes access to it the same way the teacher's Cache type
// serializes access to its connection map, one caller at a time.
type neighborTable[L comparable] struct {
	metric    location.Metric[L]
	selfID    func() agent.Agent[L]
	neighbors []agent.Agent[L]
	max       int
}

func newNeighborTable[L comparable](metric location.Metric[L], selfFn func() agent.Agent[L], max int) *neighborTable[L] {
	return &neighborTable[L]{metric: metric, selfID: selfFn, max: max}
}

// len reports how many neighbors are currently held.
func (t *neighborTable[L]) len() int { return len(t.neighbors) }

// full reports whether the table has reached its capacity bound.
func (t *neighborTable[L]) full() bool { return len(t.neighbors) >= t.max }

// snapshot returns a copy of the current neighbor list, safe to iterate over
// while the table is mutated concurrently by the caller (e.g. during
// heartbeat fan-out).
func (t *neighborTable[L]) snapshot() []agent.Agent[L] {
	out := make([]agent.Agent[L], len(t.neighbors))
	copy(out, t.neighbors)
	return out
}

// contains reports whether an agent with the given id is already present.
func (t *neighborTable[L]) contains(id [20]byte) bool {
	for _, n := range t.neighbors {
		if [20]byte(n.ID()) == id {
			return true
		}
	}
	return false
}

// insert appends a into the table unless it already holds a's id, or a is
// the local agent. It does not enforce the capacity bound; callers (the
// HRTBT and JOIN handlers) decide when the bound permits insertion.
func (t *neighborTable[L]) insert(a agent.Agent[L]) {
	self := t.selfID()
	if a.ID() == self.ID() {
		return
	}
	if t.contains([20]byte(a.ID())) {
		return
	}
	t.neighbors = append(t.neighbors, a)
}

// closestTo returns the neighbor minimizing distance to loc, breaking ties
// by first occurrence in the table. It reports false if the table is empty.
func (t *neighborTable[L]) closestTo(loc L) (agent.Agent[L], bool) {
	if len(t.neighbors) == 0 {
		var zero agent.Agent[L]
		return zero, false
	}
	best := t.neighbors[0]
	bestDist := t.metric(best.Location(), loc)
	for _, n := range t.neighbors[1:] {
		d := t.metric(n.Location(), loc)
		if d < bestDist {
			best = n
			bestDist = d
		}
	}
	return best, true
}

// selfIsCloserThan reports whether the local agent's location is strictly
// closer to loc than a's is.
func (t *neighborTable[L]) selfIsCloserThan(a agent.Agent[L], loc L) bool {
	self := t.selfID()
	return t.metric(self.Location(), loc) < t.metric(a.Location(), loc)
}

// mergeGossip filters list down to entries that are neither the local agent
// nor already known, and appends the survivors in input order until the
// table reaches its capacity bound; survivors past that point are dropped.
// The HRTBTACK handler is responsible for inserting the replying sender
// itself; this helper only processes the gossiped list.
func (t *neighborTable[L]) mergeGossip(list []agent.Agent[L]) {
	self := t.selfID()
	for _, n := range list {
		if t.full() {
			return
		}
		if n.ID() == self.ID() {
			continue
		}
		if t.contains([20]byte(n.ID())) {
			continue
		}
		t.neighbors = append(t.neighbors, n)
	}
}
