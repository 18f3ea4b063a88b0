/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package clock

import "sort"

// Global is a vector clock: for every replica it has heard from, the
// highest counter observed from that replica. Observed and Includes
// answer from the counters map; entries mirrors it as a slice sorted
// by replica, the form the wire encoding (spec.md §4.1) needs.
type Global struct {
	// entries is kept sorted by Replica for a deterministic Iter order
	// (wire encoding must be reproducible).
	entries  []replicaCounter
	counters map[ReplicaID]uint32
}

type replicaCounter struct {
	Replica ReplicaID
	Counter uint32
}

// NewGlobal returns an empty vector clock (every replica implicitly
// at counter 0).
func NewGlobal() Global {
	return Global{counters: make(map[ReplicaID]uint32)}
}

// FromCounters rebuilds a Global from a decoded wire representation
// (replica -> highest observed counter), the inverse of Iter.
func FromCounters(counts map[ReplicaID]uint32) Global {
	g := NewGlobal()
	for r, c := range counts {
		if c > 0 {
			g.counters[r] = c
		}
	}
	g.rebuildEntries()
	return g
}

func (g *Global) ensureMap() {
	if g.counters == nil {
		g.counters = make(map[ReplicaID]uint32)
	}
}

// observe raises the recorded counter for t.Replica to t.Counter if
// it isn't already at least that high.
func (g *Global) observe(t Lamport) {
	g.ensureMap()
	if t.Counter > g.counters[t.Replica] {
		g.counters[t.Replica] = t.Counter
		g.rebuildEntries()
	}
}

// bump increments the counter for replica by one and returns the new
// value, keeping entries in sync so Iter sees it immediately. Used by
// Clock.Tick, which must never fall out of step with its own vector.
func (g *Global) bump(replica ReplicaID) uint32 {
	g.ensureMap()
	g.counters[replica]++
	g.rebuildEntries()
	return g.counters[replica]
}

func (g *Global) rebuildEntries() {
	g.entries = g.entries[:0]
	for r, c := range g.counters {
		g.entries = append(g.entries, replicaCounter{r, c})
	}
	sort.Slice(g.entries, func(i, j int) bool { return g.entries[i].Replica < g.entries[j].Replica })
}

// Get returns the highest counter observed for replica r (0 if none).
func (g Global) Get(r ReplicaID) uint32 {
	return g.counters[r]
}

// Observed reports whether t.Counter has already been seen from
// t.Replica — i.e. whether applying the operation named by t again
// would be a duplicate.
func (g Global) Observed(t Lamport) bool {
	return t.Counter <= g.counters[t.Replica]
}

// Includes reports whether g pointwise dominates other: every replica
// other has observed, g has observed at least as much of.
func (g Global) Includes(other Global) bool {
	for r, c := range other.counters {
		if g.counters[r] < c {
			return false
		}
	}
	return true
}

// Merge returns the pointwise maximum of g and other, used when a
// replica adopts a version reported by a peer (e.g. on rejoin).
func (g Global) Merge(other Global) Global {
	out := NewGlobal()
	for r, c := range g.counters {
		out.counters[r] = c
	}
	for r, c := range other.counters {
		if c > out.counters[r] {
			out.counters[r] = c
		}
	}
	out.rebuildEntries()
	return out
}

// Iter calls fn once per replica with a nonzero counter, in ascending
// replica order — the order the wire encoding uses.
func (g Global) Iter(fn func(replica ReplicaID, counter uint32)) {
	for _, e := range g.entries {
		fn(e.Replica, e.Counter)
	}
}

func (g Global) clone() Global {
	out := NewGlobal()
	for r, c := range g.counters {
		out.counters[r] = c
	}
	out.entries = append([]replicaCounter(nil), g.entries...)
	return out
}

// Len reports how many replicas have a nonzero counter.
func (g Global) Len() int {
	return len(g.entries)
}
