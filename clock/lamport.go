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

import "fmt"

// ReplicaID identifies a live participant in a buffer. Replica 0 is
// reserved for the server/base text.
type ReplicaID uint16

// Lamport is a logical timestamp, unique per (replica, counter) pair.
// Ordering is lexicographic on (Counter, Replica) so ties between
// concurrent operations break deterministically on replica id.
type Lamport struct {
	Replica ReplicaID
	Counter uint32
}

func (t Lamport) String() string {
	return fmt.Sprintf("(%d,%d)", t.Replica, t.Counter)
}

// Less reports whether t happened before other in the tie-broken total
// order used to name insertions and order concurrent undo decisions.
func (t Lamport) Less(other Lamport) bool {
	if t.Counter != other.Counter {
		return t.Counter < other.Counter
	}
	return t.Replica < other.Replica
}

func (t Lamport) Equal(other Lamport) bool {
	return t.Replica == other.Replica && t.Counter == other.Counter
}

// Clock is a single replica's local Lamport clock plus its view of
// every other replica's highest observed counter (the Global vector
// clock). It is not safe for concurrent use; callers serialize access
// to a buffer's clock the same way they serialize edits (spec.md §5).
type Clock struct {
	replica ReplicaID
	global  Global
}

// NewClock creates a clock for the given replica with an empty
// observation set.
func NewClock(replica ReplicaID) *Clock {
	return &Clock{replica: replica, global: NewGlobal()}
}

// Replica returns the replica id this clock ticks on behalf of.
func (c *Clock) Replica() ReplicaID {
	return c.replica
}

// Tick advances the local replica's counter past anything already
// observed (from a Tick or an Observe) and returns the new timestamp.
func (c *Clock) Tick() Lamport {
	var highest uint32
	for _, n := range c.global.counters {
		if n > highest {
			highest = n
		}
	}
	c.global.observe(Lamport{Replica: c.replica, Counter: highest})
	counter := c.global.bump(c.replica)
	return Lamport{Replica: c.replica, Counter: counter}
}

// Observe folds a timestamp seen on an incoming operation into the
// vector clock, so that a subsequent local Tick never reuses a
// counter already used by that replica.
func (c *Clock) Observe(t Lamport) {
	c.global.observe(t)
}

// Global returns the clock's current vector-clock snapshot. The
// returned value is a copy and safe to retain.
func (c *Clock) Global() Global {
	return c.global.clone()
}
