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
package buffer

import (
	"github.com/zed-industries/zed-sub044/clock"
	"github.com/zed-industries/zed-sub044/sumtree"
)

// Anchor is a position that tracks edits: it names a spot inside a
// specific insertion's text rather than a raw offset, so it survives
// any number of intervening inserts/deletes elsewhere in the buffer.
// Bias controls which side of the position it sticks to when a new
// insertion lands exactly there.
type Anchor struct {
	InsertionID     clock.Lamport
	InsertionOffset int
	Bias            sumtree.Bias
}

// InsertionKey orders fragments by the position of their text within
// the insertion that produced them — the coordinate system remote
// peers use to address edits, since they may not yet know the local
// fragment-id tree shape.
type InsertionKey struct {
	ID     clock.Lamport
	Offset int
}

func (k InsertionKey) Less(other InsertionKey) bool {
	if !k.ID.Equal(other.ID) {
		return k.ID.Less(other.ID)
	}
	return k.Offset < other.Offset
}

func (k InsertionKey) CompareTo(d InsertionPos) int {
	other := InsertionKey(d)
	switch {
	case k.Less(other):
		return -1
	case other.Less(k):
		return 1
	default:
		return 0
	}
}

// InsertionSummary is the secondary index's monoid: it tracks the
// largest InsertionKey seen so far, which is exactly what a Dimension
// needs to support seeking by key (mirroring the chat log's
// {max_id, count} summary pattern).
type InsertionSummary struct {
	MaxKey InsertionKey
	Count  int
}

func (s InsertionSummary) Add(other InsertionSummary) InsertionSummary {
	if other.Count == 0 {
		return s
	}
	if s.Count == 0 || s.MaxKey.Less(other.MaxKey) {
		return InsertionSummary{MaxKey: other.MaxKey, Count: s.Count + other.Count}
	}
	return InsertionSummary{MaxKey: s.MaxKey, Count: s.Count + other.Count}
}

func (s InsertionSummary) ItemCount() int { return s.Count }

// InsertionPos is the dimension derived from InsertionSummary: the
// running maximum InsertionKey.
type InsertionPos InsertionKey

func (d InsertionPos) AddSummary(s InsertionSummary) InsertionPos {
	if s.Count == 0 {
		return d
	}
	return InsertionPos(s.MaxKey)
}

// byInsertion presents a Fragment keyed and summarized for the
// insertion-position secondary index rather than the primary,
// id-ordered fragment tree.
type byInsertion Fragment

func (f byInsertion) Summary() InsertionSummary {
	return InsertionSummary{MaxKey: f.Key(), Count: 1}
}

func (f byInsertion) Key() InsertionKey {
	return InsertionKey{ID: f.InsertionID, Offset: f.InsertionOffset}
}
