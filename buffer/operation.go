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

import "github.com/zed-industries/zed-sub044/clock"

// AnchorRange is a half-open [Start, End) range expressed in anchor
// coordinates, so it remains meaningful to a remote peer whose
// fragment tree may be split differently than the sender's (raw full
// offsets are only stable within a single replica's own fragment
// tree, since tombstone counts can differ by how many deletes each
// replica has observed).
type AnchorRange struct {
	Start Anchor
	End   Anchor
}

// EditOperation is the committed, replicable form of a buffer edit: a
// batch of disjoint anchor ranges replaced by parallel new text,
// named by the Lamport timestamp that produced it and carrying the
// causal version the issuing replica had observed.
type EditOperation struct {
	Timestamp clock.Lamport
	Version   clock.Global
	Ranges    []AnchorRange
	NewText   [][]byte
}

func (EditOperation) isOperation() {}

// UndoOperation increments the undo counter on a set of prior
// operations; net visibility is derived from the resulting counts,
// not a boolean flag, so concurrent undo/redo of the same edit
// converges instead of racing.
type UndoOperation struct {
	Timestamp clock.Lamport
	Version   clock.Global
	Counts    map[clock.Lamport]uint32
}

func (UndoOperation) isOperation() {}

// Operation is the tagged sum type carried over the wire and through
// the operation log: exactly one of EditOperation or UndoOperation.
type Operation interface {
	isOperation()
}
