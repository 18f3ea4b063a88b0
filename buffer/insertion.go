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

// insertions is the append-only store of original inserted text,
// keyed by the Lamport time of the edit that produced it. Fragments
// never copy this text; they reference a (insertionID, offset, len)
// slice of it, so the same bytes are never duplicated when a region
// is later split by an overlapping edit.
type insertions struct {
	byID map[clock.Lamport][]byte
}

func newInsertions() *insertions {
	return &insertions{byID: make(map[clock.Lamport][]byte)}
}

func (ins *insertions) record(id clock.Lamport, text []byte) {
	ins.byID[id] = text
}

func (ins *insertions) textAt(id clock.Lamport, offset, length int) []byte {
	full := ins.byID[id]
	if offset < 0 || offset+length > len(full) {
		return nil
	}
	return full[offset : offset+length]
}

func (ins *insertions) has(id clock.Lamport) bool {
	_, ok := ins.byID[id]
	return ok
}
