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
package sumtree

// Tuple2 composes two dimensions over the same summary into one,
// tracking both simultaneously in a single cursor pass — e.g. a
// buffer seeks by byte offset while reporting row/column, or resolves
// a fragment id to its byte position, without a second traversal.
//
// Go methods cannot introduce type parameters beyond their receiver's,
// so there is no way to write a single cursor.summary::<Target>()
// call that picks a dimension after the fact the way the original
// implementation does; tupling the dimensions the cursor needs up
// front, as here, is the idiomatic substitute.
type Tuple2[S any, A Dimension[A, S], B Dimension[B, S]] struct {
	A A
	B B
}

func (t Tuple2[S, A, B]) AddSummary(s S) Tuple2[S, A, B] {
	return Tuple2[S, A, B]{A: t.A.AddSummary(s), B: t.B.AddSummary(s)}
}

// FirstTarget adapts a SeekTarget over A into one over Tuple2[S,A,B],
// comparing only the first component — used when a caller has a
// target for A but no corresponding value for B (e.g. seeking by
// fragment id while merely wanting to recover the matching offset).
type FirstTarget[S any, A Dimension[A, S], B Dimension[B, S]] struct {
	Target SeekTarget[A]
}

func (f FirstTarget[S, A, B]) CompareTo(d Tuple2[S, A, B]) int {
	return f.Target.CompareTo(d.A)
}
