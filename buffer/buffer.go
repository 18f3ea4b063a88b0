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
	"errors"
	"sort"

	"github.com/zed-industries/zed-sub044/clock"
	"github.com/zed-industries/zed-sub044/sumtree"
)

// ErrInvalidEdit is returned by Edit when the requested ranges are not
// disjoint and ascending; no mutation occurs in that case.
var ErrInvalidEdit = errors.New("buffer: edit ranges overlap or are unordered")

// Buffer is a single replica's view of a collaboratively edited text:
// the fragment sum-tree plus everything needed to apply local and
// remote operations against it and converge deterministically with
// every other replica that has applied the same operation set.
type Buffer struct {
	clock *clock.Clock

	fragments      sumtree.Tree[Fragment, FragmentSummary]
	byInsertionIdx sumtree.Tree[byInsertion, InsertionSummary]
	insertions     *insertions
	undoMap        map[clock.Lamport]uint32

	// deferredOps holds remote operations received before their
	// dependencies were observed, in arrival order; re-scanned after
	// every successful
	// apply (see DESIGN.md for the bound policy chosen here).
	deferredOps []Operation
}

// New returns an empty buffer owned by the given local replica.
func New(replica clock.ReplicaID) *Buffer {
	return &Buffer{
		clock:      clock.NewClock(replica),
		insertions: newInsertions(),
		undoMap:    make(map[clock.Lamport]uint32),
	}
}

// NewFromText seeds a buffer with base text as a single insertion at
// Lamport{0,0} (replica 0 is reserved for the server/base text), the
// shape a client constructs from a JoinBuffer reply's base_text.
func NewFromText(replica clock.ReplicaID, text []byte) *Buffer {
	b := New(replica)
	if len(text) == 0 {
		return b
	}
	base := clock.Lamport{Replica: 0, Counter: 0}
	b.insertions.record(base, text)
	frag := Fragment{
		ID:              Between(nil, nil, 0),
		InsertionID:     base,
		InsertionOffset: 0,
		Text:            text,
		Visible:         true,
	}
	b.setFragments([]Fragment{frag})
	b.clock.Observe(base)
	return b
}

// Replica returns the replica this buffer's local clock ticks for.
func (b *Buffer) Replica() clock.ReplicaID { return b.clock.Replica() }

// Version returns the buffer's current causal version.
func (b *Buffer) Version() clock.Global { return b.clock.Global() }

func (b *Buffer) setFragments(frags []Fragment) {
	b.fragments = sumtree.FromItems[Fragment, FragmentSummary](frags)
	byIns := make([]byInsertion, len(frags))
	for i, f := range frags {
		byIns[i] = byInsertion(f)
	}
	sort.Slice(byIns, func(i, j int) bool { return byIns[i].Key().Less(byIns[j].Key()) })
	b.byInsertionIdx = sumtree.FromItems[byInsertion, InsertionSummary](byIns)
}

// Text returns the buffer's full visible text.
func (b *Buffer) Text() []byte {
	var out []byte
	for _, f := range b.fragments.Items() {
		if f.Visible {
			out = append(out, f.Text...)
		}
	}
	return out
}

// TextForRange returns the visible text in [start, end) visible-byte
// offsets. It walks fragment-by-fragment from the seek point rather
// than reusing Tree.Slice, since Slice only cuts at fragment
// boundaries and a requested range routinely starts or ends partway
// through one.
func (b *Buffer) TextForRange(start, end int) []byte {
	if end <= start {
		return nil
	}
	cur := sumtree.NewCursor[Fragment, FragmentSummary, Offset](b.fragments)
	cur.Seek(Offset(start), sumtree.Left)
	var out []byte
	for {
		f, ok := cur.Item()
		if !ok {
			break
		}
		pos := int(cur.Position())
		if pos >= end {
			break
		}
		if f.Visible {
			lo, hi := 0, len(f.Text)
			if pos < start {
				lo = start - pos
			}
			if fEnd := pos + len(f.Text); fEnd > end {
				hi = end - pos
			}
			if lo < hi {
				out = append(out, f.Text[lo:hi]...)
			}
		}
		cur.Next()
	}
	return out
}

// Len returns the buffer's visible byte length.
func (b *Buffer) Len() int {
	return b.fragments.Summary().VisibleBytes
}

// MaxLineLen reports the longest visible line's byte length and the
// display-column width of the longest line (East Asian wide/
// fullwidth runes counting double), the max_line_len query of
// spec.md §4.3 in both its raw-byte and display-width forms.
func (b *Buffer) MaxLineLen() (bytes int, columns int) {
	s := b.fragments.Summary()
	return s.MaxLineLen, s.MaxLineWidth
}

// AnchorBefore returns an anchor at offset that sticks to the
// character before it when a concurrent insertion lands exactly here.
func (b *Buffer) AnchorBefore(offset int) Anchor { return b.anchorAt(offset, sumtree.Left) }

// AnchorAfter returns an anchor at offset that sticks to the
// character after it when a concurrent insertion lands exactly here.
func (b *Buffer) AnchorAfter(offset int) Anchor { return b.anchorAt(offset, sumtree.Right) }

func (b *Buffer) anchorAt(offset int, bias sumtree.Bias) Anchor {
	cur := sumtree.NewCursor[Fragment, FragmentSummary, Offset](b.fragments)
	cur.Seek(Offset(offset), bias)
	f, ok := cur.Item()
	if !ok {
		if last, ok2 := b.fragments.Last(); ok2 {
			return Anchor{InsertionID: last.InsertionID, InsertionOffset: last.InsertionOffset + len(last.Text), Bias: bias}
		}
		return Anchor{Bias: bias}
	}
	pos := cur.Position()
	within := offset - int(pos)
	return Anchor{InsertionID: f.InsertionID, InsertionOffset: f.InsertionOffset + within, Bias: bias}
}

// Resolve maps an anchor back to its current visible byte offset.
func (b *Buffer) Resolve(a Anchor) (int, bool) {
	d, ok := SummaryForAnchor[Offset](b, a)
	return int(d), ok
}

// SummaryForAnchor resolves an anchor to any dimension D over the
// fragment tree in a single cursor seek, by first locating the
// anchor's full-buffer offset (stable across tombstones) and then
// tupling FullOffset with D so one pass yields both.
func SummaryForAnchor[D sumtree.Dimension[D, FragmentSummary]](b *Buffer, a Anchor) (D, bool) {
	var zero D
	full, ok := b.resolveAnchorToFullOffset(a)
	if !ok {
		return zero, false
	}
	cur := sumtree.NewCursor[Fragment, FragmentSummary, sumtree.Tuple2[FragmentSummary, FullOffset, D]](b.fragments)
	cur.Seek(sumtree.FirstTarget[FragmentSummary, FullOffset, D]{Target: full}, sumtree.Right)
	pos := cur.Position()
	if f, ok := cur.Item(); ok {
		// Add the part of the fragment that lies before the anchor.
		if within := int(full - pos.A); within > 0 && within <= len(f.Text) {
			part := f
			part.Text = f.Text[:within]
			return pos.B.AddSummary(part.Summary()), true
		}
	}
	return pos.B, true
}

// resolveAnchorToFullOffset finds the fragment an anchor names via
// the insertion-coordinate secondary index, then locates that
// fragment's starting FullOffset in the primary (id-ordered) tree via
// the FragmentIDPos dimension, both in O(log n).
func (b *Buffer) resolveAnchorToFullOffset(a Anchor) (FullOffset, bool) {
	frag, within, ok := b.fragmentForAnchor(a)
	if !ok {
		return 0, false
	}
	cur := sumtree.NewCursor[Fragment, FragmentSummary, sumtree.Tuple2[FragmentSummary, FragmentIDPos, FullOffset]](b.fragments)
	cur.Seek(sumtree.FirstTarget[FragmentSummary, FragmentIDPos, FullOffset]{Target: frag.ID}, sumtree.Right)
	return cur.Position().B + FullOffset(within), true
}

func (b *Buffer) fragmentForAnchor(a Anchor) (Fragment, int, bool) {
	if b.byInsertionIdx.IsEmpty() {
		return Fragment{}, 0, false
	}
	cur := sumtree.NewCursor[byInsertion, InsertionSummary, InsertionPos](b.byInsertionIdx)
	cur.Seek(InsertionKey{ID: a.InsertionID, Offset: a.InsertionOffset}, sumtree.Left)
	cur.Prev()
	item, ok := cur.Item()
	if !ok {
		return Fragment{}, 0, false
	}
	frag := Fragment(item)
	if !frag.InsertionID.Equal(a.InsertionID) {
		return Fragment{}, 0, false
	}
	within := a.InsertionOffset - frag.InsertionOffset
	if a.Bias == sumtree.Right && within == len(frag.Text) {
		cur.Next()
		if nf, ok2 := cur.Item(); ok2 {
			nfrag := Fragment(nf)
			if nfrag.InsertionID.Equal(a.InsertionID) && nfrag.InsertionOffset == a.InsertionOffset {
				return nfrag, 0, true
			}
		}
	}
	return frag, within, true
}
