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

// Package buffer implements the collaborative text buffer: a
// fragment-based operational CRDT backed by the sumtree package.
// Concurrent inserts and deletes converge deterministically because
// every fragment carries a dense id that totally orders it against
// every other fragment regardless of arrival order.
package buffer

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/zed-industries/zed-sub044/clock"
)

const maxDigitPos = ^uint64(0)

// idDigit is one component of a dense fragment locator: a position
// value that orders it against sibling digits at the same depth, with
// the allocating replica as a deterministic tie-break.
type idDigit struct {
	pos     uint64
	replica clock.ReplicaID
}

// FragmentID is a Logoot-style dense locator: a variable-length
// sequence of digits, ordered lexicographically, dense in the sense
// that a new id can always be constructed strictly between any two
// distinct ids (see Between). Depth grows only where concurrent
// inserts repeatedly contend for the same gap; see DESIGN.md for the
// bound/compaction trade-off this implies.
type FragmentID []idDigit

// Compare returns -1, 0, or 1 as a orders before, at, or after b.
func (a FragmentID) Compare(b FragmentID) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case a[i].pos < b[i].pos:
			return -1
		case a[i].pos > b[i].pos:
			return 1
		case a[i].replica < b[i].replica:
			return -1
		case a[i].replica > b[i].replica:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (a FragmentID) Less(b FragmentID) bool { return a.Compare(b) < 0 }

// Between constructs a FragmentID strictly greater than prev and
// strictly less than next, tie-breaking by replica whenever two
// concurrent allocations land on the same digit. prev == nil means
// "no lower bound" (insert at the very start); next == nil means "no
// upper bound" (insert at the very end).
func Between(prev, next FragmentID, replica clock.ReplicaID) FragmentID {
	var out FragmentID
	i := 0
	for {
		prevPos, prevHas := uint64(0), i < len(prev)
		if prevHas {
			prevPos = prev[i].pos
		}
		nextPos, nextHas := maxDigitPos, i < len(next)
		if nextHas {
			nextPos = next[i].pos
		}
		if nextPos > prevPos+1 {
			mid := prevPos + (nextPos-prevPos)/2
			out = append(out, idDigit{pos: mid, replica: replica})
			return out
		}
		// No room at this depth: carry the bounding digit forward and
		// open a new, deeper level where there is always room (pos
		// grows unboundedly, so depth+1 always has a free interval).
		if prevHas {
			out = append(out, prev[i])
		} else {
			out = append(out, idDigit{pos: 0, replica: replica})
		}
		i++
	}
}

// FragmentSummary is the fragment sum-tree's monoid summary: it
// tallies both the visible text (what readers see) and the full text
// (including tombstones, needed to resolve anchors and translate
// remote insertion-relative coordinates to local tree positions).
type FragmentSummary struct {
	VisibleBytes int
	FullBytes    int
	Newlines     int
	MaxLineLen   int
	// MaxLineLenRow is which row (0-based, within this subtree's visible
	// text) achieves MaxLineLen — used to report the overall longest
	// line without a second pass.
	MaxLineLenRow int
	// LastLineBytes is the visible-byte length of the text since the
	// last newline in this span (the whole span's length if it has no
	// newline). Combined with Newlines this lets Point.AddSummary
	// derive the exact trailing column without rescanning text.
	LastLineBytes int
	// MaxLineWidth is the display-column width (East Asian wide/
	// fullwidth runes count double) of the longest line seen, the
	// width-aware sibling of MaxLineLen used by the max_line_len query
	// when a caller wants terminal/editor column width rather than raw
	// byte count.
	MaxLineWidth int
	Count        int // number of fragments, for the Count dimension
	// MaxID is the largest FragmentID seen in this subtree. Since the
	// primary fragment tree is kept in id order, this is always the id
	// of the rightmost fragment summarized — which is exactly the
	// "running max" a Dimension needs to support seeking a fragment by
	// id (mirroring the chat log's {max_id, count} summary).
	MaxID FragmentID
}

func (s FragmentSummary) Add(other FragmentSummary) FragmentSummary {
	maxLen := s.MaxLineLen
	maxRow := s.MaxLineLenRow
	if other.MaxLineLen > maxLen {
		maxLen = other.MaxLineLen
		maxRow = s.Newlines + other.MaxLineLenRow
	}
	maxWidth := s.MaxLineWidth
	if other.MaxLineWidth > maxWidth {
		maxWidth = other.MaxLineWidth
	}
	lastLine := other.LastLineBytes
	if other.Newlines == 0 {
		lastLine = s.LastLineBytes + other.LastLineBytes
	}
	maxID := s.MaxID
	if other.Count > 0 {
		maxID = other.MaxID
	}
	return FragmentSummary{
		VisibleBytes:  s.VisibleBytes + other.VisibleBytes,
		FullBytes:     s.FullBytes + other.FullBytes,
		Newlines:      s.Newlines + other.Newlines,
		MaxLineLen:    maxLen,
		MaxLineLenRow: maxRow,
		MaxLineWidth:  maxWidth,
		LastLineBytes: lastLine,
		Count:         s.Count + other.Count,
		MaxID:         maxID,
	}
}

func (s FragmentSummary) ItemCount() int { return s.Count }

// Fragment is a contiguous slice of some insertion's text: the
// atomic, immutable unit of the fragment sum-tree. Fragments are
// never deleted, only tombstoned — deletions is a set of Lamport
// times of undoable delete operations currently hiding it, and
// Visible derives from deletions plus the undo map (see
// recomputeVisible in edit.go).
type Fragment struct {
	ID              FragmentID
	InsertionID     clock.Lamport
	InsertionOffset int
	Text            []byte // this fragment's slice of its insertion's payload
	Visible         bool
	Deletions       []clock.Lamport // Lamport times of deletes currently hiding this fragment
}

func (f Fragment) Summary() FragmentSummary {
	full := len(f.Text)
	s := FragmentSummary{FullBytes: full, Count: 1, MaxID: f.ID}
	if f.Visible {
		s.VisibleBytes = full
		s.Newlines = bytes.Count(f.Text, []byte{'\n'})
		s.MaxLineLen, s.MaxLineLenRow = longestLine(f.Text)
		s.MaxLineWidth = longestLineWidth(f.Text)
		if last := bytes.LastIndexByte(f.Text, '\n'); last >= 0 {
			s.LastLineBytes = full - last - 1
		} else {
			s.LastLineBytes = full
		}
	}
	return s
}

func (f Fragment) Key() FragmentID { return f.ID }

// longestLine returns the byte length of the longest line in text and
// the (0-based) row it occurs on, counting only newlines within text
// itself (the caller's Add combines rows across fragment boundaries).
func longestLine(text []byte) (maxLen, maxRow int) {
	lineStart := 0
	row := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if l := i - lineStart; l > maxLen {
				maxLen = l
				maxRow = row
			}
			lineStart = i + 1
			row++
		}
	}
	return maxLen, maxRow
}

// longestLineWidth returns the display-column width of the longest
// line in text, treating East Asian wide and fullwidth runes
// (golang.org/x/text/width) as two columns and everything else as
// one — the terminal/editor-column analogue of longestLine's raw
// byte count.
func longestLineWidth(text []byte) int {
	maxW := 0
	lineW := 0
	for len(text) > 0 {
		r, size := utf8.DecodeRune(text)
		if r == '\n' {
			lineW = 0
			text = text[size:]
			continue
		}
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			lineW += 2
		default:
			lineW++
		}
		if lineW > maxW {
			maxW = lineW
		}
		text = text[size:]
	}
	return maxW
}

// --- Dimensions over FragmentSummary ---

// Offset is the cumulative visible-byte position.
type Offset int

func (o Offset) AddSummary(s FragmentSummary) Offset { return o + Offset(s.VisibleBytes) }

func (o Offset) CompareTo(other Offset) int {
	switch {
	case o < other:
		return -1
	case o > other:
		return 1
	default:
		return 0
	}
}

// FullOffset is the cumulative byte position including tombstones; it
// is the dimension anchors resolve against, since an anchor must
// remain addressable even while its fragment is (possibly
// transiently) invisible.
type FullOffset int

func (o FullOffset) AddSummary(s FragmentSummary) FullOffset { return o + FullOffset(s.FullBytes) }

func (o FullOffset) CompareTo(other FullOffset) int {
	switch {
	case o < other:
		return -1
	case o > other:
		return 1
	default:
		return 0
	}
}

// Point is a (row, column) position in the visible text.
type Point struct {
	Row    int
	Column int
}

func (p Point) AddSummary(s FragmentSummary) Point {
	if s.Newlines == 0 {
		return Point{Row: p.Row, Column: p.Column + s.LastLineBytes}
	}
	return Point{Row: p.Row + s.Newlines, Column: s.LastLineBytes}
}

func (p Point) CompareTo(other Point) int {
	switch {
	case p.Row != other.Row:
		if p.Row < other.Row {
			return -1
		}
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	default:
		return 0
	}
}

// FragmentCount is the plain item-count dimension over the fragment
// tree, used to page through fragments positionally.
type FragmentCount int

func (c FragmentCount) AddSummary(s FragmentSummary) FragmentCount { return c + FragmentCount(s.Count) }

func (c FragmentCount) CompareTo(other FragmentCount) int {
	switch {
	case c < other:
		return -1
	case c > other:
		return 1
	default:
		return 0
	}
}

// FragmentIDPos is the running-maximum-id dimension: seeking it with a
// FragmentID target (as a SeekTarget) locates that exact fragment in
// O(log n), which is how resolveID-to-FullOffset lookups avoid a
// linear scan despite not carrying offset info in the id itself.
type FragmentIDPos FragmentID

func (d FragmentIDPos) AddSummary(s FragmentSummary) FragmentIDPos {
	if s.Count == 0 {
		return d
	}
	return FragmentIDPos(s.MaxID)
}

func (id FragmentID) CompareTo(d FragmentIDPos) int {
	return id.Compare(FragmentID(d))
}
