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
	"sort"

	"github.com/zed-industries/zed-sub044/clock"
)

// ByteRange is a half-open [Start, End) range over the buffer's
// current visible text, the input coordinate system for Edit.
type ByteRange struct {
	Start, End int
}

// Edit atomically replaces each (disjoint, ascending) range with the
// parallel new text, ticking the local clock for a fresh timestamp.
// Ranges must be sorted and non-overlapping; violating that returns
// ErrInvalidEdit before any mutation (failure semantics, §4.3).
func (b *Buffer) Edit(ranges []ByteRange, texts [][]byte) (EditOperation, error) {
	if len(ranges) != len(texts) {
		return EditOperation{}, ErrInvalidEdit
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Start < ranges[i-1].End {
			return EditOperation{}, ErrInvalidEdit
		}
	}
	for _, r := range ranges {
		if r.Start > r.End || r.Start < 0 {
			return EditOperation{}, ErrInvalidEdit
		}
	}

	anchorRanges := make([]AnchorRange, len(ranges))
	for i, r := range ranges {
		anchorRanges[i] = AnchorRange{
			Start: b.AnchorBefore(r.Start),
			End:   b.AnchorAfter(r.End),
		}
	}

	version := b.Version()
	ts := b.clock.Tick()
	op := EditOperation{
		Timestamp: ts,
		Version:   version,
		Ranges:    anchorRanges,
		NewText:   texts,
	}
	b.applyEdit(op)
	return op, nil
}

// ApplyRemote applies an operation received from a peer. It is a
// no-op if this replica has already observed op's timestamp; if the
// operation depends on an insertion not yet seen, it is held in
// deferredOps and retried whenever a later apply succeeds.
func (b *Buffer) ApplyRemote(op Operation) {
	b.applyOrDefer(op)
}

func (b *Buffer) applyOrDefer(op Operation) {
	ts, deps := opIdentity(op)
	if b.Version().Observed(ts) {
		return
	}
	if !b.dependenciesObserved(deps) {
		b.deferredOps = append(b.deferredOps, op)
		return
	}
	b.applyOperation(op)
	b.drainDeferred()
}

func (b *Buffer) drainDeferred() {
	for {
		progressed := false
		remaining := b.deferredOps[:0]
		for _, op := range b.deferredOps {
			ts, deps := opIdentity(op)
			switch {
			case b.Version().Observed(ts):
				progressed = true
			case b.dependenciesObserved(deps):
				b.applyOperation(op)
				progressed = true
			default:
				remaining = append(remaining, op)
			}
		}
		b.deferredOps = remaining
		if !progressed {
			return
		}
	}
}

func opIdentity(op Operation) (clock.Lamport, clock.Global) {
	switch o := op.(type) {
	case EditOperation:
		return o.Timestamp, o.Version
	case UndoOperation:
		return o.Timestamp, o.Version
	default:
		return clock.Lamport{}, clock.NewGlobal()
	}
}

func (b *Buffer) dependenciesObserved(deps clock.Global) bool {
	return b.Version().Includes(deps)
}

func (b *Buffer) applyOperation(op Operation) {
	switch o := op.(type) {
	case EditOperation:
		b.applyEdit(o)
	case UndoOperation:
		b.applyUndo(o)
	}
	ts, _ := opIdentity(op)
	b.clock.Observe(ts)
}

// applyEdit performs the fragment-tree splice described in §4.3: for
// each anchor range (translated to this replica's current FullOffset
// coordinates), split fragments at the boundaries, tombstone the
// covered span, and splice in a fresh fragment for the new text,
// choosing its id strictly between its neighbors.
func (b *Buffer) applyEdit(op EditOperation) {
	type resolved struct {
		start, end FullOffset
		text       []byte
	}
	spans := make([]resolved, len(op.Ranges))
	for i, r := range op.Ranges {
		start, _ := b.resolveAnchorToFullOffset(r.Start)
		end, _ := b.resolveAnchorToFullOffset(r.End)
		spans[i] = resolved{start: start, end: end, text: op.NewText[i]}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	items := b.fragments.Items()
	rebuilt := make([]Fragment, 0, len(items)+len(spans))
	idx := 0
	fullPos := FullOffset(0)
	insertionOffset := 0

	for _, span := range spans {
		// 1. carry/split fragments strictly before span.start.
		for idx < len(items) {
			f := items[idx]
			fEnd := fullPos + FullOffset(len(f.Text))
			if fEnd <= span.start {
				rebuilt = append(rebuilt, f)
				fullPos = fEnd
				idx++
				continue
			}
			if fullPos >= span.start {
				break
			}
			splitAt := int(span.start - fullPos)
			var nextID FragmentID
			if idx+1 < len(items) {
				nextID = items[idx+1].ID
			}
			left, right := splitFragment(f, splitAt, Between(f.ID, nextID, op.Timestamp.Replica))
			rebuilt = append(rebuilt, left)
			items[idx] = right
			fullPos += FullOffset(splitAt)
			break
		}

		// 2. splice in the new fragment, if any.
		if len(span.text) > 0 {
			var prevID, nextID FragmentID
			if n := len(rebuilt); n > 0 {
				prevID = rebuilt[n-1].ID
			}
			if idx < len(items) {
				nextID = items[idx].ID
			}
			newFrag := Fragment{
				ID:              Between(prevID, nextID, op.Timestamp.Replica),
				InsertionID:     op.Timestamp,
				InsertionOffset: insertionOffset,
				Text:            span.text,
				Visible:         true,
			}
			insertionOffset += len(span.text)
			rebuilt = append(rebuilt, newFrag)
		}

		// 3. tombstone fragments through span.end.
		for idx < len(items) {
			if fullPos >= span.end {
				break
			}
			f := items[idx]
			fEnd := fullPos + FullOffset(len(f.Text))
			if fEnd <= span.end {
				f.Deletions = append(append([]clock.Lamport{}, f.Deletions...), op.Timestamp)
				f.Visible = recomputeVisible(f, b.undoMap)
				rebuilt = append(rebuilt, f)
				fullPos = fEnd
				idx++
				continue
			}
			splitAt := int(span.end - fullPos)
			var nextID FragmentID
			if idx+1 < len(items) {
				nextID = items[idx+1].ID
			}
			left, right := splitFragment(f, splitAt, Between(f.ID, nextID, op.Timestamp.Replica))
			left.Deletions = append(append([]clock.Lamport{}, left.Deletions...), op.Timestamp)
			left.Visible = recomputeVisible(left, b.undoMap)
			rebuilt = append(rebuilt, left)
			items[idx] = right
			fullPos += FullOffset(splitAt)
			break
		}
	}
	for ; idx < len(items); idx++ {
		rebuilt = append(rebuilt, items[idx])
	}

	b.setFragments(rebuilt)
	if len(op.NewText) > 0 {
		total := 0
		for _, t := range op.NewText {
			total += len(t)
		}
		full := make([]byte, 0, total)
		for _, t := range op.NewText {
			full = append(full, t...)
		}
		b.insertions.record(op.Timestamp, full)
	}
	b.clock.Observe(op.Timestamp)
}

// splitFragment divides f at byte offset at (within its full, not
// just visible, text): the left half keeps f's identity, the right
// half gets rightID, a fresh id strictly between f.ID and whatever
// follows it.
func splitFragment(f Fragment, at int, rightID FragmentID) (left, right Fragment) {
	left = f
	left.Text = f.Text[:at]

	right = f
	right.ID = rightID
	right.InsertionOffset = f.InsertionOffset + at
	right.Text = f.Text[at:]
	right.Deletions = append([]clock.Lamport(nil), f.Deletions...)

	return left, right
}

// Undo applies the given undo-counter targets: counts maps an
// operation's timestamp to the counter value that operation's
// undo/redo toggle should reach (the maximum of that and whatever is
// already recorded, so concurrent undos converge instead of racing).
func (b *Buffer) Undo(counts map[clock.Lamport]uint32) UndoOperation {
	version := b.Version()
	ts := b.clock.Tick()
	op := UndoOperation{Timestamp: ts, Version: version, Counts: counts}
	b.applyUndo(op)
	return op
}

func (b *Buffer) applyUndo(op UndoOperation) {
	for target, count := range op.Counts {
		if count > b.undoMap[target] {
			b.undoMap[target] = count
		}
	}
	items := b.fragments.Items()
	changed := false
	for i := range items {
		v := recomputeVisible(items[i], b.undoMap)
		if v != items[i].Visible {
			items[i].Visible = v
			changed = true
		}
	}
	if changed {
		b.setFragments(items)
	}
	b.clock.Observe(op.Timestamp)
}

// recomputeVisible derives a fragment's visibility from the undo map
// (spec.md §4.3): visible iff the insertion that produced it has not
// itself been undone (an odd undo count against f.InsertionID hides
// the fragment outright, spec.md §8 Scenario S3) and none of its
// deletions are currently in effect. A deletion is in effect unless
// its own undo count is odd (an even number of toggles restores the
// deletion).
func recomputeVisible(f Fragment, undoMap map[clock.Lamport]uint32) bool {
	if undoMap[f.InsertionID]%2 != 0 {
		return false
	}
	for _, d := range f.Deletions {
		if undoMap[d]%2 == 0 {
			return false
		}
	}
	return true
}
