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

// Cursor walks a Tree in item order while tracking a cumulative
// Dimension value D. It is the primary read API: buffer offsets,
// point (row/column) positions, fragment ids and insertion keys are
// all just different D's over the same
// underlying tree machinery — callers pick D by instantiating
// NewCursor with the dimension type they need.
//
// A Cursor holds an explicit stack of frames, one per level from the
// root down to the current leaf. Each frame's base is the dimension
// value accumulated by everything before that frame's node — fixed
// for the frame's lifetime — so the current position is always
// recoverable as stack[top].base.AddSummary(prefixSummary(node, index))
// without ever subtracting a value back out of D. Summary is only
// guaranteed to be an associative monoid, not a group, so there is no
// general way to undo an Add; every method below only ever moves
// forward through a node's children and recomputes from base instead
// of decrementing a running total.
type Cursor[T Item[S], S Summary[S], D Dimension[D, S]] struct {
	tree  Tree[T, S]
	stack []stackEntry[T, S, D]
	atEnd bool
}

type stackEntry[T Item[S], S Summary[S], D Dimension[D, S]] struct {
	n     *node[T, S]
	index int
	base  D
}

// NewCursor returns a cursor over t tracking dimension D, positioned
// before the first item until Start, End, or Seek is called.
func NewCursor[T Item[S], S Summary[S], D Dimension[D, S]](t Tree[T, S]) *Cursor[T, S, D] {
	return &Cursor[T, S, D]{tree: t}
}

func (c *Cursor[T, S, D]) reset() {
	c.stack = c.stack[:0]
	c.atEnd = false
}

// Start resets the cursor to its first item, position zero.
func (c *Cursor[T, S, D]) Start() {
	c.reset()
	c.descendLeft(c.tree.root, zeroDim[D]())
}

// descendLeft pushes frames from n down to its leftmost leaf,
// positioned at index 0 in every frame; base is carried through
// unchanged since descending to index 0 adds nothing.
func (c *Cursor[T, S, D]) descendLeft(n *node[T, S], base D) {
	for n != nil {
		c.stack = append(c.stack, stackEntry[T, S, D]{n: n, index: 0, base: base})
		if n.leaf {
			return
		}
		n = n.children[0]
	}
}

// descendRight pushes frames from n down to its rightmost leaf, each
// frame positioned at its last valid index, with base set to the
// cumulative value before that child/item at each level.
func (c *Cursor[T, S, D]) descendRight(n *node[T, S], base D) {
	for n != nil {
		var idx int
		if n.leaf {
			idx = len(n.items) - 1
		} else {
			idx = len(n.children) - 1
		}
		if idx < 0 {
			idx = 0
		}
		frameBase := base.AddSummary(prefixSummary(n, idx))
		c.stack = append(c.stack, stackEntry[T, S, D]{n: n, index: idx, base: base})
		if n.leaf {
			return
		}
		n = n.children[idx]
		base = frameBase
	}
}

// End resets the cursor to just past the last item.
func (c *Cursor[T, S, D]) End() {
	c.reset()
	if c.tree.root == nil {
		c.atEnd = true
		return
	}
	c.descendRight(c.tree.root, zeroDim[D]())
	top := &c.stack[len(c.stack)-1]
	top.index = len(top.n.items)
	c.atEnd = true
}

// Position returns the cumulative dimension value at the cursor's
// current location.
func (c *Cursor[T, S, D]) Position() D {
	if len(c.stack) == 0 {
		// Only reached for an empty tree, where every position is zero.
		return zeroDim[D]()
	}
	top := c.stack[len(c.stack)-1]
	return top.base.AddSummary(prefixSummary(top.n, top.index))
}

// Item returns the item at the cursor's current position, if any.
func (c *Cursor[T, S, D]) Item() (T, bool) {
	var zero T
	if c.atEnd || len(c.stack) == 0 {
		return zero, false
	}
	top := c.stack[len(c.stack)-1]
	if top.index >= len(top.n.items) {
		return zero, false
	}
	return top.n.items[top.index], true
}

// Next advances the cursor by one item.
func (c *Cursor[T, S, D]) Next() {
	if c.atEnd {
		return
	}
	if len(c.stack) == 0 {
		c.Start()
		return
	}
	top := &c.stack[len(c.stack)-1]
	top.index++
	if top.index < len(top.n.items) {
		return
	}
	// Leaf exhausted: ascend until a frame has a next sibling to descend into.
	for {
		c.stack = c.stack[:len(c.stack)-1]
		if len(c.stack) == 0 {
			c.atEnd = true
			return
		}
		parent := &c.stack[len(c.stack)-1]
		parent.index++
		if parent.index < len(parent.n.children) {
			childBase := parent.base.AddSummary(prefixSummary(parent.n, parent.index))
			c.descendLeft(parent.n.children[parent.index], childBase)
			return
		}
	}
}

// Prev moves the cursor back by one item.
func (c *Cursor[T, S, D]) Prev() {
	if c.atEnd {
		if c.tree.root == nil {
			return
		}
		c.reset()
		c.descendRight(c.tree.root, zeroDim[D]())
		return
	}
	if len(c.stack) == 0 {
		return
	}
	top := &c.stack[len(c.stack)-1]
	if top.index > 0 {
		top.index--
		return
	}
	for {
		c.stack = c.stack[:len(c.stack)-1]
		if len(c.stack) == 0 {
			return
		}
		parent := &c.stack[len(c.stack)-1]
		if parent.index > 0 {
			parent.index--
			childBase := parent.base.AddSummary(prefixSummary(parent.n, parent.index))
			c.descendRight(parent.n.children[parent.index], childBase)
			return
		}
	}
}

// Seek positions the cursor at the first item whose cumulative
// position compares >= target under bias Right, or > target under
// bias Left, always via a fresh top-down descent from the root. This
// trades the original implementation's incremental "resume from
// wherever the cursor already is" seek for a simpler, always-correct
// O(log n) descent; see DESIGN.md.
func (c *Cursor[T, S, D]) Seek(target SeekTarget[D], bias Bias) bool {
	c.reset()
	if c.tree.root == nil {
		c.atEnd = true
		return false
	}
	n := c.tree.root
	base := zeroDim[D]()
	for {
		if n.leaf {
			idx := 0
			for idx < len(n.items) {
				pos := base.AddSummary(prefixSummary(n, idx+1))
				if target.CompareTo(pos) < 0 || (bias == Right && target.CompareTo(pos) == 0) {
					break
				}
				idx++
			}
			c.stack = append(c.stack, stackEntry[T, S, D]{n: n, index: idx, base: base})
			if idx >= len(n.items) {
				c.atEnd = true
				return false
			}
			return true
		}

		idx := 0
		for idx < len(n.children)-1 {
			pos := base.AddSummary(prefixSummary(n, idx+1))
			if target.CompareTo(pos) < 0 || (bias == Right && target.CompareTo(pos) == 0) {
				break
			}
			idx++
		}
		childBase := base.AddSummary(prefixSummary(n, idx))
		c.stack = append(c.stack, stackEntry[T, S, D]{n: n, index: idx, base: base})
		n = n.children[idx]
		base = childBase
	}
}

// itemIndex returns the flat item-slice index the cursor currently
// sits at (the number of items strictly before the cursor), used by
// Slice and Suffix to cut tree.Items().
func (c *Cursor[T, S, D]) itemIndex() int {
	if len(c.stack) == 0 {
		if c.atEnd {
			return c.tree.Len()
		}
		return 0
	}
	idx := 0
	for _, frame := range c.stack {
		idx += prefixCount(frame.n, frame.index)
	}
	return idx
}

// Slice seeks to target and returns the subtree of items from the
// cursor's position before the call up to (excluding) the new
// position.
func (c *Cursor[T, S, D]) Slice(target SeekTarget[D], bias Bias) Tree[T, S] {
	startIdx := c.itemIndex()
	c.Seek(target, bias)
	endIdx := c.itemIndex()
	items := c.tree.Items()
	if startIdx > len(items) {
		startIdx = len(items)
	}
	if endIdx > len(items) {
		endIdx = len(items)
	}
	return FromItems[T, S](items[startIdx:endIdx])
}

// Suffix returns the subtree of items from the cursor's current
// position to the end of the tree, and advances the cursor to End.
func (c *Cursor[T, S, D]) Suffix() Tree[T, S] {
	startIdx := c.itemIndex()
	items := c.tree.Items()
	if startIdx > len(items) {
		startIdx = len(items)
	}
	c.End()
	return FromItems[T, S](items[startIdx:])
}
