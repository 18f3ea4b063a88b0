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

// Tree is a persistent, summary-indexed B+-tree of items T with
// monoid summary S. The zero value is an empty tree.
//
// Trees are immutable: every operation that "mutates" returns a new
// Tree value. Append and FromItems rebuild the affected spine from a
// flat item slice rather than splicing at a node boundary — a
// deliberate simplification documented in DESIGN.md (the cursor API
// above it, which is what package buffer actually depends on,
// keeps the full O(log n) seek/iterate contract; only the *build*
// path trades node-boundary splicing for "flatten, re-chunk").
type Tree[T Item[S], S Summary[S]] struct {
	root *node[T, S]
}

// New returns an empty tree.
func New[T Item[S], S Summary[S]]() Tree[T, S] {
	return Tree[T, S]{}
}

// FromItems builds a balanced tree directly from a slice of items, in
// O(n).
func FromItems[T Item[S], S Summary[S]](items []T) Tree[T, S] {
	if len(items) == 0 {
		return Tree[T, S]{}
	}
	level := buildLeaves[T, S](items)
	for len(level) > 1 {
		level = buildInternals[T, S](level)
	}
	return Tree[T, S]{root: level[0]}
}

func buildLeaves[T Item[S], S Summary[S]](items []T) []*node[T, S] {
	sizes := chunkSizes(len(items), TreeBase, maxChildren)
	out := make([]*node[T, S], 0, len(sizes))
	idx := 0
	for _, sz := range sizes {
		out = append(out, newLeaf[T, S](items[idx:idx+sz:idx+sz]))
		idx += sz
	}
	return out
}

func buildInternals[T Item[S], S Summary[S]](children []*node[T, S]) []*node[T, S] {
	sizes := chunkSizes(len(children), TreeBase, maxChildren)
	out := make([]*node[T, S], 0, len(sizes))
	idx := 0
	for _, sz := range sizes {
		out = append(out, newInternal[T, S](children[idx:idx+sz:idx+sz]))
		idx += sz
	}
	return out
}

// Summary returns the tree's aggregate summary in O(1).
func (t Tree[T, S]) Summary() S {
	if t.root == nil {
		var zero S
		return zero
	}
	return t.root.summary
}

// IsEmpty reports whether the tree holds zero items.
func (t Tree[T, S]) IsEmpty() bool {
	return t.root == nil
}

// Len returns the number of items in the tree in O(1).
func (t Tree[T, S]) Len() int {
	if t.root == nil {
		return 0
	}
	return t.root.count
}

// Items flattens the tree into a slice, in O(n). Used internally by
// Append/Edit; exported because callers occasionally need a plain
// slice (e.g. for a debug dump or a one-shot export).
func (t Tree[T, S]) Items() []T {
	out := make([]T, 0, t.Len())
	collectItems(t.root, &out)
	return out
}

func collectItems[T Item[S], S Summary[S]](n *node[T, S], out *[]T) {
	if n == nil {
		return
	}
	if n.leaf {
		*out = append(*out, n.items...)
		return
	}
	for _, c := range n.children {
		collectItems(c, out)
	}
}

// First returns the tree's first item, if any.
func (t Tree[T, S]) First() (T, bool) {
	var zero T
	n := t.root
	if n == nil {
		return zero, false
	}
	for !n.leaf {
		n = n.children[0]
	}
	if len(n.items) == 0 {
		return zero, false
	}
	return n.items[0], true
}

// Last returns the tree's last item, if any.
func (t Tree[T, S]) Last() (T, bool) {
	var zero T
	n := t.root
	if n == nil {
		return zero, false
	}
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	if len(n.items) == 0 {
		return zero, false
	}
	return n.items[len(n.items)-1], true
}

// Push appends a single item, returning the new tree.
func (t Tree[T, S]) Push(item T) Tree[T, S] {
	return t.Append(FromItems[T, S]([]T{item}))
}

// Append concatenates t and other in order: other.Append is O(n) in
// the combined size (see the type doc's note on the build
// simplification), but satisfies the monoid law
// a.Append(b).Summary() == a.Summary().Add(b.Summary()) exactly, which
// is what every caller (buffer rebuild, chat ingestion) actually
// relies on.
func (t Tree[T, S]) Append(other Tree[T, S]) Tree[T, S] {
	if t.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return t
	}
	items := t.Items()
	items = append(items, other.Items()...)
	return FromItems[T, S](items)
}

