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

import "sort"

// EditOp is one step of a batch Edit: either insert a new item or
// remove the item with the given key, against a tree keyed by
// KeyedItem.
type EditOp[T any, K Ordered[K]] struct {
	Insert    *T
	RemoveKey *K
}

// Edit applies a batch of inserts/removes to a tree whose items are
// keyed and kept in ascending key order, returning the updated tree.
// It is implemented as flatten-sort-merge rather than node-level
// splicing, matching the same build-path simplification as
// Tree.Append (see its doc comment and DESIGN.md).
func Edit[T interface {
	Item[S]
	KeyedItem[K]
}, S Summary[S], K Ordered[K]](t Tree[T, S], edits []EditOp[T, K]) Tree[T, S] {
	items := t.Items()

	type op struct {
		remove bool
		key    K
		item   T
	}
	ops := make([]op, 0, len(edits))
	for _, e := range edits {
		switch {
		case e.Insert != nil:
			ops = append(ops, op{remove: false, item: *e.Insert, key: (*e.Insert).Key()})
		case e.RemoveKey != nil:
			ops = append(ops, op{remove: true, key: *e.RemoveKey})
		}
	}

	removeKeys := make([]K, 0, len(ops))
	for _, o := range ops {
		if o.remove {
			removeKeys = append(removeKeys, o.key)
		}
	}

	kept := items[:0:0]
	for _, it := range items {
		k := it.Key()
		skip := false
		for _, rk := range removeKeys {
			if !k.Less(rk) && !rk.Less(k) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, it)
		}
	}

	for _, o := range ops {
		if o.remove {
			continue
		}
		idx := sort.Search(len(kept), func(i int) bool {
			return o.key.Less(kept[i].Key())
		})
		kept = append(kept, o.item) // grow by one
		copy(kept[idx+1:], kept[idx:])
		kept[idx] = o.item
	}

	return FromItems[T, S](kept)
}

// Insert returns edits that insert the given items, for callers that
// only ever add.
func Insert[T any, K Ordered[K]](items ...T) []EditOp[T, K] {
	out := make([]EditOp[T, K], len(items))
	for i := range items {
		v := items[i]
		out[i] = EditOp[T, K]{Insert: &v}
	}
	return out
}

// Remove returns edits that remove the items with the given keys.
func Remove[T any, K Ordered[K]](keys ...K) []EditOp[T, K] {
	out := make([]EditOp[T, K], len(keys))
	for i := range keys {
		k := keys[i]
		out[i] = EditOp[T, K]{RemoveKey: &k}
	}
	return out
}
