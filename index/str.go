/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

// Package index provides a static R-tree that is bulk loaded in one pass
// using the sort-tile-recursive (STR) algorithm. Entries are identified by
// their position in the slice of bounds the tree was built from, so callers
// keep their own data in a parallel slice and use the returned positions
// to look it up.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// DefaultMaxEntries is the node capacity used by New.
const DefaultMaxEntries = 16

// Tree is an immutable R-tree. It is safe for concurrent searches.
type Tree struct {
	entries    []geom.Bounds
	nodes      []node
	root       int
	size       int
	maxEntries int
}

type node struct {
	bounds geom.Bounds
	leaf   bool
	// children holds node positions for internal nodes and
	// entry positions for leaves.
	children []int
}

// New bulk loads a tree from b with the default node capacity.
// Nil and empty bounds are left out of the tree.
func New(b []*geom.Bounds) *Tree {
	return NewWithCapacity(b, DefaultMaxEntries)
}

// NewWithCapacity bulk loads a tree from b where each node holds at most
// maxEntries children. Nil and empty bounds are left out of the tree.
func NewWithCapacity(b []*geom.Bounds, maxEntries int) *Tree {
	if maxEntries < 2 {
		maxEntries = 2
	}
	t := &Tree{
		entries:    make([]geom.Bounds, len(b)),
		root:       -1,
		maxEntries: maxEntries,
	}

	items := make([]strItem, 0, len(b))
	for i, bb := range b {
		if !valid(bb) {
			continue
		}
		t.entries[i] = *bb
		items = append(items, newItem(i, *bb))
	}
	t.size = len(items)
	if len(items) == 0 {
		return t
	}

	// Pack the leaves.
	level := t.pack(items, true)
	// Pack each level above until a single root remains.
	for len(level) > 1 {
		upper := make([]strItem, len(level))
		for i, n := range level {
			upper[i] = newItem(n, t.nodes[n].bounds)
		}
		level = t.pack(upper, false)
	}
	t.root = level[0]
	return t
}

func valid(b *geom.Bounds) bool {
	if b == nil || b.Empty() {
		return false
	}
	return !math.IsNaN(b.Min.X) && !math.IsNaN(b.Min.Y) &&
		!math.IsNaN(b.Max.X) && !math.IsNaN(b.Max.Y)
}

type strItem struct {
	id     int
	bounds geom.Bounds
	cx, cy float64
}

func newItem(id int, b geom.Bounds) strItem {
	return strItem{
		id:     id,
		bounds: b,
		cx:     b.Min.X/2 + b.Max.X/2,
		cy:     b.Min.Y/2 + b.Max.Y/2,
	}
}

// pack groups items into nodes of at most t.maxEntries children and
// returns the positions of the new nodes.
func (t *Tree) pack(items []strItem, leaf bool) []int {
	m := t.maxEntries
	numNodes := (len(items) + m - 1) / m
	numSlices := int(math.Ceil(math.Sqrt(float64(numNodes))))
	sliceSize := numSlices * m

	sort.SliceStable(items, func(i, j int) bool { return items[i].cx < items[j].cx })

	out := make([]int, 0, numNodes)
	for s := 0; s < len(items); s += sliceSize {
		end := s + sliceSize
		if end > len(items) {
			end = len(items)
		}
		slice := items[s:end]
		sort.SliceStable(slice, func(i, j int) bool { return slice[i].cy < slice[j].cy })
		for c := 0; c < len(slice); c += m {
			ce := c + m
			if ce > len(slice) {
				ce = len(slice)
			}
			out = append(out, t.addNode(slice[c:ce], leaf))
		}
	}
	return out
}

func (t *Tree) addNode(items []strItem, leaf bool) int {
	n := node{
		bounds:   *geom.NewBounds(),
		leaf:     leaf,
		children: make([]int, len(items)),
	}
	for i, it := range items {
		b := it.bounds
		n.bounds.Extend(&b)
		n.children[i] = it.id
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() int { return t.size }

// Bounds returns the extent of all entries in the tree, or nil
// if the tree is empty.
func (t *Tree) Bounds() *geom.Bounds {
	if t.root < 0 {
		return nil
	}
	return t.nodes[t.root].bounds.Copy()
}

// Search calls fn with the position of every entry whose bounds
// intersect b, boundaries included. Search stops early if fn
// returns false. The order of the results is unspecified.
func (t *Tree) Search(b *geom.Bounds, fn func(id int) bool) {
	if t.root < 0 || b == nil {
		return
	}
	t.search(t.root, b, fn)
}

func (t *Tree) search(n int, b *geom.Bounds, fn func(id int) bool) bool {
	nd := &t.nodes[n]
	if !nd.bounds.Overlaps(b) {
		return true
	}
	if !nd.leaf {
		for _, c := range nd.children {
			if !t.search(c, b, fn) {
				return false
			}
		}
		return true
	}
	for _, id := range nd.children {
		if !t.entries[id].Overlaps(b) {
			continue
		}
		if !fn(id) {
			return false
		}
	}
	return true
}

// SearchIntersect returns the positions of all entries whose bounds
// intersect b, boundaries included.
func (t *Tree) SearchIntersect(b *geom.Bounds) []int {
	var out []int
	t.Search(b, func(id int) bool {
		out = append(out, id)
		return true
	})
	return out
}

// check verifies that every node's extent contains the extents of its
// children and that every entry is reachable exactly once.
func (t *Tree) check() error {
	if t.root < 0 {
		if t.size != 0 {
			return fmt.Errorf("index: empty root with %d entries", t.size)
		}
		return nil
	}
	seen := make(map[int]bool)
	var walk func(n int) error
	walk = func(n int) error {
		nd := &t.nodes[n]
		if len(nd.children) > t.maxEntries {
			return fmt.Errorf("index: node %d has %d children, max %d", n, len(nd.children), t.maxEntries)
		}
		for _, c := range nd.children {
			var cb *geom.Bounds
			if nd.leaf {
				if seen[c] {
					return fmt.Errorf("index: entry %d reachable more than once", c)
				}
				seen[c] = true
				cb = &t.entries[c]
			} else {
				cb = &t.nodes[c].bounds
			}
			if !contains(&nd.bounds, cb) {
				return fmt.Errorf("index: node %d bounds %v do not contain child %d bounds %v", n, nd.bounds, c, *cb)
			}
			if !nd.leaf {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return err
	}
	if len(seen) != t.size {
		return fmt.Errorf("index: %d entries reachable, want %d", len(seen), t.size)
	}
	return nil
}

func contains(outer, inner *geom.Bounds) bool {
	return outer.Min.X <= inner.Min.X && outer.Min.Y <= inner.Min.Y &&
		outer.Max.X >= inner.Max.X && outer.Max.Y >= inner.Max.Y
}
