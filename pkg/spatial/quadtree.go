// Package spatial holds the neighbor-query acceleration structures used by the
// flocking simulation: a point quadtree and a uniform hashed grid.
// Both are meant to be rebuilt from scratch every tick and then queried
// concurrently; neither supports removal.
package spatial

import (
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// Item is a stored point together with its caller-defined payload.
type Item[T any] struct {
	Point geometry.Vector2D
	Value T
}

const (
	// DefaultCapacity is the number of points a quadtree cell holds before it subdivides.
	DefaultCapacity = 4
	// MaxDepth bounds subdivision. Cells at this depth keep accepting points past
	// capacity, which is what happens when many points share one coordinate.
	MaxDepth = 24

	noChild int32 = -1
)

var leafChildren = [4]int32{noChild, noChild, noChild, noChild}

type quadCell[T any] struct {
	boundary geometry.Rect
	depth    int
	items    []Item[T]
	// children are arena handles in NW, NE, SW, SE order, all noChild for a leaf.
	children [4]int32
}

func (c *quadCell[T]) isLeaf() bool {
	return c.children[0] == noChild
}

// Quadtree is a point quadtree whose cells live in a flat arena and refer to
// their children by index. The zero value is not usable, call NewQuadtree.
//
// Insert and Clear must not run concurrently with anything else; any number
// of Query calls may run in parallel once inserts are done.
type Quadtree[T any] struct {
	capacity int
	cells    []quadCell[T]
	count    int
}

// NewQuadtree creates an empty tree covering boundary. A capacity below 1 is raised to 1.
func NewQuadtree[T any](boundary geometry.Rect, capacity int) *Quadtree[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Quadtree[T]{
		capacity: capacity,
		cells:    make([]quadCell[T], 0, 16),
	}
	q.newCell(boundary, 0)
	return q
}

// Boundary returns the root rectangle.
func (q *Quadtree[T]) Boundary() geometry.Rect {
	return q.cells[0].boundary
}

// Capacity returns the per-cell threshold that triggers subdivision.
func (q *Quadtree[T]) Capacity() int {
	return q.capacity
}

// Count returns the number of stored points.
func (q *Quadtree[T]) Count() int {
	return q.count
}

// Insert stores p with its payload. A point outside the root boundary
// (min inclusive, max exclusive) is dropped and Insert returns false.
func (q *Quadtree[T]) Insert(p geometry.Vector2D, v T) bool {
	if !q.cells[0].boundary.Contains(p) {
		return false
	}

	h := int32(0)
	for {
		c := &q.cells[h]
		if len(c.items) < q.capacity || c.depth >= MaxDepth {
			c.items = append(c.items, Item[T]{Point: p, Value: v})
			q.count++
			return true
		}

		if c.isLeaf() {
			q.subdivide(h)
			// subdivide may have grown the arena
			c = &q.cells[h]
		}

		next := noChild
		for _, child := range c.children {
			if q.cells[child].boundary.Contains(p) {
				next = child
				break
			}
		}
		if next == noChild {
			// midpoint rounding left a sliver no quadrant owns
			c.items = append(c.items, Item[T]{Point: p, Value: v})
			q.count++
			return true
		}
		h = next
	}
}

func (q *Quadtree[T]) subdivide(h int32) {
	parent := q.cells[h]
	var children [4]int32
	for i, b := range parent.boundary.Quadrants() {
		children[i] = q.newCell(b, parent.depth+1)
	}
	q.cells[h].children = children
}

// newCell appends a leaf to the arena, recycling the item storage left
// behind by a previous Clear when there is some.
func (q *Quadtree[T]) newCell(b geometry.Rect, depth int) int32 {
	h := int32(len(q.cells))
	if len(q.cells) < cap(q.cells) {
		q.cells = q.cells[:h+1]
		c := &q.cells[h]
		c.boundary = b
		c.depth = depth
		c.items = c.items[:0]
		c.children = leafChildren
		return h
	}
	q.cells = append(q.cells, quadCell[T]{boundary: b, depth: depth, children: leafChildren})
	return h
}

// Query returns every stored point lying inside r, edges included.
func (q *Quadtree[T]) Query(r geometry.Rect) []Item[T] {
	return q.QueryInto(r, nil)
}

// QueryInto appends to dst every stored point lying inside r, edges included,
// and returns the extended slice. Cells whose boundary does not touch r are
// skipped along with their whole subtree.
func (q *Quadtree[T]) QueryInto(r geometry.Rect, dst []Item[T]) []Item[T] {
	var buf [4 * (MaxDepth + 1)]int32
	stack := append(buf[:0], 0)

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c := &q.cells[h]
		if !c.boundary.Intersects(r) {
			continue
		}
		for _, it := range c.items {
			if r.ContainsClosed(it.Point) {
				dst = append(dst, it)
			}
		}
		if !c.isLeaf() {
			// pushed in reverse so NW is visited first
			stack = append(stack, c.children[3], c.children[2], c.children[1], c.children[0])
		}
	}
	return dst
}

// Bounds returns the boundary of every leaf cell, for visualization.
func (q *Quadtree[T]) Bounds() []geometry.Rect {
	var bounds []geometry.Rect
	var buf [4 * (MaxDepth + 1)]int32
	stack := append(buf[:0], 0)

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c := &q.cells[h]
		if c.isLeaf() {
			bounds = append(bounds, c.boundary)
			continue
		}
		stack = append(stack, c.children[3], c.children[2], c.children[1], c.children[0])
	}
	return bounds
}

// Clear drops every point and every child, leaving an empty root leaf with
// the same boundary and capacity. Arena storage is kept for the next rebuild.
func (q *Quadtree[T]) Clear() {
	for i := range q.cells {
		clear(q.cells[i].items)
		q.cells[i].items = q.cells[i].items[:0]
	}
	q.cells = q.cells[:1]
	q.cells[0].children = leafChildren
	q.count = 0
}
