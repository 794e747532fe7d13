package spatial

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// MaxGridCells caps the number of cells (and buckets) of a HashGrid.
const MaxGridCells = 1 << 22

// ErrInvalidGrid is returned when a HashGrid cannot be built from the given
// region and cell size.
var ErrInvalidGrid = errors.New("spatial: invalid grid")

type cellCoord struct {
	x, y int32
}

type gridEntry[T any] struct {
	cell cellCoord
	item Item[T]
}

// HashGrid is a uniform grid of square cells laid over a fixed region, with
// cells mapped onto buckets by hashing their integer coordinates.
// Unrelated cells may share a bucket; every entry remembers its true cell so
// queries never return points from a colliding cell.
//
// Insert, Rebuild and Clear are single-writer operations. Queries are
// read-only and may run concurrently once the grid is built.
type HashGrid[T any] struct {
	region   geometry.Rect
	cellSize float64
	xCells   int
	yCells   int
	buckets  [][]gridEntry[T]
	count    int
}

// NewHashGrid creates an empty grid over region with square cells of side cellSize.
// The bucket count equals the number of cells of the grid.
func NewHashGrid[T any](region geometry.Rect, cellSize float64) (*HashGrid[T], error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: cell size %g must be positive and finite", ErrInvalidGrid, cellSize)
	}
	if !region.IsValid() {
		return nil, fmt.Errorf("%w: region %s has no area", ErrInvalidGrid, region)
	}

	xCells := math.Ceil(region.Width() / cellSize)
	yCells := math.Ceil(region.Height() / cellSize)
	if xCells*yCells > MaxGridCells {
		return nil, fmt.Errorf("%w: %gx%g cells exceed the limit of %d, increase the cell size",
			ErrInvalidGrid, xCells, yCells, MaxGridCells)
	}

	g := &HashGrid[T]{
		region:   region,
		cellSize: cellSize,
		xCells:   int(xCells),
		yCells:   int(yCells),
	}
	g.buckets = make([][]gridEntry[T], g.xCells*g.yCells)
	return g, nil
}

// Region returns the area covered by the grid.
func (g *HashGrid[T]) Region() geometry.Rect { return g.region }

// CellSize returns the side of a cell.
func (g *HashGrid[T]) CellSize() float64 { return g.cellSize }

// Dims returns the number of cells on each axis.
func (g *HashGrid[T]) Dims() (int, int) { return g.xCells, g.yCells }

// BucketCount returns the number of hash buckets.
func (g *HashGrid[T]) BucketCount() int { return len(g.buckets) }

// Count returns the number of stored points.
func (g *HashGrid[T]) Count() int { return g.count }

// CellOf returns the integer cell of p, floor((p - region.Min) / cellSize).
// ok is false when p lies outside the region (min inclusive, max exclusive).
func (g *HashGrid[T]) CellOf(p geometry.Vector2D) (x, y int, ok bool) {
	if !g.region.Contains(p) {
		return 0, 0, false
	}
	x, y = g.rawCell(p)
	return g.clampX(x), g.clampY(y), true
}

func (g *HashGrid[T]) rawCell(p geometry.Vector2D) (int, int) {
	cx := math.Floor((p.X - g.region.Min.X) / g.cellSize)
	cy := math.Floor((p.Y - g.region.Min.Y) / g.cellSize)
	// saturate before converting, NaN and huge values included
	cx = math.Max(-1, math.Min(cx, float64(g.xCells)))
	cy = math.Max(-1, math.Min(cy, float64(g.yCells)))
	if math.IsNaN(cx) {
		cx = 0
	}
	if math.IsNaN(cy) {
		cy = 0
	}
	return int(cx), int(cy)
}

func (g *HashGrid[T]) clampX(x int) int { return min(max(x, 0), g.xCells-1) }
func (g *HashGrid[T]) clampY(y int) int { return min(max(y, 0), g.yCells-1) }

// bucketOf hashes a cell coordinate onto a bucket index.
func (g *HashGrid[T]) bucketOf(c cellCoord) int {
	var key [8]byte
	binary.LittleEndian.PutUint32(key[0:], uint32(c.x))
	binary.LittleEndian.PutUint32(key[4:], uint32(c.y))
	return int(xxhash.Sum64(key[:]) % uint64(len(g.buckets)))
}

// Insert stores p with its payload. Points outside the region are excluded,
// with no wraparound or clamping, and Insert returns false.
func (g *HashGrid[T]) Insert(p geometry.Vector2D, v T) bool {
	x, y, ok := g.CellOf(p)
	if !ok {
		return false
	}
	c := cellCoord{int32(x), int32(y)}
	b := g.bucketOf(c)
	g.buckets[b] = append(g.buckets[b], gridEntry[T]{cell: c, item: Item[T]{Point: p, Value: v}})
	g.count++
	return true
}

// Rebuild clears the grid and inserts every item, returning how many were indexed.
func (g *HashGrid[T]) Rebuild(items []Item[T]) int {
	g.Clear()
	for _, it := range items {
		g.Insert(it.Point, it.Value)
	}
	return g.count
}

// Clear removes every point but keeps bucket storage for the next rebuild.
func (g *HashGrid[T]) Clear() {
	for i := range g.buckets {
		clear(g.buckets[i])
		g.buckets[i] = g.buckets[i][:0]
	}
	g.count = 0
}

// RingSize returns how many cells around the center cell a query of the
// given radius examines in every direction: ceil(radius / cellSize) + 1.
func (g *HashGrid[T]) RingSize(radius float64) int {
	if !(radius > 0) {
		return 1
	}
	ring := math.Ceil(radius/g.cellSize) + 1
	return int(math.Min(ring, float64(max(g.xCells, g.yCells))))
}

// Query returns the candidate neighbors of p for the given search radius.
func (g *HashGrid[T]) Query(p geometry.Vector2D, radius float64) []Item[T] {
	return g.QueryInto(p, radius, nil)
}

// QueryInto appends to dst every point stored in the square ring of cells
// around p's cell (see RingSize), clamped to the grid. This over-fetches a
// square instead of a disk: callers filter by true distance.
// A query point outside the region starts from the nearest edge cell.
func (g *HashGrid[T]) QueryInto(p geometry.Vector2D, radius float64, dst []Item[T]) []Item[T] {
	cx, cy := g.rawCell(p)
	cx, cy = g.clampX(cx), g.clampY(cy)
	ring := g.RingSize(radius)

	minX, maxX := g.clampX(cx-ring), g.clampX(cx+ring)
	minY, maxY := g.clampY(cy-ring), g.clampY(cy+ring)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			c := cellCoord{int32(x), int32(y)}
			for _, e := range g.buckets[g.bucketOf(c)] {
				// buckets are shared by colliding cells: keep only this cell's entries
				if e.cell == c {
					dst = append(dst, e.item)
				}
			}
		}
	}
	return dst
}

// CellBounds returns the rectangle of every occupied cell, ordered by row then column.
func (g *HashGrid[T]) CellBounds() []geometry.Rect {
	seen := make(map[cellCoord]struct{})
	for _, bucket := range g.buckets {
		for _, e := range bucket {
			seen[e.cell] = struct{}{}
		}
	}

	cells := make([]cellCoord, 0, len(seen))
	for c := range seen {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b cellCoord) int {
		if a.y != b.y {
			return cmp.Compare(a.y, b.y)
		}
		return cmp.Compare(a.x, b.x)
	})

	bounds := make([]geometry.Rect, len(cells))
	for i, c := range cells {
		bounds[i] = g.cellRect(int(c.x), int(c.y))
	}
	return bounds
}

func (g *HashGrid[T]) cellRect(x, y int) geometry.Rect {
	origin := geometry.Vector2D{
		X: g.region.Min.X + float64(x)*g.cellSize,
		Y: g.region.Min.Y + float64(y)*g.cellSize,
	}
	return geometry.Rect{Min: origin, Max: origin.Add(geometry.Vector2D{X: g.cellSize, Y: g.cellSize})}
}
