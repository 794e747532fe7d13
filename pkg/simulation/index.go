package simulation

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids/pkg/spatial"
)

// neighbor is what the index stores for every boid: its position plus the
// boid itself, so the flocking rule reads id and velocity straight from it.
type neighbor = spatial.Item[behavior.Boid]

// NeighborIndex answers "which boids may be within radius of p" for one tick.
// Rebuild is a single-writer phase; QueryInto may then run concurrently.
type NeighborIndex interface {
	// Rebuild replaces the content of the index and reports how many boids were indexed.
	Rebuild(boids []behavior.Boid) int
	// QueryInto appends to dst a superset of the indexed boids within radius of p.
	QueryInto(p geometry.Vector2D, radius float64, dst []neighbor) []neighbor
	// CellBounds returns the cells worth drawing.
	CellBounds() []geometry.Rect
	Kind() IndexKind
}

// indexSpec holds the configuration fields an index is built from; a change
// in any of them means building a new index.
type indexSpec struct {
	kind     IndexKind
	region   geometry.Rect
	cellSize float64
	capacity int
}

func specOf(cfg *Config) indexSpec {
	return indexSpec{
		kind:     cfg.Index,
		region:   cfg.IndexRegion,
		cellSize: cfg.SpatialHashSize,
		capacity: cfg.QuadtreeCapacity,
	}
}

func newIndex(spec indexSpec) (NeighborIndex, error) {
	switch spec.kind {
	case IndexHash:
		grid, err := spatial.NewHashGrid[behavior.Boid](spec.region, spec.cellSize)
		if err != nil {
			return nil, err
		}
		return &hashIndex{grid: grid}, nil
	case IndexQuadtree:
		if !spec.region.IsValid() {
			return nil, fmt.Errorf("%w: quadtree region %s has no area", ErrInvalidConfig, spec.region)
		}
		return &quadtreeIndex{tree: spatial.NewQuadtree[behavior.Boid](spec.region, spec.capacity)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown index %q", ErrInvalidConfig, spec.kind)
	}
}

type hashIndex struct {
	grid  *spatial.HashGrid[behavior.Boid]
	items []neighbor
}

func (h *hashIndex) Rebuild(boids []behavior.Boid) int {
	h.items = h.items[:0]
	for _, b := range boids {
		h.items = append(h.items, neighbor{Point: b.Pos, Value: b})
	}
	return h.grid.Rebuild(h.items)
}

func (h *hashIndex) QueryInto(p geometry.Vector2D, radius float64, dst []neighbor) []neighbor {
	return h.grid.QueryInto(p, radius, dst)
}

func (h *hashIndex) CellBounds() []geometry.Rect { return h.grid.CellBounds() }
func (h *hashIndex) Kind() IndexKind             { return IndexHash }

type quadtreeIndex struct {
	tree *spatial.Quadtree[behavior.Boid]
}

func (q *quadtreeIndex) Rebuild(boids []behavior.Boid) int {
	q.tree.Clear()
	for _, b := range boids {
		q.tree.Insert(b.Pos, b)
	}
	return q.tree.Count()
}

// QueryInto searches the square of half side radius around p, which holds
// the whole disk of that radius.
func (q *quadtreeIndex) QueryInto(p geometry.Vector2D, radius float64, dst []neighbor) []neighbor {
	return q.tree.QueryInto(geometry.RectAround(p, radius), dst)
}

func (q *quadtreeIndex) CellBounds() []geometry.Rect { return q.tree.Bounds() }
func (q *quadtreeIndex) Kind() IndexKind             { return IndexQuadtree }
