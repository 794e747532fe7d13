package spatial

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

func TestNewHashGrid_Rejects(t *testing.T) {
	valid := geometry.NewRect(0, 0, 100, 100)

	tests := []struct {
		name     string
		region   geometry.Rect
		cellSize float64
	}{
		{"zero cell size", valid, 0},
		{"negative cell size", valid, -5},
		{"NaN cell size", valid, math.NaN()},
		{"infinite cell size", valid, math.Inf(1)},
		{"zero width region", geometry.Rect{Max: geometry.Vector2D{X: 0, Y: 10}}, 1},
		{"inverted region", geometry.Rect{Min: geometry.Vector2D{X: 10, Y: 10}}, 1},
		{"too many cells", geometry.NewRect(0, 0, 1e6, 1e6), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewHashGrid[int](tt.region, tt.cellSize)
			if err == nil {
				t.Fatalf("NewHashGrid(%v, %v) succeeded; want error", tt.region, tt.cellSize)
			}
			if !errors.Is(err, ErrInvalidGrid) {
				t.Errorf("error %v does not wrap ErrInvalidGrid", err)
			}
			if g != nil {
				t.Errorf("NewHashGrid returned a grid alongside the error")
			}
		})
	}
}

func TestHashGrid_Dimensions(t *testing.T) {
	g, err := NewHashGrid[int](geometry.NewRect(-100, -50, 150, 50), 30)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}
	x, y := g.Dims()
	// 250/30 -> 9 columns, 100/30 -> 4 rows
	if x != 9 || y != 4 {
		t.Errorf("Dims() = %d,%d; want 9,4", x, y)
	}
	if g.BucketCount() != x*y {
		t.Errorf("BucketCount() = %d; want %d", g.BucketCount(), x*y)
	}
}

func TestHashGrid_CellOf(t *testing.T) {
	g, err := NewHashGrid[int](geometry.NewRect(-100, -100, 100, 100), 25)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}

	tests := []struct {
		p      geometry.Vector2D
		x, y   int
		inside bool
	}{
		{geometry.Vector2D{X: -100, Y: -100}, 0, 0, true},
		{geometry.Vector2D{X: 0, Y: 0}, 4, 4, true},
		{geometry.Vector2D{X: -0.001, Y: 24.999}, 3, 4, true},
		{geometry.Vector2D{X: 99.999, Y: 99.999}, 7, 7, true},
		{geometry.Vector2D{X: 100, Y: 0}, 0, 0, false},
		{geometry.Vector2D{X: -100.001, Y: 0}, 0, 0, false},
	}
	for _, tt := range tests {
		x, y, ok := g.CellOf(tt.p)
		if ok != tt.inside || (ok && (x != tt.x || y != tt.y)) {
			t.Errorf("CellOf(%v) = %d,%d,%v; want %d,%d,%v", tt.p, x, y, ok, tt.x, tt.y, tt.inside)
		}
	}
}

func TestHashGrid_OutsideRegionIsExcluded(t *testing.T) {
	g, err := NewHashGrid[int](geometry.NewRect(0, 0, 100, 100), 10)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}

	if !g.Insert(geometry.Vector2D{X: 5, Y: 5}, 1) {
		t.Error("Insert inside the region returned false")
	}
	for _, p := range []geometry.Vector2D{{X: -1, Y: 5}, {X: 100, Y: 5}, {X: 5, Y: 250}} {
		if g.Insert(p, 2) {
			t.Errorf("Insert(%v) outside the region returned true", p)
		}
	}
	if g.Count() != 1 {
		t.Errorf("Count() = %d; want 1", g.Count())
	}

	// a query from the edge must not see a wrapped or clamped copy
	if got := g.Query(geometry.Vector2D{X: 99, Y: 5}, 5); len(got) != 0 {
		t.Errorf("Query near the right edge returned %v; want nothing", got)
	}
}

func TestHashGrid_RingSize(t *testing.T) {
	g, err := NewHashGrid[int](geometry.NewRect(0, 0, 1000, 1000), 50)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}
	tests := []struct {
		radius float64
		want   int
	}{
		{0, 1},
		{-3, 1},
		{10, 2},
		{50, 2},
		{50.1, 3},
		{100, 3},
		{1e9, 20},
	}
	for _, tt := range tests {
		if got := g.RingSize(tt.radius); got != tt.want {
			t.Errorf("RingSize(%v) = %d; want %d", tt.radius, got, tt.want)
		}
	}
}

func TestHashGrid_QueryNeverMissesNeighborsOnRingBoundary(t *testing.T) {
	const (
		cellSize = 20.0
		radius   = 45.0
	)
	g, err := NewHashGrid[int](geometry.NewRect(0, 0, 400, 400), cellSize)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}

	center := geometry.Vector2D{X: 200, Y: 200}
	g.Insert(center, 0)

	// neighbors exactly at the search radius, in every direction
	want := []int{0}
	for i := 0; i < 16; i++ {
		angle := float64(i) * math.Pi / 8
		p := center.Add(geometry.Vector2D{X: radius, Y: 0}.Rotate(angle))
		g.Insert(p, i+1)
		want = append(want, i+1)
	}
	// and a center sitting on a cell corner, with neighbors on the far side of the ring
	corner := geometry.Vector2D{X: 100, Y: 100}
	g.Insert(corner, 100)
	g.Insert(corner.Add(geometry.Vector2D{X: -radius, Y: 0}), 101)
	g.Insert(corner.Add(geometry.Vector2D{X: 0, Y: radius}), 102)

	got := values(g.Query(center, radius))
	for _, id := range want {
		if !slices.Contains(got, id) {
			t.Errorf("Query(%v, %v) missed neighbor %d", center, radius, id)
		}
	}

	got = values(g.Query(corner, radius))
	for _, id := range []int{100, 101, 102} {
		if !slices.Contains(got, id) {
			t.Errorf("Query(%v, %v) missed neighbor %d", corner, radius, id)
		}
	}
}

func TestHashGrid_QuerySoundnessRandom(t *testing.T) {
	region := geometry.NewRect(-500, -500, 500, 500)
	g, err := NewHashGrid[int](region, 37)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}

	rng := rand.New(rand.NewPCG(42, 24))
	pts := randomPoints(rng, 2000, region)
	items := make([]Item[int], len(pts))
	for i, p := range pts {
		items[i] = Item[int]{Point: p, Value: i}
	}
	if n := g.Rebuild(items); n != len(pts) {
		t.Fatalf("Rebuild indexed %d points; want %d", n, len(pts))
	}

	for _, radius := range []float64{10, 37, 80} {
		for q := 0; q < 50; q++ {
			p := pts[rng.IntN(len(pts))]
			got := g.Query(p, radius)

			seen := make(map[int]int, len(got))
			for _, it := range got {
				seen[it.Value]++
			}
			for id, n := range seen {
				if n != 1 {
					t.Fatalf("point %d returned %d times", id, n)
				}
			}
			for i, o := range pts {
				if o.DistanceTo(p) <= radius && seen[i] == 0 {
					t.Fatalf("Query(%v, %v) missed point %d at distance %v", p, radius, i, o.DistanceTo(p))
				}
			}
			// over-fetch stays within the square ring
			reach := float64(g.RingSize(radius)+1) * g.CellSize()
			for _, it := range got {
				d := it.Point.Sub(p)
				if math.Abs(d.X) > reach || math.Abs(d.Y) > reach {
					t.Fatalf("Query(%v, %v) returned point %v beyond the ring", p, radius, it.Point)
				}
			}
		}
	}
}

func TestHashGrid_ClearThenRebuild(t *testing.T) {
	region := geometry.NewRect(0, 0, 300, 300)
	g, err := NewHashGrid[int](region, 25)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}
	rng := rand.New(rand.NewPCG(5, 6))
	pts := randomPoints(rng, 400, region)
	items := make([]Item[int], len(pts))
	for i, p := range pts {
		items[i] = Item[int]{Point: p, Value: i}
	}

	g.Rebuild(items)
	q := geometry.Vector2D{X: 150, Y: 150}
	before := values(g.Query(q, 60))
	beforeCells := g.CellBounds()

	g.Clear()
	if g.Count() != 0 || len(g.Query(q, 60)) != 0 || len(g.CellBounds()) != 0 {
		t.Fatal("grid not empty after Clear")
	}

	g.Rebuild(items)
	if after := values(g.Query(q, 60)); !slices.Equal(before, after) {
		t.Errorf("query after rebuild = %d points; want %d", len(after), len(before))
	}
	if afterCells := g.CellBounds(); !slices.Equal(beforeCells, afterCells) {
		t.Errorf("CellBounds after rebuild = %d cells; want %d", len(afterCells), len(beforeCells))
	}
}

func TestHashGrid_CellBounds(t *testing.T) {
	g, err := NewHashGrid[int](geometry.NewRect(0, 0, 100, 100), 10)
	if err != nil {
		t.Fatalf("NewHashGrid: %v", err)
	}
	g.Insert(geometry.Vector2D{X: 15, Y: 5}, 1)
	g.Insert(geometry.Vector2D{X: 16, Y: 6}, 2)
	g.Insert(geometry.Vector2D{X: 3, Y: 55}, 3)

	want := []geometry.Rect{
		geometry.NewRect(10, 0, 20, 10),
		geometry.NewRect(0, 50, 10, 60),
	}
	if got := g.CellBounds(); !slices.Equal(got, want) {
		t.Errorf("CellBounds() = %v; want %v", got, want)
	}
}

func BenchmarkHashGrid_Rebuild(b *testing.B) {
	region := geometry.NewRect(0, 0, 1000, 1000)
	g, _ := NewHashGrid[int](region, 50)
	rng := rand.New(rand.NewPCG(1, 1))
	pts := randomPoints(rng, 1000, region)
	items := make([]Item[int], len(pts))
	for i, p := range pts {
		items[i] = Item[int]{Point: p, Value: i}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild(items)
	}
}

func BenchmarkHashGrid_Query(b *testing.B) {
	region := geometry.NewRect(0, 0, 1000, 1000)
	g, _ := NewHashGrid[int](region, 50)
	rng := rand.New(rand.NewPCG(1, 1))
	for i, p := range randomPoints(rng, 1000, region) {
		g.Insert(p, i)
	}
	var dst []Item[int]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dst = g.QueryInto(geometry.Vector2D{X: 500, Y: 500}, 70, dst[:0])
	}
}
