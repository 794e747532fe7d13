package geometry

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle given by its minimum and maximum corners.
type Rect struct {
	Min Vector2D `json:"min" toml:"min"`
	Max Vector2D `json:"max" toml:"max"`
}

// NewRect builds a Rect from two corners given in any order.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Min: Vector2D{math.Min(x0, x1), math.Min(y0, y1)},
		Max: Vector2D{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// RectAround returns the square of half side halfExtent centered on c.
func RectAround(c Vector2D, halfExtent float64) Rect {
	return Rect{
		Min: Vector2D{c.X - halfExtent, c.Y - halfExtent},
		Max: Vector2D{c.X + halfExtent, c.Y + halfExtent},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%s-%s]", r.Min, r.Max)
}

// Width returns the extent on the X axis.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the extent on the Y axis.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Size returns the extent on both axes.
func (r Rect) Size() Vector2D { return r.Max.Sub(r.Min) }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Vector2D {
	return r.Min.Add(r.Max.Sub(r.Min).Mul(0.5))
}

// IsValid reports whether the rectangle has finite corners and a strictly
// positive extent on both axes.
func (r Rect) IsValid() bool {
	return r.Min.IsFinite() && r.Max.IsFinite() && r.Max.X > r.Min.X && r.Max.Y > r.Min.Y
}

// Contains reports whether p lies in the half-open rectangle [Min, Max).
// Cells tiling a plane use it so that a point on a shared edge belongs to
// exactly one of them.
func (r Rect) Contains(p Vector2D) bool {
	return r.Min.X <= p.X && p.X < r.Max.X &&
		r.Min.Y <= p.Y && p.Y < r.Max.Y
}

// ContainsClosed reports whether p lies in the closed rectangle [Min, Max].
func (r Rect) ContainsClosed(p Vector2D) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X &&
		r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

// Intersects reports whether the closed rectangles r and o share at least one point.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && o.Min.X <= r.Max.X &&
		r.Min.Y <= o.Max.Y && o.Min.Y <= r.Max.Y
}

// Expand grows the rectangle by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		Min: Vector2D{r.Min.X - margin, r.Min.Y - margin},
		Max: Vector2D{r.Max.X + margin, r.Max.Y + margin},
	}
}

// Quadrants splits the rectangle at its midpoint into four equal parts,
// returned in NW, NE, SW, SE order (Y grows towards the north).
func (r Rect) Quadrants() [4]Rect {
	mid := r.Center()
	return [4]Rect{
		{Min: Vector2D{r.Min.X, mid.Y}, Max: Vector2D{mid.X, r.Max.Y}},
		{Min: Vector2D{mid.X, mid.Y}, Max: Vector2D{r.Max.X, r.Max.Y}},
		{Min: Vector2D{r.Min.X, r.Min.Y}, Max: Vector2D{mid.X, mid.Y}},
		{Min: Vector2D{mid.X, r.Min.Y}, Max: Vector2D{r.Max.X, mid.Y}},
	}
}
