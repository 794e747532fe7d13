package geometry

import (
	"fmt"
	"math"
)

// Epsilon is the tolerance used by approximate comparisons and by Normalize
// to decide that a vector has no direction.
const (
	Epsilon = 1e-9
)

// Vector2D represents a 2D vector or point in cartesian space.
// Fields are exported so literals like Vector2D{X: 1, Y: 2} read naturally
// and so the type decodes directly from JSON and TOML config files.
type Vector2D struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Zero is the null vector.
var Zero = Vector2D{}

// NewVector creates a new Vector2D.
func NewVector(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// String implements the fmt.Stringer interface.
func (v Vector2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// ---------------------------------------------------------------------
// Arithmetic Operations
// Value receivers everywhere: a Vector2D is two words and is never mutated
// in place, which keeps boid snapshots safe to share between goroutines.
// ---------------------------------------------------------------------

// Add adds two vectors and returns the result.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{v.X + other.X, v.Y + other.Y}
}

// Sub subtracts the other vector from the current vector.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{v.X - other.X, v.Y - other.Y}
}

// Mul scales the vector by a scalar value.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{v.X * scalar, v.Y * scalar}
}

// Floor returns the component-wise floor.
func (v Vector2D) Floor() Vector2D {
	return Vector2D{math.Floor(v.X), math.Floor(v.Y)}
}

// ---------------------------------------------------------------------
// Magnitude and Normalization
// ---------------------------------------------------------------------

// LenSqr calculates the squared magnitude of the vector.
// Cheaper than Len, use it for comparisons.
func (v Vector2D) LenSqr() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Len calculates the magnitude (length) of the vector.
func (v Vector2D) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns a unit vector in the same direction.
// A vector shorter than Epsilon has no direction and normalizes to the zero
// vector instead of NaN.
func (v Vector2D) Normalize() Vector2D {
	l := v.Len()
	if l < Epsilon {
		return Vector2D{0, 0}
	}
	return v.Mul(1 / l)
}

// WithLength returns a vector with the direction of v and the given length.
// The zero vector stays zero.
func (v Vector2D) WithLength(length float64) Vector2D {
	return v.Normalize().Mul(length)
}

// IsFinite reports whether both components are neither NaN nor infinite.
func (v Vector2D) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// ---------------------------------------------------------------------
// Geometric Utilities
// ---------------------------------------------------------------------

// DistanceTo calculates the Euclidean distance to another vector.
func (v Vector2D) DistanceTo(other Vector2D) float64 {
	return v.Sub(other).Len()
}

// DistanceSquaredTo calculates the squared Euclidean distance to another vector.
func (v Vector2D) DistanceSquaredTo(other Vector2D) float64 {
	return v.Sub(other).LenSqr()
}

// Angle returns the angle (in radians) of the vector relative to the X-axis.
// Range: [-Pi, Pi]
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Rotate rotates the vector by angle (in radians) around the origin (0,0).
func (v Vector2D) Rotate(angle float64) Vector2D {
	sinTheta, cosTheta := math.Sincos(angle)
	return Vector2D{
		X: v.X*cosTheta - v.Y*sinTheta,
		Y: v.X*sinTheta + v.Y*cosTheta,
	}
}

// Lerp linearly interpolates between v and target: v + (target - v) * t.
// t is not clamped; callers that need to stay between the two ends clamp it.
func (v Vector2D) Lerp(target Vector2D, t float64) Vector2D {
	return v.Add(target.Sub(v).Mul(t))
}

// ---------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------

// Eq checks if two vectors are approximately equal using the Epsilon constant.
func (v Vector2D) Eq(other Vector2D) bool {
	return math.Abs(v.X-other.X) <= Epsilon && math.Abs(v.Y-other.Y) <= Epsilon
}
