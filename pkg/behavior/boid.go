// Package behavior implements the classic boids flocking rule and the
// kinematics that turn its velocity adjustments into motion.
//
// Boids is an artificial life program, developed by Craig Reynolds in 1986,
// which simulates the flocking behaviour of birds, and related group motion.
// The name "boid" corresponds to a shortened version of "bird-oid object",
// which refers to a bird-like object. https://en.wikipedia.org/wiki/Boids
package behavior

import (
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// Mover is anything the flocking rule can reason about: an identity, a
// position and a velocity. Index payloads, snapshots and live agents all
// satisfy it.
type Mover interface {
	BoidID() uint64
	Position() geometry.Vector2D
	Velocity() geometry.Vector2D
}

// Boid represents a single entity in the flock.
type Boid struct {
	ID  uint64
	Pos geometry.Vector2D
	Vel geometry.Vector2D
}

func (b Boid) BoidID() uint64              { return b.ID }
func (b Boid) Position() geometry.Vector2D { return b.Pos }
func (b Boid) Velocity() geometry.Vector2D { return b.Vel }

// Settings controls the physics constants for one tick.
// It is a read-only snapshot: build a new one to change the rules.
type Settings struct {
	VisibleRange   float64 // alignment and cohesion radius
	ProtectedRange float64 // personal space radius

	CenteringFactor float64 // cohesion strength
	AvoidFactor     float64 // separation strength
	MatchingFactor  float64 // alignment strength
	TurnFactor      float64 // edge turning impulse

	MinSpeed float64
	MaxSpeed float64

	// Bounds is the area boids are steered back into.
	Bounds geometry.Rect
}

// QueryRadius is the distance within which a neighbor can influence a boid.
func (s Settings) QueryRadius() float64 {
	return max(s.VisibleRange, s.ProtectedRange)
}

// VelocityDelta returns the velocity adjustment that separation, alignment
// and cohesion apply to self given its candidate neighbors.
//
// Neighbors are matched against self by ID, never by position, so two boids
// sharing a coordinate still see each other. Candidates farther than both
// ranges are ignored, which lets callers pass an over-fetched index result
// as is. Every term is a sum, so the result does not depend on the order of
// neighbors.
func VelocityDelta[N Mover](self Mover, neighbors []N, s Settings) geometry.Vector2D {
	id := self.BoidID()
	pos := self.Position()
	vel := self.Velocity()

	protectedSq := s.ProtectedRange * s.ProtectedRange
	visibleSq := s.VisibleRange * s.VisibleRange

	var (
		separation geometry.Vector2D
		velSum     geometry.Vector2D
		posSum     geometry.Vector2D
		count      int
	)
	for _, other := range neighbors {
		if other.BoidID() == id {
			continue
		}
		otherPos := other.Position()
		offset := pos.Sub(otherPos)
		distSq := offset.LenSqr()

		if distSq <= protectedSq {
			separation = separation.Add(offset)
		}
		if distSq <= visibleSq {
			velSum = velSum.Add(other.Velocity())
			posSum = posSum.Add(otherPos)
			count++
		}
	}

	delta := separation.Mul(s.AvoidFactor)
	if count == 0 {
		return delta
	}

	n := float64(count)
	avgVel := velSum.Mul(1 / n)
	avgPos := posSum.Mul(1 / n)
	delta = delta.Add(avgVel.Sub(vel).Mul(s.MatchingFactor))
	delta = delta.Add(avgPos.Sub(pos).Mul(s.CenteringFactor))
	return delta
}

// Advance computes the state of self after one tick of dt seconds:
// flocking, boundary steering, speed easing and clamping, then integration.
// self is not modified.
func Advance[N Mover](self Mover, neighbors []N, s Settings, dt float64) Boid {
	vel := self.Velocity().Add(VelocityDelta(self, neighbors, s))
	vel = vel.Add(SteerInside(self.Position(), s.Bounds, s.TurnFactor))
	vel = EaseSpeed(vel, s.MaxSpeed, dt)
	vel = ClampSpeed(vel, s.MinSpeed, s.MaxSpeed)

	return Boid{
		ID:  self.BoidID(),
		Pos: Integrate(self.Position(), vel, dt),
		Vel: vel,
	}
}
