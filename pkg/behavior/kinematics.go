package behavior

import (
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

// SteerInside returns the impulse pushing pos back into bounds: a constant
// turnFactor on each axis where pos lies strictly outside, whatever the distance.
func SteerInside(pos geometry.Vector2D, bounds geometry.Rect, turnFactor float64) geometry.Vector2D {
	var impulse geometry.Vector2D
	if pos.X < bounds.Min.X {
		impulse.X += turnFactor
	}
	if pos.X > bounds.Max.X {
		impulse.X -= turnFactor
	}
	if pos.Y < bounds.Min.Y {
		impulse.Y += turnFactor
	}
	if pos.Y > bounds.Max.Y {
		impulse.Y -= turnFactor
	}
	return impulse
}

// EaseSpeed moves a velocity no faster than maxSpeed towards the same heading
// at maxSpeed, by the fraction dt clamped to [0, 1]. Faster velocities are
// returned unchanged and left to ClampSpeed.
func EaseSpeed(vel geometry.Vector2D, maxSpeed, dt float64) geometry.Vector2D {
	if vel.Len() > maxSpeed {
		return vel
	}
	t := min(max(dt, 0), 1)
	return vel.Lerp(vel.WithLength(maxSpeed), t)
}

// ClampSpeed restricts the magnitude of vel to [minSpeed, maxSpeed], keeping
// its heading. A zero velocity has no heading and stays zero.
func ClampSpeed(vel geometry.Vector2D, minSpeed, maxSpeed float64) geometry.Vector2D {
	speed := vel.Len()
	switch {
	case speed < geometry.Epsilon:
		return geometry.Zero
	case speed > maxSpeed:
		return vel.WithLength(maxSpeed)
	case speed < minSpeed:
		return vel.WithLength(minSpeed)
	}
	return vel
}

// Integrate applies one explicit Euler step.
func Integrate(pos, vel geometry.Vector2D, dt float64) geometry.Vector2D {
	return pos.Add(vel.Mul(dt))
}
