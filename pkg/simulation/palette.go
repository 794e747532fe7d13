package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lucasb-eyer/go-colorful"
)

var highlightColor = colorful.Color{R: 1, G: 1, B: 1}

// randomColor picks the colour a boid keeps as its initial one.
func randomColor(rng *rand.Rand) colorful.Color {
	return colorful.Color{R: rng.Float64(), G: rng.Float64(), B: rng.Float64()}
}

// SchemeColor derives the colour of a boid moving at vel under the given scheme.
// Components are the velocity axes relative to maxSpeed, clamped to a valid colour.
func SchemeColor(scheme ColorScheme, initial colorful.Color, vel geometry.Vector2D, maxSpeed float64) colorful.Color {
	if scheme == SchemeInitial || !(maxSpeed > 0) {
		return initial
	}

	r := math.Abs(vel.X) / maxSpeed
	g := math.Abs(vel.Y) / maxSpeed
	var c colorful.Color
	switch scheme {
	case SchemeSynthwave:
		c = colorful.Color{R: r, G: g, B: 1}
	case SchemePastel:
		c = colorful.Color{R: r, G: g, B: 1 - r - g}
	case SchemePrimary:
		// only the positive direction of each axis lights its channel
		r = (vel.X + math.Abs(vel.X)) / maxSpeed
		g = (vel.Y + math.Abs(vel.Y)) / maxSpeed
		c = colorful.Color{R: r, G: g, B: 1 - r - g}
	default:
		return initial
	}
	return c.Clamped()
}

// Highlight mixes c towards white, used for the neighbors of the selected boid.
func Highlight(c colorful.Color) colorful.Color {
	return c.BlendLab(highlightColor, 0.6).Clamped()
}
