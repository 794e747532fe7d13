package render

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	boidNose = 6.0 // distance from the center to the tip of the triangle
	boidWing = 5.0 // distance from the center to the two back corners
	wingTilt = 2.5 // angle between the heading and each back corner, radians

	// one DrawTriangles call takes uint16 indices
	maxBatchBoids = math.MaxUint16 / 3
)

var selectedColor = colorful.Color{R: 1, G: 0.85, B: 0.1}

// agentColor is the colour an agent is drawn with in snap.
func agentColor(snap *simulation.Snapshot, a *simulation.Agent) colorful.Color {
	switch {
	case snap.Selected != 0 && a.ID == snap.Selected:
		return selectedColor
	case snap.IsHighlighted(a.ID):
		return simulation.Highlight(a.Color)
	default:
		return a.Color
	}
}

// appendBoid appends the triangle of one boid, pointing along its velocity.
// A boid at rest points to the right.
func appendBoid(vertices []ebiten.Vertex, indices []uint16, pos, vel geometry.Vector2D, c colorful.Color) ([]ebiten.Vertex, []uint16) {
	angle := vel.Angle()
	base := uint16(len(vertices))
	r, g, b := float32(c.R), float32(c.G), float32(c.B)

	for _, p := range [3]geometry.Vector2D{
		pos.Add(geometry.Vector2D{X: math.Cos(angle), Y: math.Sin(angle)}.Mul(boidNose)),
		pos.Add(geometry.Vector2D{X: math.Cos(angle + wingTilt), Y: math.Sin(angle + wingTilt)}.Mul(boidWing)),
		pos.Add(geometry.Vector2D{X: math.Cos(angle - wingTilt), Y: math.Sin(angle - wingTilt)}.Mul(boidWing)),
	} {
		vertices = append(vertices, ebiten.Vertex{
			DstX: float32(p.X), DstY: float32(p.Y),
			SrcX: 1, SrcY: 1,
			ColorR: r, ColorG: g, ColorB: b, ColorA: 1,
		})
	}
	return vertices, append(indices, base, base+1, base+2)
}

// nearestAgent returns the agent closest to p within maxDist.
func nearestAgent(agents []simulation.Agent, p geometry.Vector2D, maxDist float64) (uint64, bool) {
	var (
		best   uint64
		found  bool
		bestSq = maxDist * maxDist
	)
	for i := range agents {
		if d := agents[i].Pos.DistanceSquaredTo(p); d <= bestSq {
			best, bestSq, found = agents[i].ID, d, true
		}
	}
	return best, found
}
