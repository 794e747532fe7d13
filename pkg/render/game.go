// Package render shows a running flock in an ebiten window, with a panel to
// tune the simulation while it runs.
package render

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-boids/pkg/ui"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/proto"
)

// pickDistance is how far from a boid a click still selects it, in pixels.
const pickDistance = 20

var (
	cellColor      = color.RGBA{R: 80, G: 80, B: 90, A: 255}
	visibleColor   = color.RGBA{R: 50, G: 100, B: 255, A: 60}
	protectedColor = color.RGBA{R: 255, G: 50, B: 50, A: 80}
	boundsColor    = color.RGBA{R: 60, G: 140, B: 60, A: 255}
)

type Game struct {
	ctx        context.Context
	logger     golog.Logger
	worldPID   *actor.PID
	snapshotCh chan *simulation.Snapshot
	lastState  *simulation.Snapshot

	// UI Controls
	panel *ui.UIPanel

	// cfg is edited in place by the panel; dirty means the world has not seen it yet.
	cfg   *simulation.Config
	dirty bool

	// Batched boid triangles, reused every frame
	whiteImage *ebiten.Image
	vertices   []ebiten.Vertex
	indices    []uint16

	// Timing instrumentation
	lastUpdateDuration time.Duration
	lastDrawDuration   time.Duration
	updateAvg          float64 // Rolling average in ms
	drawAvg            float64 // Rolling average in ms
}

// NewGame spawns the world actor in system and builds the control panel.
func NewGame(ctx context.Context, cfg *simulation.Config, system actor.ActorSystem, seed uint64) (*Game, error) {
	// Buffer to avoid blocking the world
	snapshotCh := make(chan *simulation.Snapshot, 10)

	worldPID, err := system.Spawn(ctx, "world", simulation.NewWorldActor(cfg, seed, snapshotCh))
	if err != nil {
		return nil, fmt.Errorf("failed to spawn world: %w", err)
	}

	whiteImage := ebiten.NewImage(3, 3)
	whiteImage.Fill(color.White)

	g := &Game{
		ctx:        ctx,
		logger:     system.Logger(),
		worldPID:   worldPID,
		snapshotCh: snapshotCh,
		lastState:  &simulation.Snapshot{Config: *cfg}, // Avoid nil pointer
		cfg:        cfg.Clone(),
		whiteImage: whiteImage,
	}
	g.buildPanel()
	return g, nil
}

func (g *Game) buildPanel() {
	g.panel = ui.NewUIPanel(10, 10, 280, g.cfg.WorldHeight-20)
	cfg := g.cfg

	g.panel.AddSection("Boids Flocking")
	g.bindSlider("Visible Range", 10, 300, &cfg.VisibleRange)
	g.bindSlider("Protected Range", 1, 100, &cfg.ProtectedRange)
	g.bindSlider("Centering Factor", 0, 0.01, &cfg.CenteringFactor)
	g.bindSlider("Avoid Factor", 0, 0.2, &cfg.AvoidFactor)
	g.bindSlider("Matching Factor", 0, 0.2, &cfg.MatchingFactor)
	g.bindSlider("Turn Factor", 0, 5, &cfg.TurnFactor)
	g.panel.EndSection()

	g.panel.AddSection("Speed")
	g.bindSlider("Max Speed", 10, 500, &cfg.MaxSpeed)
	g.bindSlider("Min Speed", 0, 200, &cfg.MinSpeed)
	g.panel.EndSection()

	g.panel.AddSection("Neighbor Index")
	kinds := []string{string(simulation.IndexHash), string(simulation.IndexQuadtree)}
	index := g.panel.AddRadio("Index", kinds, slices.Index(kinds, string(cfg.Index)))
	index.OnSelect = func(_ int, kind string) {
		cfg.Index = simulation.IndexKind(kind)
		g.dirty = true
	}
	g.bindSlider("Cell Size", 10, 200, &cfg.SpatialHashSize)
	g.bindIntSlider("Quadtree Capacity", 1, 32, &cfg.QuadtreeCapacity)
	g.bindIntSlider("Workers", 1, 16, &cfg.Workers)
	g.panel.EndSection()

	g.panel.AddSection("Visualization")
	g.bindCheckbox("Render Index", &cfg.RenderIndex)
	g.bindCheckbox("Render Protected Range", &cfg.RenderProtectedRange)
	g.bindCheckbox("Render Visible Range", &cfg.RenderVisibleRange)
	g.bindSlider("Color Sample Rate", 0, 1, &cfg.ColorSampleRate)
	schemes := make([]string, len(simulation.ColorSchemes))
	for i, s := range simulation.ColorSchemes {
		schemes[i] = string(s)
	}
	scheme := g.panel.AddRadio("Color Scheme", schemes, slices.Index(schemes, string(cfg.ColorScheme)))
	scheme.OnSelect = func(_ int, s string) {
		cfg.ColorScheme = simulation.ColorScheme(s)
		g.dirty = true
	}
	g.panel.EndSection()

	g.panel.AddSection("Population")
	g.panel.AddButton("Spawn 100", func() { g.tell(simulation.SpawnMessage(100)) })
	g.panel.AddButton("Despawn all", func() { g.tell(simulation.DespawnAllMessage()) })
	g.panel.AddButton("Clear selection", func() { g.tell(simulation.SelectMessage(0)) })
	g.panel.EndSection()
}

func (g *Game) bindSlider(label string, min, max float64, field *float64) {
	s := g.panel.AddSlider(label, min, max, *field)
	s.OnChange = func(v float64) {
		*field = v
		g.dirty = true
	}
}

func (g *Game) bindIntSlider(label string, min, max float64, field *int) {
	s := g.panel.AddSlider(label, min, max, float64(*field))
	s.OnChange = func(v float64) {
		if n := int(math.Round(v)); n != *field {
			*field = n
			g.dirty = true
		}
	}
}

func (g *Game) bindCheckbox(label string, field *bool) {
	c := g.panel.AddCheckbox(label, *field)
	c.OnToggle = func(v bool) {
		*field = v
		g.dirty = true
	}
}

func (g *Game) tell(msg proto.Message) {
	if err := actor.Tell(g.ctx, g.worldPID, msg); err != nil {
		g.logger.Warnf("failed to send %T to the world: %v", msg, err)
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.lastUpdateDuration = time.Since(start)
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(g.lastUpdateDuration.Microseconds())/1000.0*0.05
	}()

	// 1. Update UI Panel
	g.panel.Update()

	// 2. Keep only the latest snapshot
drain:
	for {
		select {
		case snap := <-g.snapshotCh:
			g.lastState = snap
		default:
			break drain
		}
	}

	// 3. Send the edited configuration once
	if g.dirty {
		msg, err := simulation.ConfigMessage(g.cfg)
		if err != nil {
			return err
		}
		g.tell(msg)
		g.dirty = false
	}

	// 4. A click on the world selects the nearest boid, or clears the selection
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		if !g.panel.Contains(float64(mx), float64(my)) {
			id, _ := nearestAgent(g.lastState.Agents, geometry.Vector2D{X: float64(mx), Y: float64(my)}, pickDistance)
			g.tell(simulation.SelectMessage(id))
		}
	}

	// 5. Trigger Simulation Step, one tick lasts one update
	tps := ebiten.TPS()
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	g.tell(simulation.TickMessage(time.Second / time.Duration(tps)))
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.lastDrawDuration = time.Since(start)
		g.drawAvg = g.drawAvg*0.95 + float64(g.lastDrawDuration.Microseconds())/1000.0*0.05
	}()

	snap := g.lastState
	cfg := &snap.Config

	// 1. Index cells and the steering bounds
	for _, c := range snap.Cells {
		vector.StrokeRect(screen, float32(c.Min.X), float32(c.Min.Y), float32(c.Width()), float32(c.Height()), 1, cellColor, false)
	}
	if cfg.Bounds.IsValid() {
		b := cfg.Bounds
		vector.StrokeRect(screen, float32(b.Min.X), float32(b.Min.Y), float32(b.Width()), float32(b.Height()), 1, boundsColor, false)
	}

	// 2. Range gizmos
	if cfg.RenderVisibleRange || cfg.RenderProtectedRange {
		for i := range snap.Agents {
			p := snap.Agents[i].Pos
			if cfg.RenderVisibleRange {
				vector.StrokeCircle(screen, float32(p.X), float32(p.Y), float32(cfg.VisibleRange), 1, visibleColor, true)
			}
			if cfg.RenderProtectedRange {
				vector.StrokeCircle(screen, float32(p.X), float32(p.Y), float32(cfg.ProtectedRange), 1, protectedColor, true)
			}
		}
	}

	// 3. All boids, batched
	g.drawBoids(screen, snap)

	// 4. Draw UI Panel
	g.panel.Draw(screen)

	// Display performance stats (right side to avoid overlap with panel)
	stats := snap.Stats
	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\nBoids:   %d\nIndexed: %d\nIndex:   %s\nTick:    %s\n\nUpdate: %.2fms\nDraw:   %.2fms",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		stats.Agents,
		stats.Indexed,
		cfg.Index,
		stats.Duration.Round(time.Microsecond),
		g.updateAvg,
		g.drawAvg)
	if snap.Selected != 0 {
		msg += fmt.Sprintf("\n\nSelected: %d\nNeighbors: %d", snap.Selected, len(snap.Highlighted))
	}
	ebitenutil.DebugPrintAt(screen, msg, screen.Bounds().Dx()-170, 10)
}

func (g *Game) drawBoids(screen *ebiten.Image, snap *simulation.Snapshot) {
	op := &ebiten.DrawTrianglesOptions{}
	for batch := range slices.Chunk(snap.Agents, maxBatchBoids) {
		g.vertices, g.indices = g.vertices[:0], g.indices[:0]
		for i := range batch {
			a := &batch[i]
			g.vertices, g.indices = appendBoid(g.vertices, g.indices, a.Pos, a.Vel, agentColor(snap, a))
		}
		screen.DrawTriangles(g.vertices, g.indices, g.whiteImage, op)
	}
}

func (g *Game) Layout(w, h int) (int, int) { return int(g.cfg.WorldWidth), int(g.cfg.WorldHeight) }
