package simulation

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
)

const testDt = 1.0 / 60

func newTestWorld(t testing.TB, mutate func(c *Config)) *World {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	w, err := NewWorld(cfg, nil, 42)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func TestNewWorld(t *testing.T) {
	w, err := NewWorld(nil, nil, 1)
	if err != nil {
		t.Fatalf("NewWorld(nil) = %v", err)
	}
	if w.Len() != 0 || w.IndexKind() != IndexHash {
		t.Errorf("NewWorld(nil) should be empty and use the hash index, got %d boids and %s", w.Len(), w.IndexKind())
	}

	cfg := DefaultConfig()
	cfg.SpatialHashSize = 0
	if _, err := NewWorld(cfg, nil, 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewWorld(invalid) = %v; want ErrInvalidConfig", err)
	}
}

func TestWorld_SpawnInsideSpawnRange(t *testing.T) {
	w := newTestWorld(t, nil)
	cfg := w.Config()

	ids := w.Spawn(200)
	if len(ids) != 200 || w.Len() != 200 {
		t.Fatalf("Spawn(200) returned %d ids, world has %d boids", len(ids), w.Len())
	}
	for _, a := range w.Agents() {
		if !cfg.SpawnRange.ContainsClosed(a.Pos) {
			t.Errorf("boid %d spawned at %v, outside %v", a.ID, a.Pos, cfg.SpawnRange)
		}
		if math.Abs(a.Vel.X) > cfg.MaxSpeed || math.Abs(a.Vel.Y) > cfg.MaxSpeed {
			t.Errorf("boid %d spawned with velocity %v, beyond ±%g", a.ID, a.Vel, cfg.MaxSpeed)
		}
		if a.Color != a.InitialColor {
			t.Errorf("boid %d should start with its initial colour", a.ID)
		}
	}

	if got := w.Spawn(0); got != nil {
		t.Errorf("Spawn(0) = %v; want nil", got)
	}
}

func TestWorld_IDsAreNeverReused(t *testing.T) {
	w := newTestWorld(t, nil)

	if got := w.Spawn(3); !slices.Equal(got, []uint64{1, 2, 3}) {
		t.Fatalf("Spawn(3) = %v; want [1 2 3]", got)
	}
	if n := w.Despawn(2, 99); n != 1 {
		t.Errorf("Despawn(2, 99) = %d; want 1", n)
	}
	if _, ok := w.Agent(2); ok {
		t.Error("boid 2 is still alive after Despawn")
	}
	if got := w.Spawn(1); !slices.Equal(got, []uint64{4}) {
		t.Errorf("Spawn(1) after a despawn = %v; want [4]", got)
	}
	if n := w.DespawnAll(); n != 3 {
		t.Errorf("DespawnAll() = %d; want 3", n)
	}
	if got := w.SpawnAt(geometry.Vector2D{X: 500, Y: 400}, geometry.Zero); got != 5 {
		t.Errorf("SpawnAt after DespawnAll = %d; want 5", got)
	}
}

func TestWorld_StepSkipsInvalidDurations(t *testing.T) {
	w := newTestWorld(t, nil)
	w.Spawn(20)
	before := w.Agents()

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		stats := w.Step(dt, nil)
		if !stats.Skipped {
			t.Errorf("Step(%g) ran; want it skipped", dt)
		}
		if stats.Tick != 0 {
			t.Errorf("Step(%g) counted a tick", dt)
		}
	}
	if !slices.Equal(before, w.Agents()) {
		t.Error("skipped ticks moved boids")
	}
}

func TestWorld_StepStats(t *testing.T) {
	w := newTestWorld(t, nil)
	w.Spawn(50)
	w.SpawnAt(geometry.Vector2D{X: -5000, Y: -5000}, geometry.Vector2D{X: 1, Y: 1})

	stats := w.Step(testDt, nil)
	if stats.Skipped || stats.Tick != 1 {
		t.Fatalf("Step = %+v; want tick 1", stats)
	}
	if stats.Agents != 51 {
		t.Errorf("Agents = %d; want 51", stats.Agents)
	}
	if stats.Indexed != 50 {
		t.Errorf("Indexed = %d; want 50, the boid outside the index region is left out", stats.Indexed)
	}
	if stats.Candidates < 50 {
		t.Errorf("Candidates = %d; every indexed boid at least finds itself", stats.Candidates)
	}
	if w.Stats() != stats {
		t.Errorf("Stats() = %+v; want %+v", w.Stats(), stats)
	}
}

func TestWorld_StepMatchesBruteForce(t *testing.T) {
	for _, kind := range []IndexKind{IndexHash, IndexQuadtree} {
		t.Run(string(kind), func(t *testing.T) {
			w := newTestWorld(t, func(c *Config) { c.Index = kind })
			w.Spawn(300)
			s := w.Config().Settings()

			for range 5 {
				before := w.Agents()
				all := make([]behavior.Boid, len(before))
				for i, a := range before {
					all[i] = a.Boid
				}

				w.Step(testDt, nil)

				for i, a := range w.Agents() {
					want := behavior.Advance(all[i], all, s, testDt)
					if a.ID != want.ID || !a.Pos.Eq(want.Pos) || !a.Vel.Eq(want.Vel) {
						t.Fatalf("boid %d = %+v; brute force gives %+v", a.ID, a.Boid, want)
					}
				}
			}
		})
	}
}

func TestWorld_WorkersDoNotChangeTheResult(t *testing.T) {
	run := func(workers int) []Agent {
		w := newTestWorld(t, func(c *Config) { c.Workers = workers })
		w.Spawn(500)
		for range 20 {
			w.Step(testDt, nil)
		}
		return w.Agents()
	}

	single := run(1)
	for _, workers := range []int{0, 3, 8} {
		if got := run(workers); !slices.Equal(single, got) {
			t.Errorf("%d workers give a different flock than a single one", workers)
		}
	}
}

func TestWorld_SameSeedSameFlock(t *testing.T) {
	a := newTestWorld(t, nil)
	b := newTestWorld(t, nil)
	a.Spawn(100)
	b.Spawn(100)
	for range 10 {
		a.Step(testDt, nil)
		b.Step(testDt, nil)
	}
	if !slices.Equal(a.Agents(), b.Agents()) {
		t.Error("two worlds with the same seed diverged")
	}
}

func TestWorld_SpeedsStayInBounds(t *testing.T) {
	w := newTestWorld(t, func(c *Config) { c.Workers = 4 })
	w.Spawn(200)
	cfg := w.Config()

	for tick := range 200 {
		w.Step(testDt, nil)
		for _, a := range w.Agents() {
			speed := a.Vel.Len()
			if speed > cfg.MaxSpeed+geometry.Epsilon || speed < cfg.MinSpeed-geometry.Epsilon {
				t.Fatalf("tick %d: boid %d moves at %g, outside [%g, %g]", tick, a.ID, speed, cfg.MinSpeed, cfg.MaxSpeed)
			}
		}
	}
}

func TestWorld_SelectHighlightsNeighbors(t *testing.T) {
	w := newTestWorld(t, nil)
	first := w.SpawnAt(geometry.Vector2D{X: 500, Y: 400}, geometry.Vector2D{X: 10})
	near := w.SpawnAt(geometry.Vector2D{X: 550, Y: 400}, geometry.Vector2D{X: 10})
	w.SpawnAt(geometry.Vector2D{X: 700, Y: 400}, geometry.Vector2D{X: 10})

	if w.Select(99) {
		t.Error("Select(99) = true for an unknown boid")
	}
	if !w.Select(first) {
		t.Fatal("Select(first) = false")
	}
	if got := w.Highlighted(); len(got) != 0 {
		t.Errorf("Highlighted() before any tick = %v; want none", got)
	}

	w.Step(testDt, nil)
	if got := w.Highlighted(); !slices.Equal(got, []uint64{near}) {
		t.Errorf("Highlighted() = %v; want [%d]", got, near)
	}
	snap := w.Snapshot()
	if snap.Selected != first || !snap.IsHighlighted(near) || snap.IsHighlighted(first) {
		t.Errorf("Snapshot selection = %d, highlighted %v", snap.Selected, snap.Highlighted)
	}

	w.Despawn(first)
	if _, ok := w.Selected(); ok {
		t.Error("despawning the selected boid should clear the selection")
	}
	if got := w.Highlighted(); len(got) != 0 {
		t.Errorf("Highlighted() after despawn = %v; want none", got)
	}
}

func TestWorld_ColorSampling(t *testing.T) {
	w := newTestWorld(t, func(c *Config) {
		c.ColorSampleRate = 1
		c.ColorScheme = SchemePastel
	})
	w.Spawn(30)
	w.Step(testDt, nil)

	cfg := w.Config()
	for _, a := range w.Agents() {
		if want := SchemeColor(cfg.ColorScheme, a.InitialColor, a.Vel, cfg.MaxSpeed); a.Color != want {
			t.Errorf("boid %d colour = %v; want %v", a.ID, a.Color, want)
		}
	}

	cfg.ColorScheme = SchemeInitial
	w.Step(testDt, cfg)
	for _, a := range w.Agents() {
		if a.Color != a.InitialColor {
			t.Errorf("boid %d should be back to its initial colour", a.ID)
		}
	}
}

func TestWorld_SetConfig(t *testing.T) {
	w := newTestWorld(t, nil)
	w.Spawn(100)

	cfg := w.Config()
	cfg.Index = IndexQuadtree
	cfg.MaxSpeed = 80
	if err := w.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if w.IndexKind() != IndexQuadtree {
		t.Errorf("IndexKind() = %s; want %s", w.IndexKind(), IndexQuadtree)
	}
	w.Step(testDt, nil)
	if len(w.CellBounds()) == 0 {
		t.Error("quadtree has no cells after a tick")
	}

	bad := w.Config()
	bad.MinSpeed = 1000
	if err := w.SetConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("SetConfig(invalid) = %v; want ErrInvalidConfig", err)
	}
	if got := w.Config(); got.MinSpeed == 1000 || got.MaxSpeed != 80 {
		t.Errorf("invalid config replaced the active one: %+v", got)
	}

	// an invalid config given to Step is ignored but the tick still runs
	if stats := w.Step(testDt, bad); stats.Skipped || w.Config().MinSpeed == 1000 {
		t.Errorf("Step with an invalid config = %+v, active minSpeed %g", stats, w.Config().MinSpeed)
	}

	// Config returns a copy
	w.Config().MaxSpeed = 1
	if w.Config().MaxSpeed != 80 {
		t.Error("mutating the result of Config() changed the world")
	}
}

func TestWorld_Snapshot(t *testing.T) {
	w := newTestWorld(t, nil)
	w.Spawn(10)
	w.Step(testDt, nil)

	snap := w.Snapshot()
	if len(snap.Agents) != 10 || snap.Stats.Tick != 1 {
		t.Fatalf("Snapshot has %d boids at tick %d", len(snap.Agents), snap.Stats.Tick)
	}
	if snap.Cells != nil {
		t.Error("Snapshot should not carry cells unless the index is rendered")
	}

	snap.Agents[0].Pos = geometry.Vector2D{X: -1, Y: -1}
	if a, _ := w.Agent(snap.Agents[0].ID); a.Pos == snap.Agents[0].Pos {
		t.Error("Snapshot shares its agents with the world")
	}

	cfg := w.Config()
	cfg.RenderIndex = true
	w.Step(testDt, cfg)
	if snap := w.Snapshot(); len(snap.Cells) == 0 || !snap.Config.RenderIndex {
		t.Error("Snapshot should carry the index cells when they are rendered")
	}
}

func benchmarkStep(b *testing.B, kind IndexKind, workers int) {
	w := newTestWorld(b, func(c *Config) {
		c.Index = kind
		c.Workers = workers
	})
	w.Spawn(2000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(testDt, nil)
	}
}

func BenchmarkWorld_StepHash(b *testing.B)        { benchmarkStep(b, IndexHash, 1) }
func BenchmarkWorld_StepQuadtree(b *testing.B)    { benchmarkStep(b, IndexQuadtree, 1) }
func BenchmarkWorld_StepHashWorkers(b *testing.B) { benchmarkStep(b, IndexHash, 4) }
