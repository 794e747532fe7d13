package simulation

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/lao-tseu-is-alive/go-boids/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-boids/pkg/geometry"
	"github.com/lucasb-eyer/go-colorful"
	golog "github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// Agent is a boid together with its presentation state.
type Agent struct {
	behavior.Boid
	Color        colorful.Color
	InitialColor colorful.Color
}

// TickStats describes what one call to World.Step did.
type TickStats struct {
	Tick       uint64        // number of ticks run so far
	Agents     int           // boids alive during the tick
	Indexed    int           // boids inside the index region
	Candidates int           // neighbor candidates returned by the index, all boids summed
	Duration   time.Duration // wall time of the tick
	Skipped    bool          // the tick was ignored because of its duration
}

// Snapshot is an independent copy of the world for presentation.
type Snapshot struct {
	Agents      []Agent
	Cells       []geometry.Rect // only filled when the config asks to render the index
	Selected    uint64          // 0 when no boid is selected
	Highlighted []uint64        // sorted
	Stats       TickStats
	Config      Config
}

// IsHighlighted reports whether id is a neighbor of the selected boid.
func (s *Snapshot) IsHighlighted(id uint64) bool {
	_, found := slices.BinarySearch(s.Highlighted, id)
	return found
}

// scratch holds the buffers one worker reuses from tick to tick.
type scratch struct {
	items     []neighbor
	neighbors []behavior.Boid
}

// World owns the flock and runs the simulation loop.
// It is not safe for concurrent use: WorldActor serializes every call.
type World struct {
	cfg    *Config
	logger golog.Logger
	rng    *rand.Rand

	agents []Agent // sorted by ID
	nextID uint64

	index NeighborIndex
	spec  indexSpec

	// buffers reused across ticks
	prev    []behavior.Boid
	next    []behavior.Boid
	scratch []scratch

	selected    uint64
	highlighted []uint64
	stats       TickStats
}

// NewWorld creates an empty world. IDs start at 1 and are never reused.
func NewWorld(cfg *Config, logger golog.Logger, seed uint64) (*World, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = golog.DiscardLogger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spec := specOf(cfg)
	index, err := newIndex(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build neighbor index: %w", err)
	}

	return &World{
		cfg:    cfg.Clone(),
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		nextID: 1,
		index:  index,
		spec:   spec,
	}, nil
}

// Config returns a copy of the active configuration.
func (w *World) Config() *Config {
	return w.cfg.Clone()
}

// SetConfig validates cfg and makes it the active configuration. The neighbor
// index is rebuilt from scratch when its kind or geometry changed. On error
// the previous configuration stays active.
func (w *World) SetConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if spec := specOf(cfg); spec != w.spec {
		index, err := newIndex(spec)
		if err != nil {
			return fmt.Errorf("failed to build neighbor index: %w", err)
		}
		w.index = index
		w.spec = spec
		w.logger.Infof("neighbor index is now %s over %s", spec.kind, spec.region)
	}
	w.cfg = cfg.Clone()
	return nil
}

// IndexKind returns the kind of the neighbor index in use.
func (w *World) IndexKind() IndexKind {
	return w.index.Kind()
}

// Spawn adds n boids at random positions inside the spawn range, with random
// velocities within [-maxSpeed, maxSpeed] on each axis. It returns their IDs.
func (w *World) Spawn(n int) []uint64 {
	if n <= 0 {
		return nil
	}

	r := w.cfg.SpawnRange
	ids := make([]uint64, 0, n)
	for range n {
		pos := geometry.Vector2D{
			X: r.Min.X + w.rng.Float64()*r.Width(),
			Y: r.Min.Y + w.rng.Float64()*r.Height(),
		}
		vel := geometry.Vector2D{
			X: (w.rng.Float64()*2 - 1) * w.cfg.MaxSpeed,
			Y: (w.rng.Float64()*2 - 1) * w.cfg.MaxSpeed,
		}
		ids = append(ids, w.SpawnAt(pos, vel))
	}
	w.logger.Infof("spawned %d boids, %d alive", n, len(w.agents))
	return ids
}

// SpawnAt adds one boid with the given state and returns its ID.
func (w *World) SpawnAt(pos, vel geometry.Vector2D) uint64 {
	c := randomColor(w.rng)
	id := w.nextID
	w.nextID++
	w.agents = append(w.agents, Agent{
		Boid:         behavior.Boid{ID: id, Pos: pos, Vel: vel},
		Color:        c,
		InitialColor: c,
	})
	return id
}

// Despawn removes the boids with the given IDs and reports how many existed.
func (w *World) Despawn(ids ...uint64) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	before := len(w.agents)
	w.agents = slices.DeleteFunc(w.agents, func(a Agent) bool {
		_, ok := drop[a.ID]
		return ok
	})
	if _, ok := drop[w.selected]; ok {
		w.ClearSelection()
	}

	removed := before - len(w.agents)
	if removed > 0 {
		w.logger.Infof("despawned %d boids, %d alive", removed, len(w.agents))
	}
	return removed
}

// DespawnAll removes every boid and returns how many there were.
func (w *World) DespawnAll() int {
	n := len(w.agents)
	clear(w.agents)
	w.agents = w.agents[:0]
	w.ClearSelection()
	if n > 0 {
		w.logger.Infof("despawned all %d boids", n)
	}
	return n
}

// Len returns the number of live boids.
func (w *World) Len() int {
	return len(w.agents)
}

// Agents returns a copy of every live boid, ordered by ID.
func (w *World) Agents() []Agent {
	return slices.Clone(w.agents)
}

// Agent returns the boid with the given ID.
func (w *World) Agent(id uint64) (Agent, bool) {
	i, ok := w.find(id)
	if !ok {
		return Agent{}, false
	}
	return w.agents[i], true
}

func (w *World) find(id uint64) (int, bool) {
	return slices.BinarySearchFunc(w.agents, id, func(a Agent, id uint64) int {
		return cmp.Compare(a.ID, id)
	})
}

// Select marks a boid whose neighbors get highlighted from the next tick on.
// It returns false, leaving the selection unchanged, for an unknown ID.
func (w *World) Select(id uint64) bool {
	if _, ok := w.find(id); !ok {
		return false
	}
	if id != w.selected {
		w.selected = id
		w.highlighted = w.highlighted[:0]
	}
	return true
}

// ClearSelection drops the selected boid and its highlighted neighbors.
func (w *World) ClearSelection() {
	w.selected = 0
	w.highlighted = w.highlighted[:0]
}

// Selected returns the selected boid, if any.
func (w *World) Selected() (uint64, bool) {
	return w.selected, w.selected != 0
}

// Highlighted returns the IDs of the boids the selected one saw during the
// last tick, sorted.
func (w *World) Highlighted() []uint64 {
	return slices.Clone(w.highlighted)
}

// CellBounds returns the cells of the neighbor index as of the last tick.
func (w *World) CellBounds() []geometry.Rect {
	return w.index.CellBounds()
}

// Stats returns the statistics of the last tick that ran.
func (w *World) Stats() TickStats {
	return w.stats
}

// Step advances the simulation by dt seconds.
//
// cfg, when not nil, becomes the active configuration first; an invalid one
// is logged and ignored. A dt that is not a positive finite number skips the
// tick without touching any boid.
//
// Every boid is updated from the positions and velocities all boids had at
// the start of the tick, so the result does not depend on update order nor
// on how many workers share the work.
func (w *World) Step(dt float64, cfg *Config) TickStats {
	if cfg != nil {
		if err := w.SetConfig(cfg); err != nil {
			w.logger.Warnf("tick config rejected, keeping the previous one: %v", err)
		}
	}
	if !(dt > 0) || math.IsInf(dt, 1) {
		return TickStats{Tick: w.stats.Tick, Agents: len(w.agents), Skipped: true}
	}

	start := time.Now()
	s := w.cfg.Settings()

	// 1. Rebuild the index from the state at the end of the previous tick.
	w.prev = w.prev[:0]
	for _, a := range w.agents {
		w.prev = append(w.prev, a.Boid)
	}
	indexed := w.index.Rebuild(w.prev)

	// 2. Read-only queries from here on; each boid only writes its own slot.
	w.next = slices.Grow(w.next[:0], len(w.prev))[:len(w.prev)]
	candidates := w.advanceAll(s, dt)

	// 3. Publish the new state.
	for i := range w.agents {
		w.agents[i].Boid = w.next[i]
	}
	w.updateColors()
	w.updateHighlighted(s)

	w.stats = TickStats{
		Tick:       w.stats.Tick + 1,
		Agents:     len(w.agents),
		Indexed:    indexed,
		Candidates: candidates,
		Duration:   time.Since(start),
	}
	return w.stats
}

// advanceAll splits the boids into one contiguous chunk per worker and
// returns the total number of neighbor candidates examined.
func (w *World) advanceAll(s behavior.Settings, dt float64) int {
	n := len(w.prev)
	workers := min(max(w.cfg.Workers, 1), max(n, 1))
	for len(w.scratch) < workers {
		w.scratch = append(w.scratch, scratch{})
	}
	if workers == 1 {
		return w.advanceRange(0, n, s, dt, &w.scratch[0])
	}

	counts := make([]int, workers)
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for c := range workers {
		lo, hi := c*chunk, min((c+1)*chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			counts[c] = w.advanceRange(lo, hi, s, dt, &w.scratch[c])
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

func (w *World) advanceRange(lo, hi int, s behavior.Settings, dt float64, sc *scratch) int {
	radius := s.QueryRadius()
	candidates := 0
	for i := lo; i < hi; i++ {
		self := w.prev[i]
		sc.items = w.index.QueryInto(self.Pos, radius, sc.items[:0])
		candidates += len(sc.items)

		sc.neighbors = sc.neighbors[:0]
		for _, it := range sc.items {
			sc.neighbors = append(sc.neighbors, it.Value)
		}
		w.next[i] = behavior.Advance(self, sc.neighbors, s, dt)
	}
	return candidates
}

// updateColors gives each boid, with probability ColorSampleRate, the colour
// its current velocity has in the active scheme.
func (w *World) updateColors() {
	rate := w.cfg.ColorSampleRate
	if rate == 0 {
		return
	}
	for i := range w.agents {
		if w.rng.Float64() > rate {
			continue
		}
		a := &w.agents[i]
		a.Color = SchemeColor(w.cfg.ColorScheme, a.InitialColor, a.Vel, w.cfg.MaxSpeed)
	}
}

// updateHighlighted re-runs the query of the selected boid against this
// tick's index and keeps the neighbors within visible range.
func (w *World) updateHighlighted(s behavior.Settings) {
	w.highlighted = w.highlighted[:0]
	if w.selected == 0 {
		return
	}
	i, ok := w.find(w.selected)
	if !ok {
		w.selected = 0
		return
	}

	self := w.prev[i]
	visibleSq := s.VisibleRange * s.VisibleRange
	for _, it := range w.index.QueryInto(self.Pos, s.QueryRadius(), nil) {
		if it.Value.ID == self.ID {
			continue
		}
		if it.Point.DistanceSquaredTo(self.Pos) <= visibleSq {
			w.highlighted = append(w.highlighted, it.Value.ID)
		}
	}
	slices.Sort(w.highlighted)
}

// Snapshot copies the state a renderer needs.
func (w *World) Snapshot() *Snapshot {
	snap := &Snapshot{
		Agents:      slices.Clone(w.agents),
		Selected:    w.selected,
		Highlighted: slices.Clone(w.highlighted),
		Stats:       w.stats,
		Config:      *w.cfg,
	}
	if w.cfg.RenderIndex {
		snap.Cells = w.index.CellBounds()
	}
	return snap
}
