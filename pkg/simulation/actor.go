package simulation

import (
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// WorldActor owns the World. Ticks, config edits, spawning and selection all
// arrive as messages, so the World only ever sees one caller at a time.
// After each handled message it pushes a Snapshot to the UI.
type WorldActor struct {
	cfg        *Config
	seed       uint64
	world      *World
	snapshotCh chan<- *Snapshot

	// --- Benchmark Stats ---
	ticks       int
	candidates  int
	tickTime    time.Duration
	lastStats   TickStats
	lastLogTime time.Time
}

var _ actor.Actor = (*WorldActor)(nil)

// NewWorldActor creates the world logic unit. cfg.SpawnCount boids are
// spawned once the actor has started.
func NewWorldActor(cfg *Config, seed uint64, snapshotCh chan<- *Snapshot) *WorldActor {
	return &WorldActor{
		cfg:        cfg.Clone(),
		seed:       seed,
		snapshotCh: snapshotCh,
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	world, err := NewWorld(w.cfg, ctx.ActorSystem().Logger(), w.seed)
	if err != nil {
		return fmt.Errorf("failed to create world: %w", err)
	}
	w.world = world
	w.lastLogTime = time.Now()
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("World started. Spawning %d boids...", w.cfg.SpawnCount)
		w.world.Spawn(w.cfg.SpawnCount)
		w.pushSnapshot()

	case *durationpb.Duration:
		if err := msg.CheckValid(); err != nil {
			ctx.Logger().Warnf("ignoring tick: %v", err)
			return
		}
		stats := w.world.Step(msg.AsDuration().Seconds(), nil)
		w.logBenchmarks(ctx, stats)
		w.pushSnapshot()

	case *wrapperspb.BytesValue:
		cfg, err := ParseConfig(msg.GetValue())
		if err == nil {
			err = w.world.SetConfig(cfg)
		}
		if err != nil {
			ctx.Logger().Warnf("config update rejected, keeping the previous one: %v", err)
			return
		}
		w.pushSnapshot()

	case *wrapperspb.Int32Value:
		n := msg.GetValue()
		if n <= 0 {
			ctx.Logger().Warnf("ignoring spawn request for %d boids", n)
			return
		}
		w.world.Spawn(int(n))
		w.pushSnapshot()

	case *wrapperspb.UInt64Value:
		if id := msg.GetValue(); id == 0 {
			w.world.ClearSelection()
		} else if !w.world.Select(id) {
			ctx.Logger().Warnf("cannot select unknown boid %d", id)
			return
		}
		w.pushSnapshot()

	case *emptypb.Empty:
		w.world.DespawnAll()
		w.pushSnapshot()

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext, stats TickStats) {
	if !stats.Skipped {
		w.ticks++
		w.candidates += stats.Candidates
		w.tickTime += stats.Duration
		w.lastStats = stats
	}
	if time.Since(w.lastLogTime) < time.Second {
		return
	}

	if w.ticks > 0 {
		perBoid := 0.0
		if w.lastStats.Agents > 0 {
			perBoid = float64(w.candidates) / float64(w.ticks*w.lastStats.Agents)
		}
		ctx.Logger().Infof("📊 TICK RATE: %d/sec | Boids: %d (indexed: %d) | Candidates/boid: %.1f | Avg tick: %s",
			w.ticks, w.lastStats.Agents, w.lastStats.Indexed, perBoid, w.tickTime/time.Duration(w.ticks))
	}
	w.ticks = 0
	w.candidates = 0
	w.tickTime = 0
	w.lastLogTime = time.Now()
}

func (w *WorldActor) pushSnapshot() {
	if w.snapshotCh == nil {
		return
	}
	select {
	case w.snapshotCh <- w.world.Snapshot():
	default:
		// UI busy, skip frame
	}
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("World is shutdown...")
	return nil
}
