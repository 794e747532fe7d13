package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-boids/pkg/render"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
)

const usage = `Usage: boids [config_file | -defaults]

The first argument is optional and is the path to a JSON or TOML config file.
If no config file is specified, the flock runs with default parameters.
-defaults prints the default configuration as TOML and exits.
`

func main() {
	var cfg *simulation.Config
	var err error
	switch len(os.Args) {
	case 1:
		cfg = simulation.DefaultConfig()
	case 2:
		if os.Args[1] == "-defaults" {
			if err := simulation.DefaultConfig().WriteTOML(os.Stdout); err != nil {
				fatal(err)
			}
			return
		}
		cfg, err = simulation.LoadConfig(os.Args[1])
	default:
		err = fmt.Errorf("%d arguments provided (0 required, 1 optional)\n\n%s", len(os.Args)-1, usage)
	}
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	logger := golog.New(golog.InfoLevel, os.Stdout)

	system, err := actor.NewActorSystem("BoidsWorld",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		fatal(err)
	}
	if err := system.Start(ctx); err != nil {
		fatal(err)
	}
	defer func() { _ = system.Stop(ctx) }()

	game, err := render.NewGame(ctx, cfg, system, uint64(time.Now().UnixNano()))
	if err != nil {
		fatal(err)
	}

	ebiten.SetWindowSize(int(cfg.WorldWidth), int(cfg.WorldHeight))
	ebiten.SetWindowTitle("Boids")
	if err := ebiten.RunGame(game); err != nil {
		_ = system.Stop(ctx)
		fatal(err)
	}
}

// fatal prints an error on the standard error and exits with a non-zero status.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}
