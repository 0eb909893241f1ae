package wfc

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/obslog"
	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// Generator is a trained tilemap generator: the interned tile table, the
// observed adjacency relation, and the classifier weights. All fields are
// read-only during generation; a generation run keeps its own working
// state.
type Generator struct {
	Tiles             *TileSet
	Conn              *ConnectivityTable
	Weights           *GeneratorWeights
	Radius            int
	Mode              ConnectivityMode
	EnforceBorders    BorderFlags
	AcknowledgeBounds BorderFlags
	EmptyAsTile       bool
}

// GenerateOptions carries the per-call generation parameters.
type GenerateOptions struct {
	// Temperature biases sampling: negative values push toward the
	// classifier's argmax, positive values toward uniform randomness.
	Temperature float64

	// Forceful discards the preexisting tiles and retries when they make
	// the problem unsatisfiable.
	Forceful bool

	// Seed fixes the run's randomness; nil seeds from the clock.
	Seed *int64

	// Logger receives generation milestones. nil falls back to slog.Default().
	Logger *slog.Logger
}

// Generate fills the region of the tilemap with a globally consistent
// assignment: tiles already present constrain their cells, the classifier
// proposes an ordering and per-cell preferences, and constraint propagation
// with backtracking search guarantees every adjacency was observed in the
// examples.
func (g *Generator) Generate(tm tilemap.Adapter, region tilemap.Region, opts GenerateOptions) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if g.Tiles == nil || g.Tiles.Len() == 0 {
		return ErrEmptyUniqueTileSet
	}
	if tm.LayerCount() != g.Tiles.LayerCount() {
		return ErrLayerCountMismatch
	}

	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	s := newSolver(g, tm, region, opts.Temperature, rng, log)
	if err := s.run(opts.Forceful); err != nil {
		log.Error("generation failed", "region_w", region.W, "region_h", region.H, "error", err)
		return err
	}
	if err := s.writeback(); err != nil {
		return err
	}
	log.Log(context.Background(), obslog.LevelAlways, "generation finished",
		"region_w", region.W, "region_h", region.H, "seed", seed)
	return nil
}
