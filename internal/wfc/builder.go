package wfc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/obslog"
	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// BuildMode selects how a build relates to a previously trained generator.
type BuildMode int

const (
	// BuildFresh trains a brand new generator.
	BuildFresh BuildMode = iota
	// BuildFreshOverwrite re-ingests the examples and reinitializes the
	// weights exactly as BuildFresh does. The result is a new generator; a
	// prior generator passed to Build is neither read nor modified.
	BuildFreshOverwrite
	// BuildContinue keeps a prior generator's tiles and weights and trains
	// additional epochs. The examples may not introduce tiles the prior
	// generator has never seen.
	BuildContinue
)

// BuildState reports where a build is in its lifecycle.
type BuildState int

const (
	StateNone BuildState = iota
	StateInProgress
	StateCancelled
	StateSuccess
	StateNanError
	StateMismatchedLayers
	StateNullMaps
	StateZeroMaps
	StateInvalidCommonality
)

// String returns the string representation of a BuildState.
func (s BuildState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInProgress:
		return "in_progress"
	case StateCancelled:
		return "cancelled"
	case StateSuccess:
		return "success"
	case StateNanError:
		return "nan_error"
	case StateMismatchedLayers:
		return "mismatched_layers"
	case StateNullMaps:
		return "null_maps"
	case StateZeroMaps:
		return "zero_maps"
	case StateInvalidCommonality:
		return "invalid_commonality"
	default:
		return "unknown"
	}
}

// ExampleMap is one training example: a region of layered tiles plus its
// relative sampling weight.
type ExampleMap struct {
	Region      tilemap.Region
	Layers      [][]tilemap.Handle // [layer][y*W+x], nil entries are empty cells
	Commonality float64
}

// ExampleFromAdapter reads a region of a tilemap into an ExampleMap.
func ExampleFromAdapter(tm tilemap.Adapter, region tilemap.Region, commonality float64) (ExampleMap, error) {
	layers := make([][]tilemap.Handle, tm.LayerCount())
	for l := range layers {
		block, err := tm.ReadBlock(l, region)
		if err != nil {
			return ExampleMap{}, fmt.Errorf("wfc: reading example layer %d: %w", l, err)
		}
		layers[l] = block
	}
	return ExampleMap{Region: region, Layers: layers, Commonality: commonality}, nil
}

// tile returns the layered tuple at local (x, y).
func (m ExampleMap) tile(x, y int) LayeredTile {
	t := LayeredTile{Layers: make([]tilemap.Handle, len(m.Layers))}
	for l := range m.Layers {
		t.Layers[l] = m.Layers[l][y*m.Region.W+x]
	}
	return t
}

// BuildOptions carries every training parameter.
type BuildOptions struct {
	Radius            int
	Connectivity      ConnectivityMode
	EnforceBorders    BorderFlags
	AcknowledgeBounds BorderFlags
	EmptyAsTile       bool
	LearnRateStart    float64
	LearnRateEnd      float64
	Epochs            int
	Mode              BuildMode
	Seed              int64

	// Logger receives build milestones and per-epoch progress. nil falls
	// back to slog.Default().
	Logger *slog.Logger
}

// BuildProgress is a polling snapshot of a running or finished build.
type BuildProgress struct {
	Epoch       int        `json:"epoch"`
	TotalEpochs int        `json:"total_epochs"`
	LossLast    float64    `json:"loss_last"`
	LossAvg20   float64    `json:"loss_avg_20"`
	LearnRate   float64    `json:"learn_rate"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	State       BuildState `json:"state"`
}

// lossWindow is how many trailing epochs the rolling loss average covers.
const lossWindow = 20

// Builder orchestrates training epochs over the example maps. One Builder
// runs one build at a time; callers wanting a background worker run Build
// in their own goroutine and poll Progress.
type Builder struct {
	mu       sync.Mutex
	progress BuildProgress

	cancel   atomic.Bool
	saveQuit atomic.Bool
}

// NewBuilder returns a Builder in the None state.
func NewBuilder() *Builder {
	return &Builder{}
}

// Progress returns a snapshot of the current build state.
func (b *Builder) Progress() BuildProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// Cancel asks the build to stop at the next epoch boundary, discarding the
// run. Weights are left in whatever state they reached.
func (b *Builder) Cancel() {
	b.cancel.Store(true)
}

// SaveAndQuit asks the build to finish the current epoch and stop cleanly.
func (b *Builder) SaveAndQuit() {
	b.saveQuit.Store(true)
}

func (b *Builder) setProgress(update func(*BuildProgress)) {
	b.mu.Lock()
	update(&b.progress)
	b.mu.Unlock()
}

// fail records a terminal state and returns err unchanged.
func (b *Builder) fail(state BuildState, err error) error {
	b.setProgress(func(p *BuildProgress) {
		p.State = state
		p.EndTime = time.Now()
	})
	return err
}

// Build trains a generator from the examples. prior is required for
// BuildContinue and ignored for BuildFresh and BuildFreshOverwrite. The
// call is synchronous; Cancel and SaveAndQuit are honored at epoch
// boundaries.
func (b *Builder) Build(examples []ExampleMap, prior *Generator, opts BuildOptions) (*Generator, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	b.cancel.Store(false)
	b.saveQuit.Store(false)
	b.setProgress(func(p *BuildProgress) {
		*p = BuildProgress{
			TotalEpochs: opts.Epochs,
			LearnRate:   opts.LearnRateStart,
			StartTime:   time.Now(),
			State:       StateInProgress,
		}
	})

	if err := validateExamples(examples); err != nil {
		log.Error("example validation failed", "error", err)
		return nil, b.fail(stateForIngestError(err), err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	tiles, weights, err := prepareLearnedState(examples, prior, opts, rng)
	if err != nil {
		log.Error("ingest failed", "error", err)
		return nil, b.fail(StateMismatchedLayers, err)
	}
	cells, err := internExamples(tiles, examples, opts)
	if err != nil {
		log.Error("ingest failed", "error", err)
		return nil, b.fail(StateMismatchedLayers, err)
	}

	conn := NewConnectivityTable(opts.Connectivity, tiles.Len())
	populateConnectivity(conn, tiles, examples, cells, opts.EmptyAsTile)

	log.Log(context.Background(), obslog.LevelAlways, "build started",
		"examples", len(examples),
		"unique_tiles", tiles.Len(),
		"radius", opts.Radius,
		"connectivity", opts.Connectivity.String(),
		"epochs", opts.Epochs)

	totalWeight := 0.0
	for _, m := range examples {
		totalWeight += m.Commonality
	}

	var (
		engine     *Engine
		current    = -1
		window     []float64
		runStopped bool
	)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if b.cancel.Load() {
			log.Log(context.Background(), obslog.LevelAlways, "build cancelled", "epoch", epoch)
			return nil, b.fail(StateCancelled, ErrCancelled)
		}

		// Log-interpolated learning rate schedule.
		t := float64(epoch) / float64(opts.Epochs)
		lr := opts.LearnRateStart * math.Pow(opts.LearnRateEnd/opts.LearnRateStart, t)

		pick := sampleExample(examples, totalWeight, rng)
		if pick != current {
			engine = NewEngine(weights, examples[pick].Region, 0, rng)
			current = pick
		}
		engine.Reset()

		lossSum := 0.0
		trained := 0
		w := examples[pick].Region.W
		for !engine.Done() {
			x, y, ok := engine.NextPos()
			if !ok {
				break
			}
			ci := cells[pick][y*w+x]
			if ci < 0 {
				engine.Skip(x, y)
				continue
			}
			loss, err := engine.Train(x, y, ci, lr)
			if err != nil {
				log.Error("training diverged", "epoch", epoch, "error", err)
				return nil, b.fail(StateNanError, fmt.Errorf("epoch %d: %w", epoch, err))
			}
			lossSum += loss
			trained++
			engine.MarkCollapsed(x, y, ci)
		}

		avg := 0.0
		if trained > 0 {
			avg = lossSum / float64(trained)
		}
		weights.Epochs++
		window = append(window, avg)
		if len(window) > lossWindow {
			window = window[1:]
		}
		rolling := 0.0
		for _, v := range window {
			rolling += v
		}
		rolling /= float64(len(window))

		b.setProgress(func(p *BuildProgress) {
			p.Epoch = weights.Epochs
			p.LossLast = avg
			p.LossAvg20 = rolling
			p.LearnRate = lr
		})
		log.Debug("epoch finished", "epoch", weights.Epochs, "loss", avg, "loss_avg_20", rolling, "lr", lr)

		if b.saveQuit.Load() {
			log.Info("save and quit requested, stopping after current epoch", "epoch", weights.Epochs)
			runStopped = true
			break
		}
	}

	b.setProgress(func(p *BuildProgress) {
		p.State = StateSuccess
		p.EndTime = time.Now()
	})
	log.Log(context.Background(), obslog.LevelAlways, "build finished",
		"epochs_trained", weights.Epochs,
		"stopped_early", runStopped)

	return &Generator{
		Tiles:             tiles,
		Conn:              conn,
		Weights:           weights,
		Radius:            weights.Radius(),
		Mode:              opts.Connectivity,
		EnforceBorders:    opts.EnforceBorders,
		AcknowledgeBounds: opts.AcknowledgeBounds,
		EmptyAsTile:       opts.EmptyAsTile,
	}, nil
}

// validateExamples applies the fail-fast ingest checks.
func validateExamples(examples []ExampleMap) error {
	if len(examples) == 0 {
		return ErrZeroMaps
	}
	layerCount := -1
	total := 0.0
	for i, m := range examples {
		if len(m.Layers) == 0 {
			return fmt.Errorf("map %d: %w", i, ErrNullMaps)
		}
		if layerCount < 0 {
			layerCount = len(m.Layers)
		} else if len(m.Layers) != layerCount {
			return fmt.Errorf("map %d has %d layers, map 0 has %d: %w", i, len(m.Layers), layerCount, ErrMismatchedLayers)
		}
		if m.Commonality < 0 {
			return fmt.Errorf("map %d: %w", i, ErrInvalidCommonality)
		}
		total += m.Commonality
	}
	if total <= 0 {
		return ErrInvalidCommonality
	}
	return nil
}

func stateForIngestError(err error) BuildState {
	switch {
	case errors.Is(err, ErrZeroMaps):
		return StateZeroMaps
	case errors.Is(err, ErrNullMaps):
		return StateNullMaps
	case errors.Is(err, ErrMismatchedLayers):
		return StateMismatchedLayers
	case errors.Is(err, ErrInvalidCommonality):
		return StateInvalidCommonality
	default:
		return StateNone
	}
}

// prepareLearnedState returns the tile set and weight tensor the run will
// train, honoring the build mode.
func prepareLearnedState(examples []ExampleMap, prior *Generator, opts BuildOptions, rng *rand.Rand) (*TileSet, *GeneratorWeights, error) {
	if opts.Mode == BuildContinue {
		if prior == nil {
			return nil, nil, fmt.Errorf("wfc: continue build requires a prior generator")
		}
		return prior.Tiles, prior.Weights, nil
	}

	tiles := NewTileSet(len(examples[0].Layers))
	if opts.EmptyAsTile {
		tiles.InternEmpty()
	}
	for _, m := range examples {
		for y := 0; y < m.Region.H; y++ {
			for x := 0; x < m.Region.W; x++ {
				t := m.tile(x, y)
				if t.IsEmpty() && !opts.EmptyAsTile {
					continue
				}
				tiles.Intern(t)
			}
		}
	}
	weights := NewGeneratorWeights(tiles.Len(), opts.Radius, opts.AcknowledgeBounds, rng)
	return tiles, weights, nil
}

// internExamples maps every example cell to its tile index, -1 for empty
// cells that are not interpreted as a tile.
func internExamples(tiles *TileSet, examples []ExampleMap, opts BuildOptions) ([][]int, error) {
	cells := make([][]int, len(examples))
	for i, m := range examples {
		if len(m.Layers) != tiles.LayerCount() {
			return nil, fmt.Errorf("map %d has %d layers, generator has %d: %w", i, len(m.Layers), tiles.LayerCount(), ErrMismatchedLayers)
		}
		c := make([]int, m.Region.Area())
		for y := 0; y < m.Region.H; y++ {
			for x := 0; x < m.Region.W; x++ {
				t := m.tile(x, y)
				if t.IsEmpty() && !opts.EmptyAsTile {
					c[y*m.Region.W+x] = -1
					continue
				}
				idx, ok := tiles.Lookup(t)
				if !ok {
					if opts.Mode == BuildContinue {
						return nil, fmt.Errorf("wfc: map %d contains a tile the prior generator has never seen at (%d, %d)", i, x, y)
					}
					idx = tiles.Intern(t)
				}
				c[y*m.Region.W+x] = idx
			}
		}
		cells[i] = c
	}
	return cells, nil
}

// populateConnectivity records every observed neighbor pair and border
// occupancy from the examples. Scanning every cell in every direction
// makes the relation symmetric by construction. When empty cells are
// interpreted as a tile, neighbors beyond an example's edge count as the
// empty sentinel in both directions.
func populateConnectivity(conn *ConnectivityTable, tiles *TileSet, examples []ExampleMap, cells [][]int, emptyAsTile bool) {
	mode := conn.Mode()
	dirs := mode.Directions()
	empty := tiles.EmptyIndex()
	for mi, m := range examples {
		w, h := m.Region.W, m.Region.H
		c := cells[mi]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				a := c[y*w+x]
				if a < 0 {
					continue
				}
				for _, d := range dirs {
					nx, ny, ok := mode.Neighbor(x, y, d, 0)
					if !ok {
						continue
					}
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						if emptyAsTile && empty >= 0 {
							conn.Set(d, a, empty)
							conn.Set(d.Opposite(), empty, a)
						}
						continue
					}
					if b := c[ny*w+nx]; b >= 0 {
						conn.Set(d, a, b)
					}
				}
				if y == 0 {
					conn.SetBorder(DirBottom, a)
				}
				if y == h-1 {
					conn.SetBorder(DirTop, a)
				}
				if x == 0 {
					conn.SetBorder(DirLeft, a)
				}
				if x == w-1 {
					conn.SetBorder(DirRight, a)
				}
			}
		}
	}
}

// sampleExample picks an example index by commonality-weighted sampling.
func sampleExample(examples []ExampleMap, total float64, rng *rand.Rand) int {
	r := rng.Float64() * total
	for i, m := range examples {
		r -= m.Commonality
		if r < 0 {
			return i
		}
	}
	return len(examples) - 1
}
