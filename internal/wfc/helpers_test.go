package wfc

import (
	"io"
	"log/slog"
	"testing"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// exampleFromRows builds a single-layer example map from rune rows.
// rows[0] is the bottom row (y=0); '.' marks an empty cell.
func exampleFromRows(rows []string, commonality float64) ExampleMap {
	h := len(rows)
	w := len([]rune(rows[0]))
	grid := make([]tilemap.Handle, w*h)
	for y, row := range rows {
		for x, r := range []rune(row) {
			if r == '.' {
				continue
			}
			grid[y*w+x] = tilemap.StringHandle(string(r))
		}
	}
	return ExampleMap{
		Region:      tilemap.Region{W: w, H: h},
		Layers:      [][]tilemap.Handle{grid},
		Commonality: commonality,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBuildOptions() BuildOptions {
	return BuildOptions{
		Radius:         1,
		Connectivity:   ModeFour,
		LearnRateStart: 0.05,
		LearnRateEnd:   0.01,
		Epochs:         60,
		Seed:           1,
		Logger:         discardLogger(),
	}
}

// trainGenerator builds a generator from one example map, failing the test
// on any build error.
func trainGenerator(t *testing.T, rows []string, opts BuildOptions) *Generator {
	t.Helper()
	gen, err := NewBuilder().Build([]ExampleMap{exampleFromRows(rows, 1)}, nil, opts)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return gen
}

// tileIndex resolves a single-character tile name to its index.
func tileIndex(t *testing.T, gen *Generator, name string) int {
	t.Helper()
	idx, ok := gen.Tiles.Lookup(LayeredTile{Layers: []tilemap.Handle{tilemap.StringHandle(name)}})
	if !ok {
		t.Fatalf("tile %q not in generator", name)
	}
	return idx
}

// tileNameAt reads the single-layer tile name at an absolute coordinate,
// or "." when empty.
func tileNameAt(tm *tilemap.MemoryAdapter, x, y int) string {
	h := tm.Get(0, x, y)
	if h == nil {
		return "."
	}
	return h.(tilemap.StringHandle).String()
}

// seedPtr returns a pointer to a seed value for GenerateOptions.
func seedPtr(v int64) *int64 {
	return &v
}

// verifyAdjacency asserts invariant 1: every neighbor pair in the output
// was observed in the examples, and enforced borders only carry observed
// border tiles.
func verifyAdjacency(t *testing.T, gen *Generator, tm *tilemap.MemoryAdapter, region tilemap.Region) {
	t.Helper()
	indexAt := func(x, y int) int {
		idx, ok := gen.Tiles.Lookup(LayeredTile{Layers: []tilemap.Handle{tm.Get(0, region.X+x, region.Y+y)}})
		if !ok {
			t.Fatalf("output tile at (%d, %d) not in generator", x, y)
		}
		return idx
	}
	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			a := indexAt(x, y)
			for _, d := range gen.Mode.Directions() {
				nx, ny, ok := gen.Mode.Neighbor(x, y, d, 0)
				if !ok {
					continue
				}
				if region.Contains(nx, ny) {
					b := indexAt(nx, ny)
					if !gen.Conn.Get(d, a, b) {
						t.Errorf("unobserved pair: tile %d at (%d, %d) with tile %d in direction %s", a, x, y, b, d)
					}
					continue
				}
				border, bok := gen.Mode.borderFor(d, y, region.H)
				if bok && gen.EnforceBorders.Has(border) && !gen.Conn.GetBorder(border, a) {
					t.Errorf("tile %d at (%d, %d) not observed on enforced border %s", a, x, y, border)
				}
			}
		}
	}
}
