// Command tilegen trains a tilemap generator from YAML-defined example
// maps, generates a region with it, and renders the result as an ASCII
// grid. A trained generator can be saved to and loaded from a SQL store.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/config"
	"github.com/lawnchairsociety/tilegen/internal/obslog"
	"github.com/lawnchairsociety/tilegen/internal/progress"
	"github.com/lawnchairsociety/tilegen/internal/store"
	"github.com/lawnchairsociety/tilegen/internal/tilemap"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

func main() {
	examplesPath := flag.String("examples", "", "Path to the YAML fixture file with example maps")
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	logConfigPath := flag.String("log-config", "", "Path to an optional logging config file")
	epochs := flag.Int("epochs", 0, "Training epochs (overrides config)")
	radius := flag.Int("radius", 0, "Neighborhood radius (overrides config)")
	connectivity := flag.String("connectivity", "", "Connectivity mode: four, eight, or hex (overrides config)")
	seed := flag.Int64("seed", 0, "Seed for training and generation (overrides config)")
	out := flag.String("out", "", "Output region size, e.g. 12x8 (overrides config)")
	temperature := flag.Float64("temperature", 0, "Sampling temperature (overrides config)")
	forceful := flag.Bool("forceful", false, "Discard conflicting preset tiles instead of failing")
	dbPath := flag.String("db", "", "SQLite database to save the trained generator to")
	loadID := flag.String("load", "", "Load a generator by id from -db instead of training")
	listen := flag.String("listen", "", "Address to serve websocket build progress on, e.g. :8080")
	flag.Parse()

	logConfig, _ := obslog.LoadConfig(*logConfigPath)
	if err := obslog.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	buildCfg, genCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("invalid config: %v", err)
	}
	applyFlagOverrides(&buildCfg, &genCfg, *epochs, *radius, *connectivity, *seed, *out, *temperature)
	if *forceful {
		genCfg.Forceful = true
	}
	if err := buildCfg.Validate(); err != nil {
		fatal("%v", err)
	}
	if err := genCfg.Validate(); err != nil {
		fatal("%v", err)
	}

	if *examplesPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -examples is required")
		flag.Usage()
		os.Exit(1)
	}
	fix, err := loadFixture(*examplesPath)
	if err != nil {
		fatal("%v", err)
	}

	var gen *wfc.Generator
	if *loadID != "" {
		gen = loadGenerator(*dbPath, *loadID)
	} else {
		gen = train(fix, buildCfg, *listen)
		if *dbPath != "" {
			saveGenerator(*dbPath, gen)
		}
	}

	generateAndRender(gen, fix, genCfg)
}

func applyFlagOverrides(buildCfg *config.BuildConfig, genCfg *config.GenerateConfig, epochs, radius int, connectivity string, seed int64, out string, temperature float64) {
	if epochs > 0 {
		buildCfg.Epochs = epochs
	}
	if radius > 0 {
		buildCfg.Radius = radius
	}
	if connectivity != "" {
		buildCfg.Connectivity = connectivity
	}
	if seed != 0 {
		buildCfg.Seed = seed
		genCfg.Seed = &seed
	}
	if out != "" {
		w, h, err := parseSize(out)
		if err != nil {
			fatal("%v", err)
		}
		genCfg.W, genCfg.H = w, h
	}
	if temperature != 0 {
		genCfg.Temperature = temperature
	}
}

func parseSize(s string) (w, h int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return w, h, nil
}

// train runs the builder on its own goroutine, reporting progress to the
// terminal and, when -listen is set, to websocket clients.
func train(fix *fixture, cfg config.BuildConfig, listen string) *wfc.Generator {
	opts, err := cfg.Options()
	if err != nil {
		fatal("%v", err)
	}
	opts.Logger = obslog.Logger()

	var broadcaster *progress.Broadcaster
	if listen != "" {
		broadcaster = progress.NewBroadcaster(true)
		mux := http.NewServeMux()
		mux.Handle("/progress", broadcaster)
		go func() {
			if err := http.ListenAndServe(listen, mux); err != nil {
				obslog.Error("progress server stopped", "error", err)
			}
		}()
		fmt.Printf("Serving build progress on ws://%s/progress\n", listen)
	}

	builder := wfc.NewBuilder()
	type result struct {
		gen *wfc.Generator
		err error
	}
	done := make(chan result, 1)
	go func() {
		gen, err := builder.Build(fix.examples, nil, opts)
		done <- result{gen, err}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case r := <-done:
			if r.err != nil {
				fatal("build failed: %v", r.err)
			}
			p := builder.Progress()
			fmt.Printf("Trained %d epochs, final loss %.6f (avg20 %.6f)\n", p.Epoch, p.LossLast, p.LossAvg20)
			if broadcaster != nil {
				broadcaster.Publish(p)
				broadcaster.Close()
			}
			return r.gen
		case <-ticker.C:
			p := builder.Progress()
			fmt.Printf("\repoch %d/%d loss %.6f lr %.6f", p.Epoch, p.TotalEpochs, p.LossLast, p.LearnRate)
			if broadcaster != nil {
				broadcaster.Publish(p)
			}
		}
	}
}

func generateAndRender(gen *wfc.Generator, fix *fixture, cfg config.GenerateConfig) {
	region := tilemap.Region{X: cfg.X, Y: cfg.Y, W: cfg.W, H: cfg.H}
	tm := tilemap.NewMemoryAdapter(gen.Tiles.LayerCount(), region)
	if fix.preset != nil {
		if err := applyPreset(fix.preset, fix.palette, tm, region); err != nil {
			fatal("%v", err)
		}
	}

	err := gen.Generate(tm, region, wfc.GenerateOptions{
		Temperature: cfg.Temperature,
		Forceful:    cfg.Forceful,
		Seed:        cfg.Seed,
		Logger:      obslog.Logger(),
	})
	if err != nil {
		fatal("generation failed: %v", err)
	}

	for l := 0; l < gen.Tiles.LayerCount(); l++ {
		if gen.Tiles.LayerCount() > 1 {
			fmt.Printf("--- layer %d ---\n", l)
		}
		fmt.Print(renderLayer(tm, l, region, fix.palette))
	}
}

func saveGenerator(dbPath string, gen *wfc.Generator) {
	db, err := store.Open(store.DialectSQLite, dbPath)
	if err != nil {
		fatal("%v", err)
	}
	defer db.Close()
	id, err := db.Save(gen, store.Codec{Handles: tilemap.StringHandleCodec{}})
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Saved generator %s to %s\n", id, dbPath)
}

func loadGenerator(dbPath, id string) *wfc.Generator {
	if dbPath == "" {
		fatal("-load requires -db")
	}
	db, err := store.Open(store.DialectSQLite, dbPath)
	if err != nil {
		fatal("%v", err)
	}
	defer db.Close()
	gen, err := db.Load(id, store.Codec{Handles: tilemap.StringHandleCodec{}})
	if err != nil {
		fatal("%v", err)
	}
	return gen
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
