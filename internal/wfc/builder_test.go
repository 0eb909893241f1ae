package wfc

import (
	"errors"
	"testing"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

func TestBuildValidation(t *testing.T) {
	valid := exampleFromRows([]string{"GG"}, 1)
	noLayers := ExampleMap{Region: tilemap.Region{W: 2, H: 1}, Commonality: 1}
	twoLayer := ExampleMap{
		Region:      tilemap.Region{W: 2, H: 1},
		Layers:      [][]tilemap.Handle{make([]tilemap.Handle, 2), make([]tilemap.Handle, 2)},
		Commonality: 1,
	}
	negative := exampleFromRows([]string{"GG"}, -1)
	zeroTotal := exampleFromRows([]string{"GG"}, 0)

	tests := []struct {
		name      string
		examples  []ExampleMap
		wantErr   error
		wantState BuildState
	}{
		{"no maps", nil, ErrZeroMaps, StateZeroMaps},
		{"map without layers", []ExampleMap{noLayers}, ErrNullMaps, StateNullMaps},
		{"layer count disagreement", []ExampleMap{valid, twoLayer}, ErrMismatchedLayers, StateMismatchedLayers},
		{"negative commonality", []ExampleMap{valid, negative}, ErrInvalidCommonality, StateInvalidCommonality},
		{"zero total commonality", []ExampleMap{zeroTotal}, ErrInvalidCommonality, StateInvalidCommonality},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			_, err := b.Build(tt.examples, nil, testBuildOptions())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
			if got := b.Progress().State; got != tt.wantState {
				t.Errorf("Progress().State = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestBuildSuccess(t *testing.T) {
	b := NewBuilder()
	opts := testBuildOptions()
	opts.Epochs = 30
	gen, err := b.Build([]ExampleMap{exampleFromRows([]string{"GW", "WG"}, 1)}, nil, opts)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if gen.Tiles.Len() != 2 {
		t.Errorf("unique tiles = %d, want 2", gen.Tiles.Len())
	}
	if gen.Weights.Epochs != 30 {
		t.Errorf("Epochs = %d, want 30", gen.Weights.Epochs)
	}

	p := b.Progress()
	if p.State != StateSuccess {
		t.Errorf("State = %v, want %v", p.State, StateSuccess)
	}
	if p.Epoch != 30 {
		t.Errorf("Epoch = %d, want 30", p.Epoch)
	}
	if p.EndTime.Before(p.StartTime) {
		t.Error("EndTime should not precede StartTime")
	}
}

func TestBuildContinueAccumulatesEpochs(t *testing.T) {
	examples := []ExampleMap{exampleFromRows([]string{"GW", "WG"}, 1)}
	opts := testBuildOptions()
	opts.Epochs = 20
	gen, err := NewBuilder().Build(examples, nil, opts)
	if err != nil {
		t.Fatalf("initial Build() failed: %v", err)
	}

	opts.Mode = BuildContinue
	opts.Epochs = 15
	cont, err := NewBuilder().Build(examples, gen, opts)
	if err != nil {
		t.Fatalf("continue Build() failed: %v", err)
	}
	if cont.Weights.Epochs != 35 {
		t.Errorf("cumulative Epochs = %d, want 35", cont.Weights.Epochs)
	}
	if cont.Tiles != gen.Tiles {
		t.Error("continue should keep the prior tile set")
	}
}

func TestBuildContinueRequiresPrior(t *testing.T) {
	opts := testBuildOptions()
	opts.Mode = BuildContinue
	_, err := NewBuilder().Build([]ExampleMap{exampleFromRows([]string{"G"}, 1)}, nil, opts)
	if err == nil {
		t.Error("continue without a prior generator should fail")
	}
}

func TestBuildContinueRejectsUnknownTiles(t *testing.T) {
	opts := testBuildOptions()
	opts.Epochs = 5
	gen, err := NewBuilder().Build([]ExampleMap{exampleFromRows([]string{"GG"}, 1)}, nil, opts)
	if err != nil {
		t.Fatalf("initial Build() failed: %v", err)
	}
	opts.Mode = BuildContinue
	_, err = NewBuilder().Build([]ExampleMap{exampleFromRows([]string{"GW"}, 1)}, gen, opts)
	if err == nil {
		t.Error("continue with an unseen tile should fail")
	}
}

func TestBuildCancel(t *testing.T) {
	b := NewBuilder()
	opts := testBuildOptions()
	opts.Epochs = 1_000_000

	done := make(chan error, 1)
	go func() {
		_, err := b.Build([]ExampleMap{exampleFromRows([]string{
			"GGWWGG",
			"GGWWGG",
			"GGWWGG",
		}, 1)}, nil, opts)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Build() error = %v, want %v", err, ErrCancelled)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Build() did not stop after Cancel()")
	}
	if got := b.Progress().State; got != StateCancelled {
		t.Errorf("State = %v, want %v", got, StateCancelled)
	}
}

func TestBuildSaveAndQuit(t *testing.T) {
	b := NewBuilder()
	opts := testBuildOptions()
	opts.Epochs = 1_000_000

	type result struct {
		gen *Generator
		err error
	}
	done := make(chan result, 1)
	go func() {
		gen, err := b.Build([]ExampleMap{exampleFromRows([]string{
			"GGWWGG",
			"GGWWGG",
			"GGWWGG",
		}, 1)}, nil, opts)
		done <- result{gen, err}
	}()

	time.Sleep(20 * time.Millisecond)
	b.SaveAndQuit()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Build() failed: %v", r.err)
		}
		if r.gen == nil {
			t.Fatal("Build() returned no generator after SaveAndQuit()")
		}
		if r.gen.Weights.Epochs >= opts.Epochs {
			t.Error("SaveAndQuit() should stop before all epochs run")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Build() did not stop after SaveAndQuit()")
	}
	if got := b.Progress().State; got != StateSuccess {
		t.Errorf("State = %v, want %v", got, StateSuccess)
	}
}

func TestBuildLossDecreasesOnSingleExample(t *testing.T) {
	b := NewBuilder()
	opts := testBuildOptions()
	opts.Epochs = 300
	_, err := b.Build([]ExampleMap{exampleFromRows([]string{
		"GGG",
		"GWG",
		"GGG",
	}, 1)}, nil, opts)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	p := b.Progress()
	if p.LossLast >= 1.0 {
		t.Errorf("loss after %d epochs = %g, want it driven well below the initial cross-entropy", opts.Epochs, p.LossLast)
	}
	if p.LossAvg20 < p.LossLast/10 {
		t.Error("rolling average should be in the same regime as the last epoch")
	}
}

func TestExampleFromAdapter(t *testing.T) {
	region := tilemap.Region{W: 3, H: 2}
	tm := tilemap.NewMemoryAdapter(1, region)
	tm.Set(0, 0, 0, tilemap.StringHandle("G"))
	tm.Set(0, 2, 1, tilemap.StringHandle("W"))

	m, err := ExampleFromAdapter(tm, region, 2)
	if err != nil {
		t.Fatalf("ExampleFromAdapter() failed: %v", err)
	}
	if m.Commonality != 2 {
		t.Errorf("Commonality = %g, want 2", m.Commonality)
	}
	if len(m.Layers) != 1 {
		t.Fatalf("layer count = %d, want 1", len(m.Layers))
	}
	if m.Layers[0][0] == nil || !m.Layers[0][0].Equal(tilemap.StringHandle("G")) {
		t.Error("cell (0, 0) should hold G")
	}
	if m.Layers[0][1*3+2] == nil || !m.Layers[0][1*3+2].Equal(tilemap.StringHandle("W")) {
		t.Error("cell (2, 1) should hold W")
	}
	if m.Layers[0][1] != nil {
		t.Error("unset cells should read as nil")
	}
}
