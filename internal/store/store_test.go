package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DialectSQLite, filepath.Join(t.TempDir(), "generators.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	gen := testGenerator(t)
	codec := testCodec()

	id, err := s.Save(gen, codec)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned an empty id")
	}

	loaded, err := s.Load(id, codec)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Tiles.Len() != gen.Tiles.Len() {
		t.Errorf("loaded tile count = %d, want %d", loaded.Tiles.Len(), gen.Tiles.Len())
	}
	if loaded.Weights.Epochs != gen.Weights.Epochs {
		t.Errorf("loaded epochs = %d, want %d", loaded.Weights.Epochs, gen.Weights.Epochs)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load("no-such-id", testCodec()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() of missing id = %v, want %v", err, ErrNotFound)
	}
}

func TestStoreList(t *testing.T) {
	s := openTestStore(t)
	gen := testGenerator(t)
	codec := testCodec()

	first, err := s.Save(gen, codec)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	second, err := s.Save(gen, codec)
	if err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d rows, want 2", len(infos))
	}
	ids := map[string]bool{infos[0].ID: true, infos[1].ID: true}
	if !ids[first] || !ids[second] {
		t.Error("List() should contain both saved generators")
	}
	for _, info := range infos {
		if info.Epochs != gen.Weights.Epochs {
			t.Errorf("listed epochs = %d, want %d", info.Epochs, gen.Weights.Epochs)
		}
		if info.Mode != gen.Mode.String() {
			t.Errorf("listed mode = %q, want %q", info.Mode, gen.Mode.String())
		}
		if info.CreatedAt.IsZero() {
			t.Error("listed CreatedAt should be set")
		}
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	codec := testCodec()
	id, err := s.Save(testGenerator(t), codec)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := s.Load(id, codec); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete() = %v, want %v", err, ErrNotFound)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want %v", err, ErrNotFound)
	}
}
