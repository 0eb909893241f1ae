package wfc

import (
	"testing"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

func layered(names ...string) LayeredTile {
	t := LayeredTile{Layers: make([]tilemap.Handle, len(names))}
	for i, n := range names {
		if n != "" {
			t.Layers[i] = tilemap.StringHandle(n)
		}
	}
	return t
}

func TestLayeredTileEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b LayeredTile
		want bool
	}{
		{"same single layer", layered("grass"), layered("grass"), true},
		{"different single layer", layered("grass"), layered("wall"), false},
		{"same two layers", layered("grass", "tree"), layered("grass", "tree"), true},
		{"nil vs handle", layered("grass", ""), layered("grass", "tree"), false},
		{"both nil layers", layered("grass", ""), layered("grass", ""), true},
		{"layer count mismatch", layered("grass"), layered("grass", ""), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayeredTileIsEmpty(t *testing.T) {
	if !layered("", "").IsEmpty() {
		t.Error("all-nil tuple should be empty")
	}
	if layered("grass", "").IsEmpty() {
		t.Error("tuple with a handle should not be empty")
	}
}

func TestTileSetInternAssignsStableIndices(t *testing.T) {
	s := NewTileSet(1)
	g := s.Intern(layered("grass"))
	w := s.Intern(layered("wall"))
	if g == w {
		t.Fatal("distinct tuples got the same index")
	}
	if again := s.Intern(layered("grass")); again != g {
		t.Errorf("re-interning returned %d, want %d", again, g)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if !s.At(g).Equal(layered("grass")) {
		t.Error("At() did not return the interned tuple")
	}
}

func TestTileSetLookup(t *testing.T) {
	s := NewTileSet(2)
	idx := s.Intern(layered("grass", "tree"))
	got, ok := s.Lookup(layered("grass", "tree"))
	if !ok || got != idx {
		t.Errorf("Lookup() = (%d, %v), want (%d, true)", got, ok, idx)
	}
	if _, ok := s.Lookup(layered("wall", "")); ok {
		t.Error("Lookup() found a tuple that was never interned")
	}
}

func TestTileSetEmptySentinel(t *testing.T) {
	s := NewTileSet(2)
	if s.EmptyIndex() != -1 {
		t.Errorf("EmptyIndex() = %d before InternEmpty, want -1", s.EmptyIndex())
	}
	e := s.InternEmpty()
	if s.EmptyIndex() != e {
		t.Errorf("EmptyIndex() = %d, want %d", s.EmptyIndex(), e)
	}
	if again := s.InternEmpty(); again != e {
		t.Errorf("second InternEmpty() = %d, want %d", again, e)
	}
	if !s.At(e).IsEmpty() {
		t.Error("empty sentinel tuple should be all-nil")
	}
}
