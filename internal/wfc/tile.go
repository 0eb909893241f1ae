package wfc

import (
	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// LayeredTile is the tuple of per-layer tile handles at one grid cell.
// Entries may be nil for layers holding no tile at that cell. Two
// LayeredTiles are equal when every layer matches.
type LayeredTile struct {
	Layers []tilemap.Handle
}

// Equal reports element-wise equality across all layers.
func (t LayeredTile) Equal(o LayeredTile) bool {
	if len(t.Layers) != len(o.Layers) {
		return false
	}
	for i, h := range t.Layers {
		switch {
		case h == nil && o.Layers[i] == nil:
		case h == nil || o.Layers[i] == nil:
			return false
		case !h.Equal(o.Layers[i]):
			return false
		}
	}
	return true
}

// IsEmpty reports whether every layer is nil.
func (t LayeredTile) IsEmpty() bool {
	for _, h := range t.Layers {
		if h != nil {
			return false
		}
	}
	return true
}

// nilLayerHash stands in for nil handles so tuples differing only in which
// layers are empty still hash apart.
const nilLayerHash = 0x9e3779b97f4a7c15

func (t LayeredTile) hash() uint64 {
	var h uint64 = 1469598103934665603 // FNV-64 offset basis
	for _, layer := range t.Layers {
		lh := uint64(nilLayerHash)
		if layer != nil {
			lh = layer.Hash()
		}
		h ^= lh
		h *= 1099511628211 // FNV-64 prime
	}
	return h
}

// TileSet interns LayeredTiles, assigning each distinct tuple a stable
// small integer index. Indices are assigned in first-seen order and never
// change for the lifetime of a trained generator.
type TileSet struct {
	tiles      []LayeredTile
	byHash     map[uint64][]int
	layerCount int
	emptyIndex int // -1 while empty is not interpreted as a tile
}

// NewTileSet creates an empty set for tuples with the given layer count.
func NewTileSet(layerCount int) *TileSet {
	return &TileSet{
		byHash:     make(map[uint64][]int),
		layerCount: layerCount,
		emptyIndex: -1,
	}
}

// Len returns the number of distinct tuples interned so far.
func (s *TileSet) Len() int {
	return len(s.tiles)
}

// LayerCount returns the layer count shared by every tuple in the set.
func (s *TileSet) LayerCount() int {
	return s.layerCount
}

// At returns the tuple with index i.
func (s *TileSet) At(i int) LayeredTile {
	return s.tiles[i]
}

// Lookup returns the index of an already-interned tuple.
func (s *TileSet) Lookup(t LayeredTile) (int, bool) {
	for _, i := range s.byHash[t.hash()] {
		if s.tiles[i].Equal(t) {
			return i, true
		}
	}
	return 0, false
}

// Intern returns the index for the tuple, assigning a new one on first sight.
func (s *TileSet) Intern(t LayeredTile) int {
	h := t.hash()
	for _, i := range s.byHash[h] {
		if s.tiles[i].Equal(t) {
			return i
		}
	}
	i := len(s.tiles)
	s.tiles = append(s.tiles, t)
	s.byHash[h] = append(s.byHash[h], i)
	return i
}

// InternEmpty interns the all-nil tuple as the empty sentinel and records
// its index. Subsequent calls return the same index.
func (s *TileSet) InternEmpty() int {
	if s.emptyIndex >= 0 {
		return s.emptyIndex
	}
	s.emptyIndex = s.Intern(LayeredTile{Layers: make([]tilemap.Handle, s.layerCount)})
	return s.emptyIndex
}

// EmptyIndex returns the empty sentinel index, or -1 when empty cells are
// not interpreted as a tile.
func (s *TileSet) EmptyIndex() int {
	return s.emptyIndex
}

// RestoreEmptyIndex reinstates a sentinel index during deserialization.
func (s *TileSet) RestoreEmptyIndex(i int) {
	s.emptyIndex = i
}
