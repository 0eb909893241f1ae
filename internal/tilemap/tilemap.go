// Package tilemap defines the surface the generation engine needs from a
// host tile grid: opaque tile handles, rectangular regions, and a small
// adapter interface for reading and writing layered tiles.
package tilemap

// Handle is an opaque reference to a host tile. The engine never inspects
// a handle beyond equality and hashing.
type Handle interface {
	// Equal reports whether two handles refer to the same tile.
	Equal(Handle) bool

	// Hash returns a stable hash consistent with Equal.
	Hash() uint64
}

// HandleCodec converts handles to and from a portable byte form so trained
// generators can be persisted.
type HandleCodec interface {
	EncodeHandle(Handle) ([]byte, error)
	DecodeHandle([]byte) (Handle, error)
}

// Region is a rectangle of cells with an absolute origin. Coordinates
// inside a region are 0-indexed and local to it.
type Region struct {
	X, Y int
	W, H int
}

// Contains reports whether the local coordinate (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= 0 && x < r.W && y >= 0 && y < r.H
}

// Area returns the number of cells in the region.
func (r Region) Area() int {
	return r.W * r.H
}

// Adapter is what the engine consumes from a host tilemap. Layers are
// addressed by index starting at 0.
type Adapter interface {
	// LayerCount returns the number of layers in the tilemap.
	LayerCount() int

	// ReadBlock returns the handles in the region on one layer, row-major
	// (index y*region.W + x). Empty cells are nil.
	ReadBlock(layer int, region Region) ([]Handle, error)

	// WriteTile places a handle at an absolute coordinate on one layer.
	// A nil handle clears the cell.
	WriteTile(layer, x, y int, h Handle) error

	// OccupiedBounds returns the bounding box of occupied cells on a layer.
	// ok is false when the layer is empty.
	OccupiedBounds(layer int) (r Region, ok bool)
}
