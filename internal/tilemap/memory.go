package tilemap

import "fmt"

// MemoryAdapter is an in-memory layered tile grid implementing Adapter.
// It exists so the engine is runnable and testable without a host editor.
type MemoryAdapter struct {
	bounds Region
	layers [][]Handle // [layer][y*W+x], nil entries are empty
}

// NewMemoryAdapter creates an adapter with the given layer count and bounds.
func NewMemoryAdapter(layerCount int, bounds Region) *MemoryAdapter {
	layers := make([][]Handle, layerCount)
	for i := range layers {
		layers[i] = make([]Handle, bounds.Area())
	}
	return &MemoryAdapter{bounds: bounds, layers: layers}
}

// LayerCount returns the number of layers.
func (m *MemoryAdapter) LayerCount() int {
	return len(m.layers)
}

// Bounds returns the adapter's full region.
func (m *MemoryAdapter) Bounds() Region {
	return m.bounds
}

// Get returns the handle at an absolute coordinate, or nil when empty or
// out of bounds.
func (m *MemoryAdapter) Get(layer, x, y int) Handle {
	lx, ly := x-m.bounds.X, y-m.bounds.Y
	if layer < 0 || layer >= len(m.layers) || !m.bounds.Contains(lx, ly) {
		return nil
	}
	return m.layers[layer][ly*m.bounds.W+lx]
}

// Set places a handle at an absolute coordinate. It is WriteTile without
// the error return, for test setup convenience.
func (m *MemoryAdapter) Set(layer, x, y int, h Handle) {
	if err := m.WriteTile(layer, x, y, h); err != nil {
		panic(err)
	}
}

// ReadBlock returns the handles in the region on one layer, row-major.
// Cells outside the adapter's bounds read as empty.
func (m *MemoryAdapter) ReadBlock(layer int, region Region) ([]Handle, error) {
	if layer < 0 || layer >= len(m.layers) {
		return nil, fmt.Errorf("tilemap: layer %d out of range [0, %d)", layer, len(m.layers))
	}
	block := make([]Handle, region.Area())
	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			block[y*region.W+x] = m.Get(layer, region.X+x, region.Y+y)
		}
	}
	return block, nil
}

// WriteTile places a handle at an absolute coordinate on one layer.
func (m *MemoryAdapter) WriteTile(layer, x, y int, h Handle) error {
	if layer < 0 || layer >= len(m.layers) {
		return fmt.Errorf("tilemap: layer %d out of range [0, %d)", layer, len(m.layers))
	}
	lx, ly := x-m.bounds.X, y-m.bounds.Y
	if !m.bounds.Contains(lx, ly) {
		return fmt.Errorf("tilemap: coordinate (%d, %d) outside bounds", x, y)
	}
	m.layers[layer][ly*m.bounds.W+lx] = h
	return nil
}

// OccupiedBounds returns the bounding box of occupied cells on a layer.
func (m *MemoryAdapter) OccupiedBounds(layer int) (Region, bool) {
	if layer < 0 || layer >= len(m.layers) {
		return Region{}, false
	}
	minX, minY := m.bounds.W, m.bounds.H
	maxX, maxY := -1, -1
	for y := 0; y < m.bounds.H; y++ {
		for x := 0; x < m.bounds.W; x++ {
			if m.layers[layer][y*m.bounds.W+x] == nil {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return Region{}, false
	}
	return Region{
		X: m.bounds.X + minX,
		Y: m.bounds.Y + minY,
		W: maxX - minX + 1,
		H: maxY - minY + 1,
	}, true
}
