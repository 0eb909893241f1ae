package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

// Fixture file structures. Each example layer is a list of row strings
// whose characters index the palette; "." marks an empty cell. Row 0 of
// the file is the top of the map, so rows are flipped into y-up order on
// load.
type fixtureFile struct {
	Palette  map[string]string `yaml:"palette"`
	Examples []fixtureExample  `yaml:"examples"`
	Preset   *fixtureGrid      `yaml:"preset"`
}

type fixtureExample struct {
	Commonality float64   `yaml:"commonality"`
	Layers      [][]string `yaml:"layers"`
}

type fixtureGrid struct {
	Layers [][]string `yaml:"layers"`
}

// fixture is the parsed form: examples ready for the builder plus an
// optional preset grid and the palette for rendering.
type fixture struct {
	palette  map[rune]tilemap.StringHandle
	examples []wfc.ExampleMap
	preset   *fixtureGrid
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing fixture file: %w", err)
	}
	if len(file.Examples) == 0 {
		return nil, fmt.Errorf("fixture file has no examples")
	}

	palette := make(map[rune]tilemap.StringHandle, len(file.Palette))
	for key, name := range file.Palette {
		runes := []rune(key)
		if len(runes) != 1 {
			return nil, fmt.Errorf("palette key %q must be a single character", key)
		}
		palette[runes[0]] = tilemap.StringHandle(name)
	}

	f := &fixture{palette: palette, preset: file.Preset}
	for i, ex := range file.Examples {
		commonality := ex.Commonality
		if commonality == 0 {
			commonality = 1
		}
		layers, region, err := parseLayers(ex.Layers, palette)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		f.examples = append(f.examples, wfc.ExampleMap{
			Region:      region,
			Layers:      layers,
			Commonality: commonality,
		})
	}
	return f, nil
}

// parseLayers converts row strings into handle grids, validating that every
// layer has the same dimensions.
func parseLayers(layerRows [][]string, palette map[rune]tilemap.StringHandle) ([][]tilemap.Handle, tilemap.Region, error) {
	if len(layerRows) == 0 {
		return nil, tilemap.Region{}, fmt.Errorf("no layers")
	}
	h := len(layerRows[0])
	w := len([]rune(layerRows[0][0]))
	region := tilemap.Region{W: w, H: h}

	layers := make([][]tilemap.Handle, len(layerRows))
	for l, rows := range layerRows {
		if len(rows) != h {
			return nil, tilemap.Region{}, fmt.Errorf("layer %d has %d rows, layer 0 has %d", l, len(rows), h)
		}
		grid := make([]tilemap.Handle, w*h)
		for fileRow, row := range rows {
			runes := []rune(row)
			if len(runes) != w {
				return nil, tilemap.Region{}, fmt.Errorf("layer %d row %d has %d cells, want %d", l, fileRow, len(runes), w)
			}
			y := h - 1 - fileRow
			for x, r := range runes {
				if r == '.' {
					continue
				}
				handle, ok := palette[r]
				if !ok {
					return nil, tilemap.Region{}, fmt.Errorf("layer %d row %d: character %q not in palette", l, fileRow, string(r))
				}
				grid[y*w+x] = handle
			}
		}
		layers[l] = grid
	}
	return layers, region, nil
}

// applyPreset writes the preset grid's tiles into the adapter, anchored at
// the region origin.
func applyPreset(preset *fixtureGrid, palette map[rune]tilemap.StringHandle, tm *tilemap.MemoryAdapter, region tilemap.Region) error {
	layers, presetRegion, err := parseLayers(preset.Layers, palette)
	if err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	if presetRegion.W > region.W || presetRegion.H > region.H {
		return fmt.Errorf("preset %dx%d does not fit the %dx%d output region",
			presetRegion.W, presetRegion.H, region.W, region.H)
	}
	for l := range layers {
		for y := 0; y < presetRegion.H; y++ {
			for x := 0; x < presetRegion.W; x++ {
				if h := layers[l][y*presetRegion.W+x]; h != nil {
					tm.Set(l, region.X+x, region.Y+y, h)
				}
			}
		}
	}
	return nil
}

// renderLayer draws one layer of the adapter as rows of palette
// characters, top row first. Unknown tiles render as "?", empty cells as
// ".".
func renderLayer(tm *tilemap.MemoryAdapter, layer int, region tilemap.Region, palette map[rune]tilemap.StringHandle) string {
	reverse := make(map[tilemap.StringHandle]rune, len(palette))
	for r, h := range palette {
		reverse[h] = r
	}
	var sb strings.Builder
	for y := region.H - 1; y >= 0; y-- {
		for x := 0; x < region.W; x++ {
			h := tm.Get(layer, region.X+x, region.Y+y)
			switch v := h.(type) {
			case nil:
				sb.WriteRune('.')
			case tilemap.StringHandle:
				if r, ok := reverse[v]; ok {
					sb.WriteRune(r)
				} else {
					sb.WriteRune('?')
				}
			default:
				sb.WriteRune('?')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
