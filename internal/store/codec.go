// Package store persists trained generators: a self-contained binary codec
// with payload checksumming, and a SQL-backed store supporting SQLite and
// PostgreSQL.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

var (
	// ErrChecksum means the payload was corrupted after serialization.
	ErrChecksum = errors.New("store: generator payload checksum mismatch")

	// ErrFormat means the payload is not a serialized generator this
	// version understands.
	ErrFormat = errors.New("store: unrecognized generator payload")
)

var codecMagic = [4]byte{'T', 'G', 'E', 'N'}

const codecVersion uint16 = 1

// Codec serializes generators to a self-contained blob. Weights are stored
// in full double precision so a deserialized generator reproduces the
// original's output bit for bit.
type Codec struct {
	Handles tilemap.HandleCodec
}

// Encode serializes the generator and appends a BLAKE2b-256 checksum of
// the payload.
func (c Codec) Encode(g *wfc.Generator) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(codecMagic[:])
	w := func(v any) {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	w(codecVersion)

	tiles := g.Tiles
	w(uint32(tiles.LayerCount()))
	w(uint32(tiles.Len()))
	w(int32(tiles.EmptyIndex()))
	for i := 0; i < tiles.Len(); i++ {
		t := tiles.At(i)
		for _, h := range t.Layers {
			if h == nil {
				w(uint8(0))
				continue
			}
			data, err := c.Handles.EncodeHandle(h)
			if err != nil {
				return nil, fmt.Errorf("store: encoding tile %d: %w", i, err)
			}
			w(uint8(1))
			w(uint32(len(data)))
			buf.Write(data)
		}
	}

	w(uint32(g.Radius))
	w(uint8(g.Mode))
	w(packBorderFlags(g.EnforceBorders))
	w(packBorderFlags(g.AcknowledgeBounds))
	w(boolByte(g.EmptyAsTile))
	w(uint64(g.Weights.Epochs))

	w(g.Weights.RawBiases())
	w(g.Weights.RawWeights())

	unique := g.Conn.Unique()
	for _, d := range g.Mode.Directions() {
		for a := 0; a < unique; a++ {
			for b := 0; b < unique; b++ {
				w(boolByte(g.Conn.Get(d, a, b)))
			}
		}
	}
	for _, d := range borderDirections() {
		for a := 0; a < unique; a++ {
			w(boolByte(g.Conn.GetBorder(d, a)))
		}
	}

	payload := buf.Bytes()
	sum := blake2b.Sum256(payload)
	return append(payload, sum[:]...), nil
}

// Decode verifies the checksum and rebuilds the generator.
func (c Codec) Decode(data []byte) (*wfc.Generator, error) {
	if len(data) < blake2b.Size256+len(codecMagic) {
		return nil, ErrFormat
	}
	payload := data[:len(data)-blake2b.Size256]
	sum := blake2b.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(payload):]) {
		return nil, ErrChecksum
	}
	if !bytes.Equal(payload[:4], codecMagic[:]) {
		return nil, ErrFormat
	}

	r := bytes.NewReader(payload[4:])
	read := func(v any) error {
		return binary.Read(r, binary.LittleEndian, v)
	}

	var version uint16
	if err := read(&version); err != nil || version != codecVersion {
		return nil, ErrFormat
	}

	var layerCount, unique uint32
	var emptyIndex int32
	if err := read(&layerCount); err != nil {
		return nil, ErrFormat
	}
	if err := read(&unique); err != nil {
		return nil, ErrFormat
	}
	if err := read(&emptyIndex); err != nil {
		return nil, ErrFormat
	}

	tiles := wfc.NewTileSet(int(layerCount))
	for i := 0; i < int(unique); i++ {
		t := wfc.LayeredTile{Layers: make([]tilemap.Handle, layerCount)}
		for l := 0; l < int(layerCount); l++ {
			var present uint8
			if err := read(&present); err != nil {
				return nil, ErrFormat
			}
			if present == 0 {
				continue
			}
			var n uint32
			if err := read(&n); err != nil {
				return nil, ErrFormat
			}
			raw := make([]byte, n)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, ErrFormat
			}
			h, err := c.Handles.DecodeHandle(raw)
			if err != nil {
				return nil, fmt.Errorf("store: decoding tile %d layer %d: %w", i, l, err)
			}
			t.Layers[l] = h
		}
		tiles.Intern(t)
	}
	if emptyIndex >= 0 {
		tiles.RestoreEmptyIndex(int(emptyIndex))
	}

	var radius uint32
	var mode, enforce, acknowledge, emptyAsTile uint8
	var epochs uint64
	if err := read(&radius); err != nil {
		return nil, ErrFormat
	}
	if err := read(&mode); err != nil {
		return nil, ErrFormat
	}
	if err := read(&enforce); err != nil {
		return nil, ErrFormat
	}
	if err := read(&acknowledge); err != nil {
		return nil, ErrFormat
	}
	if err := read(&emptyAsTile); err != nil {
		return nil, ErrFormat
	}
	if err := read(&epochs); err != nil {
		return nil, ErrFormat
	}

	connectivityMode := wfc.ConnectivityMode(mode)
	acknowledgeFlags := unpackBorderFlags(acknowledge)

	side := 2*int(radius) + 1
	features := int(unique) + 5
	biases := make([]float64, unique)
	weights := make([]float64, int(unique)*side*side*features)
	if err := read(biases); err != nil {
		return nil, ErrFormat
	}
	if err := read(weights); err != nil {
		return nil, ErrFormat
	}
	tensor := wfc.NewGeneratorWeightsFromRaw(int(unique), int(radius), acknowledgeFlags, weights, biases, int(epochs))

	conn := wfc.NewConnectivityTable(connectivityMode, int(unique))
	var flag uint8
	for _, d := range connectivityMode.Directions() {
		for a := 0; a < int(unique); a++ {
			for b := 0; b < int(unique); b++ {
				if err := read(&flag); err != nil {
					return nil, ErrFormat
				}
				if flag != 0 {
					conn.Set(d, a, b)
				}
			}
		}
	}
	for _, d := range borderDirections() {
		for a := 0; a < int(unique); a++ {
			if err := read(&flag); err != nil {
				return nil, ErrFormat
			}
			if flag != 0 {
				conn.SetBorder(d, a)
			}
		}
	}

	return &wfc.Generator{
		Tiles:             tiles,
		Conn:              conn,
		Weights:           tensor,
		Radius:            int(radius),
		Mode:              connectivityMode,
		EnforceBorders:    unpackBorderFlags(enforce),
		AcknowledgeBounds: acknowledgeFlags,
		EmptyAsTile:       emptyAsTile != 0,
	}, nil
}

func borderDirections() []wfc.Direction {
	return []wfc.Direction{wfc.DirTop, wfc.DirBottom, wfc.DirLeft, wfc.DirRight}
}

func packBorderFlags(f wfc.BorderFlags) uint8 {
	var b uint8
	if f.Top {
		b |= 1
	}
	if f.Bottom {
		b |= 2
	}
	if f.Left {
		b |= 4
	}
	if f.Right {
		b |= 8
	}
	return b
}

func unpackBorderFlags(b uint8) wfc.BorderFlags {
	return wfc.BorderFlags{
		Top:    b&1 != 0,
		Bottom: b&2 != 0,
		Left:   b&4 != 0,
		Right:  b&8 != 0,
	}
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
