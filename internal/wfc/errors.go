package wfc

import "errors"

// Build validation and training errors.
var (
	ErrZeroMaps           = errors.New("wfc: no example maps provided")
	ErrNullMaps           = errors.New("wfc: example map has no layers")
	ErrMismatchedLayers   = errors.New("wfc: example maps disagree on layer count")
	ErrInvalidCommonality = errors.New("wfc: commonality weights must be non-negative with a positive total")
	ErrNumericFault       = errors.New("wfc: numeric fault during training, lower the starting learning rate")
	ErrCancelled          = errors.New("wfc: build cancelled")
)

// Generation errors.
var (
	ErrUnsatisfiable      = errors.New("wfc: no assignment consistent with the preset tiles")
	ErrBorderImpossible   = errors.New("wfc: no assignment satisfies the border constraints")
	ErrLayerCountMismatch = errors.New("wfc: tilemap layer count does not match the generator")
	ErrEmptyUniqueTileSet = errors.New("wfc: generator has no tiles to place")
)
