package wfc

import (
	"math"
	"math/rand"
)

// GeneratorWeights is the dense parameter tensor of the per-cell softmax
// classifier: one weight per (class, neighborhood position, feature) triple
// plus a per-class bias. The feature axis covers every tile index, one
// "uncollapsed" slot, and four border-flag slots; border slots whose
// direction is not acknowledged keep their initial values and stay unused.
type GeneratorWeights struct {
	classes  int // distinct tile count
	side     int // neighborhood side, 2*radius+1
	features int // classes + 1 uncollapsed + 4 border flags
	weights  []float64
	biases   []float64

	// Epochs counts training epochs cumulatively across runs.
	Epochs int

	// AcknowledgeBounds selects which region borders contribute a one-hot
	// feature when a neighborhood cell falls beyond them.
	AcknowledgeBounds BorderFlags
}

// borderFeatureCount is the number of extra feature slots after the
// uncollapsed slot, one per region border.
const borderFeatureCount = 4

// NewGeneratorWeights creates a tensor for the given class count and
// neighborhood radius, with weights drawn uniformly from the Xavier bound
// 1/sqrt(area) and biases set to 1.
func NewGeneratorWeights(classes, radius int, acknowledge BorderFlags, rng *rand.Rand) *GeneratorWeights {
	w := newZeroWeights(classes, radius, acknowledge)
	area := float64(w.side * w.side)
	bound := 1.0 / math.Sqrt(area)
	for i := range w.weights {
		w.weights[i] = (rng.Float64()*2 - 1) * bound
	}
	for i := range w.biases {
		w.biases[i] = 1.0
	}
	return w
}

// NewGeneratorWeightsFromRaw rebuilds a tensor from persisted values. The
// slices are adopted, not copied.
func NewGeneratorWeightsFromRaw(classes, radius int, acknowledge BorderFlags, weights, biases []float64, epochs int) *GeneratorWeights {
	w := newZeroWeights(classes, radius, acknowledge)
	if len(weights) != len(w.weights) || len(biases) != len(w.biases) {
		panic("wfc: raw weight dimensions do not match classes and radius")
	}
	w.weights = weights
	w.biases = biases
	w.Epochs = epochs
	return w
}

func newZeroWeights(classes, radius int, acknowledge BorderFlags) *GeneratorWeights {
	side := 2*radius + 1
	features := classes + 1 + borderFeatureCount
	return &GeneratorWeights{
		classes:           classes,
		side:              side,
		features:          features,
		weights:           make([]float64, classes*side*side*features),
		biases:            make([]float64, classes),
		AcknowledgeBounds: acknowledge,
	}
}

// Classes returns the number of output classes.
func (w *GeneratorWeights) Classes() int {
	return w.classes
}

// Side returns the neighborhood side length.
func (w *GeneratorWeights) Side() int {
	return w.side
}

// Radius returns the neighborhood radius.
func (w *GeneratorWeights) Radius() int {
	return (w.side - 1) / 2
}

// Features returns the size of the feature axis.
func (w *GeneratorWeights) Features() int {
	return w.features
}

// Feature indices after the per-tile slots.
func (w *GeneratorWeights) featureUncollapsed() int { return w.classes }
func (w *GeneratorWeights) featureBorder(d Direction) int {
	switch d {
	case DirTop:
		return w.classes + 1
	case DirBottom:
		return w.classes + 2
	case DirLeft:
		return w.classes + 3
	case DirRight:
		return w.classes + 4
	}
	return w.classes
}

func (w *GeneratorWeights) index(class, nx, ny, feature int) int {
	return ((class*w.side+ny)*w.side+nx)*w.features + feature
}

// At returns the weight for (class, neighborhood position, feature).
func (w *GeneratorWeights) At(class, nx, ny, feature int) float64 {
	return w.weights[w.index(class, nx, ny, feature)]
}

// Add applies an additive update to one weight.
func (w *GeneratorWeights) Add(class, nx, ny, feature int, delta float64) {
	w.weights[w.index(class, nx, ny, feature)] += delta
}

// Bias returns the bias for a class.
func (w *GeneratorWeights) Bias(class int) float64 {
	return w.biases[class]
}

// AddBias applies an additive update to one bias.
func (w *GeneratorWeights) AddBias(class int, delta float64) {
	w.biases[class] += delta
}

// RawWeights exposes the backing weight slice for persistence. Callers must
// not mutate it.
func (w *GeneratorWeights) RawWeights() []float64 {
	return w.weights
}

// RawBiases exposes the backing bias slice for persistence. Callers must
// not mutate it.
func (w *GeneratorWeights) RawBiases() []float64 {
	return w.biases
}
