package wfc

import (
	"math"
	"math/rand"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// lossEpsilon keeps the cross-entropy loss finite when a probability
// rounds to zero.
const lossEpsilon = 1e-12

// Engine drives cell-by-cell prediction over one region. It orders cells by
// how collapsed their neighborhoods are, scores candidate tiles with the
// weight tensor plus Gumbel noise, and either trains toward a known tile or
// samples a collapse. Coordinates are local to the region.
type Engine struct {
	weights     *GeneratorWeights
	radius      int
	region      tilemap.Region
	temperature float64
	rng         *rand.Rand

	collapsed []int     // tile index per cell, -1 while uncollapsed
	skipped   []bool
	noise     []float64 // per-cell tie-break, redrawn on Reset
	neighbors []int     // collapsed count within each cell's neighborhood
	remaining int
}

// NewEngine creates an engine over the region and resets it.
func NewEngine(weights *GeneratorWeights, region tilemap.Region, temperature float64, rng *rand.Rand) *Engine {
	e := &Engine{
		weights:     weights,
		radius:      weights.Radius(),
		region:      region,
		temperature: temperature,
		rng:         rng,
		collapsed:   make([]int, region.Area()),
		skipped:     make([]bool, region.Area()),
		noise:       make([]float64, region.Area()),
		neighbors:   make([]int, region.Area()),
	}
	e.Reset()
	return e
}

// Reset clears all collapse state and draws fresh tie-break noise.
func (e *Engine) Reset() {
	for i := range e.collapsed {
		e.collapsed[i] = -1
		e.skipped[i] = false
		e.neighbors[i] = 0
		e.noise[i] = e.rng.Float64()
	}
	e.remaining = e.region.Area()
}

// Done reports whether every cell has been collapsed or skipped.
func (e *Engine) Done() bool {
	return e.remaining == 0
}

// NextPos returns the uncollapsed cell with the most collapsed neighbors,
// ties broken by the per-cell noise drawn at reset. ok is false when no
// cell remains.
func (e *Engine) NextPos() (x, y int, ok bool) {
	best := -1
	bestScore := math.Inf(-1)
	for i := range e.collapsed {
		if e.collapsed[i] >= 0 || e.skipped[i] {
			continue
		}
		score := float64(e.neighbors[i]) + e.noise[i]
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best % e.region.W, best / e.region.W, true
}

// Collapsed returns the tile index a cell was collapsed to, or -1.
func (e *Engine) Collapsed(x, y int) int {
	return e.collapsed[y*e.region.W+x]
}

// MarkCollapsed records a collapse at (x, y), raising the priority of every
// cell whose neighborhood contains it.
func (e *Engine) MarkCollapsed(x, y, tile int) {
	i := y*e.region.W + x
	if e.collapsed[i] >= 0 {
		return
	}
	e.collapsed[i] = tile
	if !e.skipped[i] {
		e.remaining--
	}
	for dy := -e.radius; dy <= e.radius; dy++ {
		for dx := -e.radius; dx <= e.radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if e.region.Contains(nx, ny) {
				e.neighbors[ny*e.region.W+nx]++
			}
		}
	}
}

// Skip marks a cell as passed over without a collapse; it still counts as
// uncollapsed in its neighbors' features.
func (e *Engine) Skip(x, y int) {
	i := y*e.region.W + x
	if e.skipped[i] || e.collapsed[i] >= 0 {
		return
	}
	e.skipped[i] = true
	e.remaining--
}

// featureAt returns the active feature index for the neighborhood cell
// (nx, ny) of the target at (x, y). The target itself always reads as
// uncollapsed. Cells beyond an acknowledged border read as that border's
// flag; beyond an unacknowledged border they read as uncollapsed.
func (e *Engine) featureAt(x, y, nx, ny int) int {
	if nx == e.radius && ny == e.radius {
		return e.weights.featureUncollapsed()
	}
	cx, cy := x+nx-e.radius, y+ny-e.radius
	if !e.region.Contains(cx, cy) {
		ack := e.weights.AcknowledgeBounds
		switch {
		case cy >= e.region.H && ack.Top:
			return e.weights.featureBorder(DirTop)
		case cy < 0 && ack.Bottom:
			return e.weights.featureBorder(DirBottom)
		case cx < 0 && ack.Left:
			return e.weights.featureBorder(DirLeft)
		case cx >= e.region.W && ack.Right:
			return e.weights.featureBorder(DirRight)
		}
		return e.weights.featureUncollapsed()
	}
	if t := e.collapsed[cy*e.region.W+cx]; t >= 0 {
		return t
	}
	return e.weights.featureUncollapsed()
}

// logits computes the raw class scores for the cell at (x, y).
func (e *Engine) logits(x, y int) []float64 {
	side := e.weights.Side()
	z := make([]float64, e.weights.Classes())
	for c := range z {
		z[c] = e.weights.Bias(c)
		for ny := 0; ny < side; ny++ {
			for nx := 0; nx < side; nx++ {
				z[c] += e.weights.At(c, nx, ny, e.featureAt(x, y, nx, ny))
			}
		}
	}
	return z
}

// Probabilities returns the softmax over logits plus temperature-scaled
// Gumbel noise for the cell at (x, y). The max is subtracted before
// exponentiation for numerical stability.
func (e *Engine) Probabilities(x, y int) []float64 {
	z := e.logits(x, y)
	scale := math.Exp(e.temperature)
	for c := range z {
		u := e.rng.Float64()
		for u == 0 {
			u = e.rng.Float64()
		}
		z[c] += -math.Log(-math.Log(u)) * scale
	}
	max := math.Inf(-1)
	for _, v := range z {
		if v > max {
			max = v
		}
	}
	var sum float64
	for c := range z {
		z[c] = math.Exp(z[c] - max)
		sum += z[c]
	}
	for c := range z {
		z[c] /= sum
	}
	return z
}

// Collapse samples a collapse for (x, y): the highest-probability class
// among those permitted by the domain, or among all classes when domain is
// nil. The cell is marked collapsed to the chosen class.
func (e *Engine) Collapse(x, y int, domain *IndexSet) int {
	p := e.Probabilities(x, y)
	best := -1
	bestP := math.Inf(-1)
	for c := range p {
		if domain != nil && !domain.Contains(c) {
			continue
		}
		if p[c] > bestP {
			best = c
			bestP = p[c]
		}
	}
	if best < 0 {
		// Empty domain; fall back to the unrestricted argmax.
		for c := range p {
			if p[c] > bestP {
				best = c
				bestP = p[c]
			}
		}
	}
	e.MarkCollapsed(x, y, best)
	return best
}

// Train runs one cross-entropy gradient step at (x, y) toward the true
// class and returns the loss. The cell is not marked collapsed; callers do
// that separately so skipped cells can share the code path.
func (e *Engine) Train(x, y, target int, lr float64) (float64, error) {
	p := e.Probabilities(x, y)
	side := e.weights.Side()
	for c := range p {
		grad := p[c]
		if c == target {
			grad -= 1
		}
		e.weights.AddBias(c, -lr*grad)
		for ny := 0; ny < side; ny++ {
			for nx := 0; nx < side; nx++ {
				e.weights.Add(c, nx, ny, e.featureAt(x, y, nx, ny), -lr*grad)
			}
		}
	}
	loss := -math.Log(p[target] + lossEpsilon)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, ErrNumericFault
	}
	for c := range p {
		if math.IsNaN(e.weights.Bias(c)) {
			return 0, ErrNumericFault
		}
	}
	return loss, nil
}
