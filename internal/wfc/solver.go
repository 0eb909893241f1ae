package wfc

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/lawnchairsociety/tilegen/internal/tilemap"
)

// trailEntry records one domain removal so a trial can be undone exactly.
type trailEntry struct {
	cell  int
	value int
}

// arc pairs a cell with the direction of the neighbor it must stay
// consistent with.
type arc struct {
	cell int
	dir  Direction
}

// highPriority is a border cell whose preexisting tiles constrained its
// candidates; it is assigned first so user-placed border tiles are honored
// where possible.
type highPriority struct {
	cell       int
	candidates *IndexSet
}

// frame is one node of the linearized backtracking search. Search state
// lives on this explicit stack rather than the call stack so large regions
// cannot overflow and unwinding stays cheap.
type frame struct {
	cell     int
	hpIndex  int // index into the high-priority list, -1 for normal cells
	values   []int
	cursor   int
	trail    []trailEntry
	awaiting bool // a child frame is (or was) exploring below this trial
}

// bigKey pins a value to the front of an ordering regardless of its
// heuristic score.
const bigKey = 1e9

// borderBonus makes border cells win variable-selection ties among the
// high-priority list.
const borderBonus = 1e6

// solver owns the working state of one generation run: per-cell domains,
// the commit map, the undo trails, and the search stack. It never mutates
// the generator's learned data.
type solver struct {
	gen         *Generator
	tm          tilemap.Adapter
	region      tilemap.Region
	temperature float64
	rng         *rand.Rand
	log         *slog.Logger

	w, h      int
	domains   []*IndexSet
	committed []int // tile index per cell, -1 while unassigned
	preferred []int // engine's non-binding collapse per cell
	noise     []float64
	high      []highPriority
	hpActive  []bool
	eager     []bool // written back during preparation
	open      int    // unassigned cell count
}

func newSolver(g *Generator, tm tilemap.Adapter, region tilemap.Region, temperature float64, rng *rand.Rand, log *slog.Logger) *solver {
	area := region.Area()
	s := &solver{
		gen:         g,
		tm:          tm,
		region:      region,
		temperature: temperature,
		rng:         rng,
		log:         log,
		w:           region.W,
		h:           region.H,
		domains:     make([]*IndexSet, area),
		committed:   make([]int, area),
		preferred:   make([]int, area),
		noise:       make([]float64, area),
		eager:       make([]bool, area),
		open:        area,
	}
	for i := range s.committed {
		s.committed[i] = -1
		s.preferred[i] = -1
		s.noise[i] = rng.Float64()
	}
	return s
}

// run prepares domains from the preexisting tiles, consults the engine for
// an ordering preference, establishes arc consistency, and searches. When
// the input is unsatisfiable and forceful is set, the preexisting
// constraints are discarded and the whole pipeline reruns once.
func (s *solver) run(forceful bool) error {
	feasible, err := s.prepare()
	if err != nil {
		return err
	}
	if feasible {
		s.runEngine()
		if !s.establish() {
			feasible = false
		} else if s.search() {
			return nil
		} else {
			feasible = false
		}
	}
	if !forceful {
		return ErrUnsatisfiable
	}

	s.log.Info("preset tiles unsatisfiable, retrying forcefully")
	s.forcefulReset()
	s.runEngine()
	if !s.establish() {
		return ErrBorderImpossible
	}
	if !s.search() {
		return ErrBorderImpossible
	}
	return nil
}

// prepare computes the initial domain of every cell from the preexisting
// tiles, commits and writes singletons eagerly, and records high-priority
// border cells. feasible is false when some cell's preexisting tiles admit
// no candidate.
func (s *solver) prepare() (feasible bool, err error) {
	unique := s.gen.Tiles.Len()
	layers := s.gen.Tiles.LayerCount()

	blocks := make([][]tilemap.Handle, layers)
	for l := 0; l < layers; l++ {
		blocks[l], err = s.tm.ReadBlock(l, s.region)
		if err != nil {
			return false, err
		}
	}

	feasible = true
	for i := 0; i < s.region.Area(); i++ {
		dom := NewFullIndexSet(unique)
		constrained := false
		for l := 0; l < layers; l++ {
			h := blocks[l][i]
			if h == nil {
				continue
			}
			constrained = true
			for j := dom.Count() - 1; j >= 0; j-- {
				lh := s.gen.Tiles.At(dom.At(j)).Layers[l]
				if lh == nil || !lh.Equal(h) {
					dom.RemoveAt(j)
				}
			}
		}
		s.domains[i] = dom

		if !constrained {
			continue
		}
		if dom.Count() == 0 {
			feasible = false
			continue
		}
		if s.isBorder(i) && dom.Count() < unique {
			s.high = append(s.high, highPriority{cell: i, candidates: dom.Clone()})
		}
		if dom.Count() == 1 {
			v := dom.At(0)
			s.commit(i, v)
			if werr := s.writeCell(i, v); werr != nil {
				return false, werr
			}
			s.eager[i] = true
		}
	}

	s.hpActive = make([]bool, len(s.high))
	for i, hp := range s.high {
		// Singleton cells were committed above and are already discharged.
		s.hpActive[i] = s.committed[hp.cell] < 0
	}
	return feasible, nil
}

// forcefulReset discards every preexisting constraint: all domains return
// to the full set, all commitments are dropped, and the full high-priority
// list becomes active again as a soft preference.
func (s *solver) forcefulReset() {
	unique := s.gen.Tiles.Len()
	for i := range s.domains {
		s.domains[i] = NewFullIndexSet(unique)
		s.committed[i] = -1
		s.preferred[i] = -1
		s.eager[i] = false
	}
	s.open = s.region.Area()
	for i := range s.hpActive {
		s.hpActive[i] = true
	}
}

// runEngine simulates a full collapse of the region to obtain the engine's
// preferred tile per cell and, implicitly, its cell ordering. Committed
// cells seed the engine's neighborhood features.
func (s *solver) runEngine() {
	eng := NewEngine(s.gen.Weights, s.region, s.temperature, s.rng)
	for i, v := range s.committed {
		if v >= 0 {
			eng.MarkCollapsed(i%s.w, i/s.w, v)
			s.preferred[i] = v
		}
	}
	for !eng.Done() {
		x, y, ok := eng.NextPos()
		if !ok {
			break
		}
		i := y*s.w + x
		s.preferred[i] = eng.Collapse(x, y, s.domains[i])
	}
}

// establish runs AC-3 over every cell/direction pair. On success the
// prunings stay in place for the search; on failure the trail is fully
// reverted before returning.
func (s *solver) establish() bool {
	dirs := s.gen.Mode.Directions()

	// Revision never touches committed cells, so committed neighbors (and
	// committed cells on enforced borders) are checked directly.
	for i, v := range s.committed {
		if v < 0 {
			continue
		}
		x, y := i%s.w, i/s.w
		for _, d := range dirs {
			nx, ny, ok := s.gen.Mode.Neighbor(x, y, d, 0)
			if !ok {
				continue
			}
			if !s.region.Contains(nx, ny) {
				border, bok := s.gen.Mode.borderFor(d, y, s.h)
				if bok && s.gen.EnforceBorders.Has(border) && !s.gen.Conn.GetBorder(border, v) {
					return false
				}
				continue
			}
			if b := s.committed[ny*s.w+nx]; b >= 0 && !s.gen.Conn.Get(d, v, b) {
				return false
			}
		}
	}

	queue := make([]arc, 0, s.region.Area()*len(dirs))
	for i := 0; i < s.region.Area(); i++ {
		for _, d := range dirs {
			queue = append(queue, arc{cell: i, dir: d})
		}
	}
	var trail []trailEntry
	if !s.propagate(queue, &trail) {
		s.revert(trail)
		return false
	}
	return true
}

// propagate drains the arc queue, revising each cell against its neighbor
// and re-enqueueing the neighbors of any cell whose domain shrank. Every
// removal lands on the trail. Returns false as soon as a domain empties.
func (s *solver) propagate(queue []arc, trail *[]trailEntry) bool {
	dirs := s.gen.Mode.Directions()
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		changed, empty := s.revise(a.cell, a.dir, trail)
		if empty {
			return false
		}
		if !changed {
			continue
		}
		x, y := a.cell%s.w, a.cell/s.w
		for _, d := range dirs {
			nx, ny, ok := s.gen.Mode.Neighbor(x, y, d, 0)
			if !ok || !s.region.Contains(nx, ny) {
				continue
			}
			n := ny*s.w + nx
			if s.committed[n] >= 0 {
				continue
			}
			queue = append(queue, arc{cell: n, dir: d.Opposite()})
		}
	}
	return true
}

// revise removes from the cell's domain every value with no supporter in
// the neighbor along d. A committed neighbor supports exactly the observed
// pairs with its value; an uncommitted neighbor supports a value when any
// of its remaining candidates was observed; a missing neighbor on an
// enforced border supports the tiles observed on that border.
func (s *solver) revise(cell int, d Direction, trail *[]trailEntry) (changed, empty bool) {
	if s.committed[cell] >= 0 {
		return false, false
	}
	x, y := cell%s.w, cell/s.w
	nx, ny, ok := s.gen.Mode.Neighbor(x, y, d, 0)
	if !ok {
		return false, false
	}
	dom := s.domains[cell]

	if !s.region.Contains(nx, ny) {
		border, bok := s.gen.Mode.borderFor(d, y, s.h)
		if !bok || !s.gen.EnforceBorders.Has(border) {
			return false, false
		}
		for i := dom.Count() - 1; i >= 0; i-- {
			v := dom.At(i)
			if !s.gen.Conn.GetBorder(border, v) {
				dom.RemoveAt(i)
				*trail = append(*trail, trailEntry{cell: cell, value: v})
				changed = true
			}
		}
		return changed, dom.Count() == 0
	}

	n := ny*s.w + nx
	if b := s.committed[n]; b >= 0 {
		for i := dom.Count() - 1; i >= 0; i-- {
			v := dom.At(i)
			if !s.gen.Conn.Get(d, v, b) {
				dom.RemoveAt(i)
				*trail = append(*trail, trailEntry{cell: cell, value: v})
				changed = true
			}
		}
		return changed, dom.Count() == 0
	}

	ndom := s.domains[n]
	for i := dom.Count() - 1; i >= 0; i-- {
		v := dom.At(i)
		supported := false
		for j := 0; j < ndom.Count(); j++ {
			if s.gen.Conn.Get(d, v, ndom.At(j)) {
				supported = true
				break
			}
		}
		if !supported {
			dom.RemoveAt(i)
			*trail = append(*trail, trailEntry{cell: cell, value: v})
			changed = true
		}
	}
	return changed, dom.Count() == 0
}

// revert replays a trail backwards, restoring every removed value.
func (s *solver) revert(trail []trailEntry) {
	for i := len(trail) - 1; i >= 0; i-- {
		s.domains[trail[i].cell].Add(trail[i].value)
	}
}

func (s *solver) commit(cell, value int) {
	s.committed[cell] = value
	s.open--
}

func (s *solver) uncommit(cell int) {
	s.committed[cell] = -1
	s.open++
}

func (s *solver) isBorder(cell int) bool {
	x, y := cell%s.w, cell/s.w
	return x == 0 || y == 0 || x == s.w-1 || y == s.h-1
}

// selectVar picks the next cell to assign: the smallest noisy domain among
// active high-priority cells if any remain (border cells win ties), else
// the smallest noisy domain overall with a bonus when the engine's
// preferred value is still available.
func (s *solver) selectVar() (cell, hpIndex int) {
	best, bestHP := -1, -1
	bestKey := math.Inf(1)
	for idx, hp := range s.high {
		if !s.hpActive[idx] || s.committed[hp.cell] >= 0 {
			continue
		}
		key := float64(s.domains[hp.cell].Count()) + s.noise[hp.cell]
		if s.isBorder(hp.cell) {
			key -= borderBonus
		}
		if key < bestKey {
			best, bestHP, bestKey = hp.cell, idx, key
		}
	}
	if best >= 0 {
		return best, bestHP
	}
	for i := range s.committed {
		if s.committed[i] >= 0 {
			continue
		}
		key := float64(s.domains[i].Count()) + s.noise[i]
		if s.domains[i].Contains(s.preferred[i]) {
			key -= 1
		}
		if key < bestKey {
			best, bestKey = i, key
		}
	}
	return best, -1
}

// orderValues returns the cell's candidates sorted least-constraining
// first. The engine's preferred value is pinned to the front for normal
// cells; for high-priority cells the whole original candidate set is
// pinned, itself in LCV order.
func (s *solver) orderValues(cell, hpIndex int) []int {
	dom := s.domains[cell]
	values := make([]int, dom.Count())
	keys := make(map[int]float64, dom.Count())
	for i := 0; i < dom.Count(); i++ {
		v := dom.At(i)
		values[i] = v
		keys[v] = float64(s.lcv(cell, v))
	}
	if hpIndex >= 0 {
		cand := s.high[hpIndex].candidates
		for _, v := range values {
			if cand.Contains(v) {
				keys[v] -= bigKey
			}
		}
	} else if p := s.preferred[cell]; p >= 0 && dom.Contains(p) {
		keys[p] -= bigKey
	}
	sort.SliceStable(values, func(i, j int) bool {
		return keys[values[i]] < keys[values[j]]
	})
	return values
}

// lcv counts the neighbor candidates that assigning value here would
// eliminate.
func (s *solver) lcv(cell, value int) int {
	x, y := cell%s.w, cell/s.w
	total := 0
	for _, d := range s.gen.Mode.Directions() {
		nx, ny, ok := s.gen.Mode.Neighbor(x, y, d, 0)
		if !ok || !s.region.Contains(nx, ny) {
			continue
		}
		n := ny*s.w + nx
		if s.committed[n] >= 0 {
			continue
		}
		total += s.gen.Conn.Eliminations(d, value, s.domains[n])
	}
	return total
}

// newFrame opens a search frame for the next selected cell, discharging it
// from the high-priority list while the frame is live.
func (s *solver) newFrame() *frame {
	cell, hpIndex := s.selectVar()
	if hpIndex >= 0 {
		s.hpActive[hpIndex] = false
	}
	return &frame{
		cell:    cell,
		hpIndex: hpIndex,
		values:  s.orderValues(cell, hpIndex),
	}
}

// search runs backtracking over the open cells on an explicit frame stack.
// Each trial commits a value, propagates from the cell, and either descends
// or reverts its trail and advances the cursor. Exhausted frames restore
// their cell to the pool (and the high-priority list) and pop.
func (s *solver) search() bool {
	if s.open == 0 {
		return true
	}
	frames := []*frame{s.newFrame()}
	for len(frames) > 0 {
		f := frames[len(frames)-1]
		if f.awaiting {
			// The child below exhausted its options; undo this trial.
			s.revert(f.trail)
			f.trail = nil
			s.uncommit(f.cell)
			f.awaiting = false
			f.cursor++
		}

		descended := false
		for f.cursor < len(f.values) {
			v := f.values[f.cursor]
			s.commit(f.cell, v)
			var trail []trailEntry
			if s.propagateFrom(f.cell, &trail) {
				f.trail = trail
				if s.open == 0 {
					return true
				}
				f.awaiting = true
				frames = append(frames, s.newFrame())
				descended = true
				break
			}
			s.revert(trail)
			s.uncommit(f.cell)
			f.cursor++
		}
		if descended {
			continue
		}

		// Exhausted: return the cell to the candidate pool.
		if f.hpIndex >= 0 {
			s.hpActive[f.hpIndex] = true
		}
		frames = frames[:len(frames)-1]
	}
	return false
}

// propagateFrom seeds AC-3 with the arcs pointing back at a freshly
// committed cell.
func (s *solver) propagateFrom(cell int, trail *[]trailEntry) bool {
	x, y := cell%s.w, cell/s.w
	queue := make([]arc, 0, 8)
	for _, d := range s.gen.Mode.Directions() {
		nx, ny, ok := s.gen.Mode.Neighbor(x, y, d, 0)
		if !ok || !s.region.Contains(nx, ny) {
			continue
		}
		n := ny*s.w + nx
		if s.committed[n] >= 0 {
			continue
		}
		queue = append(queue, arc{cell: n, dir: d.Opposite()})
	}
	return s.propagate(queue, trail)
}

// writeCell writes one assigned tile's layers back at the cell's absolute
// coordinate.
func (s *solver) writeCell(cell, value int) error {
	x, y := cell%s.w, cell/s.w
	tile := s.gen.Tiles.At(value)
	for l, h := range tile.Layers {
		if err := s.tm.WriteTile(l, s.region.X+x, s.region.Y+y, h); err != nil {
			return err
		}
	}
	return nil
}

// writeback writes every committed cell not already written during
// preparation.
func (s *solver) writeback() error {
	for i, v := range s.committed {
		if v < 0 || s.eager[i] {
			continue
		}
		if err := s.writeCell(i, v); err != nil {
			return err
		}
	}
	return nil
}
