package wfc

// ConnectivityMode selects which neighbor directions participate in
// adjacency learning and constraint propagation.
type ConnectivityMode int

const (
	ModeFour  ConnectivityMode = iota // cardinal neighbors only
	ModeEight                         // cardinals plus diagonals
	ModeHex                           // hex rows, diagonals offset by row parity
)

// String returns the string representation of a ConnectivityMode.
func (m ConnectivityMode) String() string {
	switch m {
	case ModeFour:
		return "four"
	case ModeEight:
		return "eight"
	case ModeHex:
		return "hex"
	default:
		return "unknown"
	}
}

// Direction identifies a neighbor offset relative to a cell. Top points
// toward increasing y, Bottom toward decreasing y.
type Direction int

const (
	DirTop Direction = iota
	DirBottom
	DirLeft
	DirRight
	DirTopLeft
	DirTopRight
	DirBottomLeft
	DirBottomRight
	directionCount
)

// String returns the string representation of a Direction.
func (d Direction) String() string {
	switch d {
	case DirTop:
		return "top"
	case DirBottom:
		return "bottom"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	case DirTopLeft:
		return "top_left"
	case DirTopRight:
		return "top_right"
	case DirBottomLeft:
		return "bottom_left"
	case DirBottomRight:
		return "bottom_right"
	default:
		return "unknown"
	}
}

// Opposite returns the direction pointing back at the caller. The diagonal
// pairs TopLeft/BottomRight and TopRight/BottomLeft also hold under the hex
// row-parity offsets: following a diagonal and then its opposite always
// returns to the starting cell.
func (d Direction) Opposite() Direction {
	switch d {
	case DirTop:
		return DirBottom
	case DirBottom:
		return DirTop
	case DirLeft:
		return DirRight
	case DirRight:
		return DirLeft
	case DirTopLeft:
		return DirBottomRight
	case DirTopRight:
		return DirBottomLeft
	case DirBottomLeft:
		return DirTopRight
	case DirBottomRight:
		return DirTopLeft
	default:
		return d
	}
}

var (
	fourDirections  = []Direction{DirTop, DirBottom, DirLeft, DirRight}
	eightDirections = []Direction{
		DirTop, DirBottom, DirLeft, DirRight,
		DirTopLeft, DirTopRight, DirBottomLeft, DirBottomRight,
	}
	hexDirections = []Direction{
		DirLeft, DirRight,
		DirTopLeft, DirTopRight, DirBottomLeft, DirBottomRight,
	}
)

// Directions returns the directions supported by the mode.
func (m ConnectivityMode) Directions() []Direction {
	switch m {
	case ModeEight:
		return eightDirections
	case ModeHex:
		return hexDirections
	default:
		return fourDirections
	}
}

// Neighbor returns the coordinates of the neighbor of (x, y) in direction d.
// startY anchors hex row parity so that example maps and generation regions
// agree on which rows are offset; rows where |y - startY| is odd shift their
// diagonal neighbors one cell right. ok is false when the mode does not
// support the direction.
func (m ConnectivityMode) Neighbor(x, y int, d Direction, startY int) (nx, ny int, ok bool) {
	if d == DirLeft {
		return x - 1, y, true
	}
	if d == DirRight {
		return x + 1, y, true
	}

	switch m {
	case ModeFour:
		switch d {
		case DirTop:
			return x, y + 1, true
		case DirBottom:
			return x, y - 1, true
		}
		return x, y, false

	case ModeEight:
		switch d {
		case DirTop:
			return x, y + 1, true
		case DirBottom:
			return x, y - 1, true
		case DirTopLeft:
			return x - 1, y + 1, true
		case DirTopRight:
			return x + 1, y + 1, true
		case DirBottomLeft:
			return x - 1, y - 1, true
		case DirBottomRight:
			return x + 1, y - 1, true
		}
		return x, y, false

	case ModeHex:
		odd := (y-startY)%2 != 0
		shift := 0
		if odd {
			shift = 1
		}
		switch d {
		case DirBottomRight:
			return x + shift, y - 1, true
		case DirBottomLeft:
			return x + shift - 1, y - 1, true
		case DirTopRight:
			return x + shift, y + 1, true
		case DirTopLeft:
			return x + shift - 1, y + 1, true
		}
		return x, y, false
	}
	return x, y, false
}

// borderFor maps a missing neighbor in direction d to the border it falls
// beyond, for border-connectivity enforcement. Hex diagonals only bind to
// the bottom border on row 0 and the top border on the last row; elsewhere
// a hex diagonal leaving the region sideways carries no border constraint.
func (m ConnectivityMode) borderFor(d Direction, y, h int) (Direction, bool) {
	switch d {
	case DirTop, DirBottom, DirLeft, DirRight:
		return d, true
	}
	if m != ModeHex {
		return 0, false
	}
	switch d {
	case DirBottomLeft, DirBottomRight:
		if y == 0 {
			return DirBottom, true
		}
	case DirTopLeft, DirTopRight:
		if y == h-1 {
			return DirTop, true
		}
	}
	return 0, false
}

// BorderFlags selects a subset of the four region borders.
type BorderFlags struct {
	Top    bool
	Bottom bool
	Left   bool
	Right  bool
}

// Has reports whether the border in the given direction is selected.
// Only the four cardinal directions name borders.
func (f BorderFlags) Has(d Direction) bool {
	switch d {
	case DirTop:
		return f.Top
	case DirBottom:
		return f.Bottom
	case DirLeft:
		return f.Left
	case DirRight:
		return f.Right
	default:
		return false
	}
}

// Any reports whether at least one border is selected.
func (f BorderFlags) Any() bool {
	return f.Top || f.Bottom || f.Left || f.Right
}
