package wfc

import "testing"

func TestDirectionOpposite(t *testing.T) {
	tests := []struct {
		dir  Direction
		want Direction
	}{
		{DirTop, DirBottom},
		{DirBottom, DirTop},
		{DirLeft, DirRight},
		{DirRight, DirLeft},
		{DirTopLeft, DirBottomRight},
		{DirTopRight, DirBottomLeft},
		{DirBottomLeft, DirTopRight},
		{DirBottomRight, DirTopLeft},
	}
	for _, tt := range tests {
		if got := tt.dir.Opposite(); got != tt.want {
			t.Errorf("%s.Opposite() = %s, want %s", tt.dir, got, tt.want)
		}
	}
}

func TestModeDirections(t *testing.T) {
	if n := len(ModeFour.Directions()); n != 4 {
		t.Errorf("four mode has %d directions, want 4", n)
	}
	if n := len(ModeEight.Directions()); n != 8 {
		t.Errorf("eight mode has %d directions, want 8", n)
	}
	if n := len(ModeHex.Directions()); n != 6 {
		t.Errorf("hex mode has %d directions, want 6", n)
	}
}

func TestHexNeighborParity(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		dir    Direction
		wantX  int
		wantY  int
	}{
		// odd row: diagonals shift one cell right
		{"odd bottom-right", 2, 1, DirBottomRight, 3, 0},
		{"odd bottom-left", 2, 1, DirBottomLeft, 2, 0},
		{"odd top-right", 2, 1, DirTopRight, 3, 2},
		{"odd top-left", 2, 1, DirTopLeft, 2, 2},
		// even row: diagonals are left-aligned
		{"even bottom-right", 2, 2, DirBottomRight, 2, 1},
		{"even bottom-left", 2, 2, DirBottomLeft, 1, 1},
		{"even top-right", 2, 2, DirTopRight, 2, 3},
		{"even top-left", 2, 2, DirTopLeft, 1, 3},
		{"left", 2, 1, DirLeft, 1, 1},
		{"right", 2, 1, DirRight, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nx, ny, ok := ModeHex.Neighbor(tt.x, tt.y, tt.dir, 0)
			if !ok {
				t.Fatalf("Neighbor(%d, %d, %s) not supported", tt.x, tt.y, tt.dir)
			}
			if nx != tt.wantX || ny != tt.wantY {
				t.Errorf("Neighbor(%d, %d, %s) = (%d, %d), want (%d, %d)",
					tt.x, tt.y, tt.dir, nx, ny, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestHexNeighborRoundTrip(t *testing.T) {
	// following a diagonal and then its opposite returns to the start,
	// whatever the row parity
	for y := 0; y < 4; y++ {
		for x := 1; x < 4; x++ {
			for _, d := range ModeHex.Directions() {
				nx, ny, ok := ModeHex.Neighbor(x, y, d, 0)
				if !ok {
					continue
				}
				bx, by, ok := ModeHex.Neighbor(nx, ny, d.Opposite(), 0)
				if !ok || bx != x || by != y {
					t.Errorf("(%d, %d) --%s--> (%d, %d) --%s--> (%d, %d), want return to start",
						x, y, d, nx, ny, d.Opposite(), bx, by)
				}
			}
		}
	}
}

func TestHexNeighborUnsupportedDirections(t *testing.T) {
	if _, _, ok := ModeHex.Neighbor(2, 2, DirTop, 0); ok {
		t.Error("hex mode should not support DirTop")
	}
	if _, _, ok := ModeHex.Neighbor(2, 2, DirBottom, 0); ok {
		t.Error("hex mode should not support DirBottom")
	}
	if _, _, ok := ModeFour.Neighbor(2, 2, DirTopLeft, 0); ok {
		t.Error("four mode should not support DirTopLeft")
	}
}

func TestBorderForHexDiagonals(t *testing.T) {
	// hex diagonals bind to the bottom/top border only on the outermost rows
	if _, ok := ModeHex.borderFor(DirBottomRight, 1, 5); ok {
		t.Error("bottom-right at y=1 should carry no border constraint")
	}
	if b, ok := ModeHex.borderFor(DirBottomRight, 0, 5); !ok || b != DirBottom {
		t.Errorf("bottom-right at y=0 = (%v, %v), want (bottom, true)", b, ok)
	}
	if b, ok := ModeHex.borderFor(DirTopLeft, 4, 5); !ok || b != DirTop {
		t.Errorf("top-left at y=4 = (%v, %v), want (top, true)", b, ok)
	}
	if _, ok := ModeEight.borderFor(DirTopLeft, 4, 5); ok {
		t.Error("eight-mode diagonals should carry no border constraint")
	}
	if b, ok := ModeFour.borderFor(DirLeft, 2, 5); !ok || b != DirLeft {
		t.Errorf("left at y=2 = (%v, %v), want (left, true)", b, ok)
	}
}
