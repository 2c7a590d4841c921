package machine

import "strings"

// Text grid of the simulated display.
const (
	ScreenCols = 90
	ScreenRows = 32
)

// Screen is a fixed-width character grid. Cells keep their contents until
// something overwrites them.
type Screen struct {
	cells [ScreenRows][ScreenCols]byte
}

// NewScreen returns a blank screen.
func NewScreen() *Screen {
	s := &Screen{}
	s.Clear()
	return s
}

// Clear blanks every cell.
func (s *Screen) Clear() {
	for r := range s.cells {
		for c := range s.cells[r] {
			s.cells[r][c] = ' '
		}
	}
}

// Write draws text starting at row, col. Drawing stops at the first zero
// byte or the right edge; cells past that point are left alone. It returns
// the number of cells written.
func (s *Screen) Write(row, col int, text []byte) int {
	if row < 0 || row >= ScreenRows || col < 0 {
		return 0
	}
	n := 0
	for _, ch := range text {
		if ch == 0 || col+n >= ScreenCols {
			break
		}
		s.cells[row][col+n] = ch
		n++
	}
	return n
}

// Line returns one row of the grid.
func (s *Screen) Line(row int) string {
	if row < 0 || row >= ScreenRows {
		return ""
	}
	return string(s.cells[row][:])
}

// Lines returns every row of the grid.
func (s *Screen) Lines() []string {
	out := make([]string, ScreenRows)
	for r := range out {
		out[r] = s.Line(r)
	}
	return out
}

// String renders the grid with trailing blanks trimmed.
func (s *Screen) String() string {
	var b strings.Builder
	for r := 0; r < ScreenRows; r++ {
		b.WriteString(strings.TrimRight(s.Line(r), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
