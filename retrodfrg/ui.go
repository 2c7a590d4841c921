// Package retrodfrg provides a terminal console for watching a boot: a title,
// a fixed text grid mirrored from the simulated display, a phase line and a
// status block. It knows nothing about what is being booted.
package retrodfrg

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrInterrupted is returned when the user requests to stop the operation.
var ErrInterrupted = errors.New("interrupted")

// UI is a fullscreen tcell console.
type UI struct {
	s        tcell.Screen
	events   tcell.Screen
	real     bool
	stopChan chan struct{}
	once     sync.Once

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	statusLines  []string

	// Display grid, drawn verbatim below a frame line.
	gridLines []string

	// updateEvery throttles redraws in WriteBlocks.
	updateEvery int
}

// NewUI opens the controlling terminal and starts the key handler.
func NewUI() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	u, err := NewUIWithScreen(s)
	if err != nil {
		return nil, err
	}
	u.real = true
	return u, nil
}

// NewUIWithScreen runs the console on an existing screen, such as a
// tcell.SimulationScreen.
func NewUIWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		events:       s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
		updateEvery:  64,
	}
	go u.eventLoop(s)
	return u, nil
}

// Close closes the UI and restores the terminal to its original state.
func (u *UI) Close() {
	if u.s == nil {
		return
	}
	u.RequestStop()
	u.s.Fini()
	u.s = nil
	if u.real {
		fmt.Print("\033[?1049l\033[?25h")
	}
}

// RequestStop signals that the user has requested to stop the current operation.
// It can be called multiple times safely.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		_ = u.events.PostEvent(tcell.NewEventInterrupt(nil))
	})
}

// IsStopped returns true if the user has requested to stop the operation.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Stopped is closed once a stop has been requested.
func (u *UI) Stopped() <-chan struct{} { return u.stopChan }

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

func putStr(s tcell.Screen, x, y int, str string, style tcell.Style) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, style)
	}
}

// LayoutAndDraw redraws the entire UI with the current state.
func (u *UI) LayoutAndDraw() {
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	currentY := 0

	if u.title != "" {
		putStr(u.s, 0, currentY, strings.Repeat("═", w), tcell.StyleDefault)
		centerX := (w - len(u.title)) / 2
		if centerX < 0 {
			centerX = 0
		}
		putStr(u.s, centerX, currentY, u.title, tcell.StyleDefault.Bold(true))
		currentY++
	}

	for _, line := range u.summaryLines {
		if currentY >= h {
			break
		}
		putStr(u.s, 0, currentY, line, tcell.StyleDefault)
		currentY++
	}

	if len(u.gridLines) > 0 && currentY < h {
		putStr(u.s, 0, currentY, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, currentY, " Display ", tcell.StyleDefault)
		currentY++
		// Leave room for the phase and status blocks.
		avail := h - currentY - 3 - len(u.statusLines)
		if avail < 1 {
			avail = 1
		}
		rows := u.gridLines
		if len(rows) > avail {
			rows = rows[:avail]
		}
		grid := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
		for _, line := range rows {
			if currentY >= h {
				break
			}
			putStr(u.s, 0, currentY, line, grid)
			currentY++
		}
	}

	if len(u.phases) > 0 && currentY < h {
		putStr(u.s, 0, currentY, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, currentY, " Phase ", tcell.StyleDefault)
		currentY++
		b := strings.Builder{}
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, currentY, b.String(), tcell.StyleDefault)
		currentY++
	}

	if len(u.statusLines) > 0 && currentY < h {
		putStr(u.s, 0, currentY, strings.Repeat("─", w), tcell.StyleDefault)
		putStr(u.s, 2, currentY, " Status ", tcell.StyleDefault)
		currentY++
		for _, line := range u.statusLines {
			if currentY >= h {
				break
			}
			putStr(u.s, 0, currentY, line, tcell.StyleDefault)
			currentY++
		}
	}

	u.s.Show()
}

// SetPhaseDone marks the specified phase as completed.
// The phase name is case-insensitive.
func (u *UI) SetPhaseDone(p string) {
	if u.phaseDoneMap == nil {
		u.phaseDoneMap = make(map[string]bool)
	}
	u.phaseDoneMap[strings.ToLower(p)] = true
}

// SetPhases sets the list of phases to display.
func (u *UI) SetPhases(labels []string) {
	u.phases = append([]string(nil), labels...)
}

// SetTitle sets the title displayed at the top of the UI.
func (u *UI) SetTitle(t string) {
	u.title = t
}

// SetSummaryLines sets the lines displayed below the title.
func (u *UI) SetSummaryLines(lines []string) {
	u.summaryLines = append([]string(nil), lines...)
}

// SetStatusLines sets the status lines displayed at the bottom of the UI.
func (u *UI) SetStatusLines(lines []string) {
	u.statusLines = append([]string(nil), lines...)
}

// SetDisplay sets the text grid. Lines are drawn as given, one per row.
func (u *UI) SetDisplay(lines []string) {
	u.gridLines = append([]string(nil), lines...)
}

func (u *UI) eventLoop(s tcell.Screen) {
	for {
		select {
		case <-u.stopChan:
			return
		default:
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyEscape,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
