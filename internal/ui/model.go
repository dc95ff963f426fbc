// ABOUTME: Bubbletea model simulating the e-paper clock face
// ABOUTME: Defines panel state, key handling and frame rendering
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/InkClock-Project/inkclock-go/internal/display"
)

// PressKind distinguishes the two debounced button gestures.
type PressKind int

const (
	// PressSync is a short press: run an on-demand sync cycle.
	PressSync PressKind = iota
	// PressReset is a long hold: reset the aging factor to zero.
	PressReset
)

// PressMsg is emitted when the user works the (simulated) button.
type PressMsg struct {
	Kind PressKind
}

// Model represents the panel state
type Model struct {
	// Face
	frame    display.Frame
	hasFrame bool
	washes   int // full refreshes seen

	// Input
	buttons *ButtonControl

	// Dimensions
	width  int
	height int
}

// FrameMsg carries a new face to draw
type FrameMsg struct {
	Frame display.Frame
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case FrameMsg:
		m.frame = msg.Frame
		m.hasFrame = true
		if msg.Frame.FullWash {
			m.washes++
		}
	}

	return m, nil
}

// View renders the panel
func (m Model) View() string {
	if !m.hasFrame {
		return "Waiting for first refresh..."
	}

	f := m.frame
	meridiem := ""
	if f.ShowAMPM {
		meridiem = " PM"
		if f.AM {
			meridiem = " AM"
		}
	}
	clock := fmt.Sprintf("%c%c:%c%c%s", f.HourTens, f.HourOnes, f.MinuteTens, f.MinuteOnes, meridiem)

	var b strings.Builder
	b.WriteString("┌─ InkClock ───────────────────────────┐\n")
	b.WriteString("│                                      │\n")
	fmt.Fprintf(&b, "│            %-10s                │\n", clock)
	b.WriteString("│                                      │\n")
	fmt.Fprintf(&b, "│   %-12s %-20s │\n", f.Weekday, f.DateLine)
	b.WriteString("├──────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│ %-36s │\n", f.Status)
	fmt.Fprintf(&b, "│ aging %+4d  batt %3d%%  %5.1fC       │\n", f.Aging, f.BatteryPC, f.TempC)
	fmt.Fprintf(&b, "│ full refreshes: %-4d                 │\n", m.washes)
	b.WriteString("├──────────────────────────────────────┤\n")
	b.WriteString("│ s:Sync now  R:Reset aging  q:Quit    │\n")
	b.WriteString("└──────────────────────────────────────┘\n")
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.buttons.close()
		return m, tea.Quit
	case "s":
		m.buttons.press(PressSync)
	case "R":
		m.buttons.press(PressReset)
	}

	return m, nil
}
