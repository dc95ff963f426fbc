// ABOUTME: TUI initialization and the Display adapter for the simulated panel
// ABOUTME: Wraps bubbletea program, forwards frames in and button presses out
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/InkClock-Project/inkclock-go/internal/display"
)

// ButtonControl carries debounced button gestures out of the TUI.
type ButtonControl struct {
	Presses chan PressMsg

	mu     sync.Mutex
	closed bool
}

// NewButtonControl creates a new button event channel pair.
func NewButtonControl() *ButtonControl {
	return &ButtonControl{Presses: make(chan PressMsg, 4)}
}

func (b *ButtonControl) press(kind PressKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.Presses <- PressMsg{Kind: kind}:
	default: // drop repeats while a cycle is already pending
	}
}

func (b *ButtonControl) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.Presses)
	}
}

// NewModel creates a new panel model
func NewModel(buttons *ButtonControl) Model {
	return Model{buttons: buttons}
}

// Run starts the TUI
func Run(buttons *ButtonControl) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(buttons), tea.WithAltScreen())
	return p, nil
}

// Panel adapts the running program to the Display interface.
type Panel struct {
	program *tea.Program
}

// NewPanel wraps a started program as a render surface.
func NewPanel(p *tea.Program) *Panel {
	return &Panel{program: p}
}

// Render pushes a frame to the panel.
func (p *Panel) Render(f display.Frame) error {
	p.program.Send(FrameMsg{Frame: f})
	return nil
}

// Close shuts the panel down.
func (p *Panel) Close() error {
	p.program.Quit()
	return nil
}
