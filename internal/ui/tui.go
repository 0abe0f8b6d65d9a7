// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the command channel to the player
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind identifies a user action
type CommandKind int

const (
	CommandToggle CommandKind = iota
	CommandSeek
	CommandVolume
	CommandQuit
)

// Command is a user action forwarded to the player
type Command struct {
	Kind CommandKind
	// Seek is the relative jump for CommandSeek
	Seek time.Duration
	// Volume is 0-100 for CommandVolume
	Volume int
	Muted  bool
}

// Control carries commands from the TUI to the player
type Control struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 16),
		Quit:     make(chan struct{}, 1),
	}
}

// send never blocks the UI; a full queue drops the command.
func (c *Control) send(cmd Command) {
	if c == nil {
		return
	}
	if cmd.Kind == CommandQuit {
		select {
		case c.Quit <- struct{}{}:
		default:
		}
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control, seekStep time.Duration) Model {
	return Model{
		ctrl:     ctrl,
		seekStep: seekStep,
		volume:   100,
		state:    "paused",
	}
}

// Run creates the TUI program. The caller starts it with Program.Run.
func Run(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}
