// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Renders transport state and turns keys into player commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/decamp/drawjav-sub002/pkg/sync"
)

const volumeStep = 5

// Model represents the TUI state
type Model struct {
	ctrl     *Control
	seekStep time.Duration

	// Stream
	title      string
	format     string
	durationUs int64

	// Transport
	state      string
	positionUs int64
	volume     int
	muted      bool

	// Engine
	bufferMs    int
	capacityMs  int
	underruns   int64
	written     int64
	deviceOn    bool
	syncQuality sync.Quality
	syncRTT     int64
	lastErr     string

	showDebug bool

	width  int
	height int
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
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := m.renderHeader()
	s += m.renderTransport()
	s += m.renderControls()
	if m.showDebug {
		s += m.renderDebug()
	}
	s += m.renderHelp()
	return s
}

func (m Model) renderHeader() string {
	title := m.title
	if title == "" {
		title = "(nothing loaded)"
	}
	return fmt.Sprintf(`┌─ SyncPlay ───────────────────────────────────────────┐
│ File:   %-44s │
│ Format: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(title, 44), truncate(m.format, 44))
}

func (m Model) renderTransport() string {
	icon := "⏸"
	switch m.state {
	case "playing":
		icon = "▶"
	case "ended":
		icon = "■"
	}

	pos := formatMicros(m.positionUs)
	if m.durationUs > 0 {
		pos += " / " + formatMicros(m.durationUs)
	}
	s := fmt.Sprintf("│ %s %-8s %-42s │\n", icon, m.state, pos)
	if m.durationUs > 0 {
		s += fmt.Sprintf("│ [%s] │\n", renderBar(int(clampPos(m.positionUs, m.durationUs)/1000), int(m.durationUs/1000), 52))
	}
	if m.lastErr != "" {
		s += fmt.Sprintf("│ Error: %-45s │\n", truncate(m.lastErr, 45))
	}
	return s
}

func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n"+
		"│ Buffer: %dms of %dms  Underruns: %d%-12s │\n",
		renderBar(m.volume, 100, 10), m.volume, muteIcon, "",
		m.bufferMs, m.capacityMs, m.underruns, "")
}

func (m Model) renderDebug() string {
	device := "stopped"
	if m.deviceOn {
		device = "running"
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Device: %-42s │
│   Written: %-41d │
│   Clock: %-10s RTT: %-6dμs                     │
`, device, m.written, m.syncQuality, m.syncRTT)
}

func (m Model) renderHelp() string {
	return `│ space:Play/Pause  ←/→:Seek  ↑/↓:Volume  m:Mute  q:Quit │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.send(Command{Kind: CommandQuit})
		return m, tea.Quit
	case " ", "p":
		m.ctrl.send(Command{Kind: CommandToggle})
	case "left":
		m.ctrl.send(Command{Kind: CommandSeek, Seek: -m.seekStep})
	case "right":
		m.ctrl.send(Command{Kind: CommandSeek, Seek: m.seekStep})
	case "up":
		m.volume = min(m.volume+volumeStep, 100)
		m.sendVolume()
	case "down":
		m.volume = max(m.volume-volumeStep, 0)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	m.ctrl.send(Command{Kind: CommandVolume, Volume: m.volume, Muted: m.muted})
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Title != "" {
		m.title = msg.Title
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.DurationUs != 0 {
		m.durationUs = msg.DurationUs
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.PositionUs != nil {
		m.positionUs = *msg.PositionUs
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.CapacityMs != 0 {
		m.bufferMs = msg.BufferMs
		m.capacityMs = msg.CapacityMs
		m.underruns = msg.Underruns
		m.written = msg.Written
		m.deviceOn = msg.DeviceActive
	}
	if msg.SyncRTT != 0 {
		m.syncRTT = msg.SyncRTT
		m.syncQuality = msg.SyncQuality
	}
	if msg.Err != "" {
		m.lastErr = msg.Err
	}
}

// StatusMsg updates TUI state. Zero fields are ignored.
type StatusMsg struct {
	Title        string
	Format       string
	DurationUs   int64
	State        string
	PositionUs   *int64
	Volume       *int
	BufferMs     int
	CapacityMs   int
	Underruns    int64
	Written      int64
	DeviceActive bool
	SyncRTT      int64
	SyncQuality  sync.Quality
	Err          string
}

func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = (value * width) / max
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clampPos(pos, dur int64) int64 {
	return min(max(pos, 0), dur)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// formatMicros renders a timeline position as m:ss.t
func formatMicros(us int64) string {
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	d := time.Duration(us) * time.Microsecond
	return fmt.Sprintf("%s%d:%02d.%d", sign, int(d.Minutes()), int(d.Seconds())%60, (us/100_000)%10)
}
