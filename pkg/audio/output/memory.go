// ABOUTME: Simulated output device driven by a clockwork clock
// ABOUTME: Drains its buffer at the sample rate and records every transport call
package output

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// EventKind identifies a recorded device call.
type EventKind int

const (
	EventOpen EventKind = iota
	EventStart
	EventStop
	EventFlush
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventFlush:
		return "flush"
	case EventClose:
		return "close"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one recorded device call and the clock time it happened at.
type Event struct {
	Kind EventKind
	At   time.Time
	// Queued is the number of bytes in the device buffer at the time.
	Queued int
}

// Memory is a Device with no hardware behind it. While started it consumes
// queued bytes at the format's byte rate as measured by its clock.
type Memory struct {
	clk clockwork.Clock

	mu       sync.Mutex
	format   audio.Format
	size     int
	queued   int
	open     bool
	closed   bool
	running  bool
	runStart time.Time
	// frames consumed since runStart, including silence during underruns
	runFrames int64
	played    int64
	underruns int
	starved   bool
	gainDB    float64
	written   []byte
	events    []Event
	writeErr  error
	openErr   error
}

// NewMemory creates a simulated device. A nil clock selects the real clock.
func NewMemory(clk clockwork.Clock) *Memory {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Memory{clk: clk}
}

// FailOpen makes the next Open fail with err.
func (m *Memory) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// FailWrites makes every subsequent Write fail with err.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *Memory) Open(format audio.Format, bufferBytes int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		err := m.openErr
		m.openErr = nil
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	size := frameAlign(bufferBytes, format)
	if size <= 0 {
		return fmt.Errorf("%w: buffer of %d bytes holds no frames", audio.ErrConfiguration, bufferBytes)
	}
	m.format = format
	m.size = size
	m.queued = 0
	m.open = true
	m.closed = false
	m.running = false
	m.record(EventOpen)
	return nil
}

// advance consumes the bytes the simulated hardware played since the last
// call (must hold m.mu).
func (m *Memory) advance() {
	if !m.running {
		return
	}
	target := int64(m.clk.Since(m.runStart)) * int64(m.format.SampleRate) / int64(time.Second)
	frames := target - m.runFrames
	if frames <= 0 {
		return
	}
	m.runFrames = target

	want := frames * int64(m.format.FrameSize())
	take := min(want, int64(m.queued))
	m.queued -= int(take)
	m.played += take
	if take < want {
		if !m.starved {
			m.underruns++
		}
		m.starved = true
	} else if take > 0 {
		m.starved = false
	}
}

func (m *Memory) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return 0, errors.New("output not initialized")
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.advance()
	n := frameAlign(min(len(p), m.size-m.queued), m.format)
	m.queued += n
	m.written = append(m.written, p[:n]...)
	if n > 0 {
		m.starved = false
	}
	return n, nil
}

func (m *Memory) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.size - m.queued
}

func (m *Memory) BufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return errors.New("output not initialized")
	}
	if m.running {
		return nil
	}
	m.running = true
	m.runStart = m.clk.Now()
	m.runFrames = 0
	m.starved = false
	m.record(EventStart)
	return nil
}

func (m *Memory) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.advance()
	m.running = false
	m.record(EventStop)
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.queued = 0
	m.record(EventFlush)
	return nil
}

func (m *Memory) SetGainDB(db float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gainDB = db
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.advance()
	m.running = false
	m.open = false
	m.closed = true
	m.record(EventClose)
	return nil
}

func (m *Memory) record(kind EventKind) {
	m.events = append(m.events, Event{Kind: kind, At: m.clk.Now(), Queued: m.queued})
}

// Events returns a copy of the recorded calls.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// EventsOf returns the recorded calls of one kind.
func (m *Memory) EventsOf(kind EventKind) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Written returns a copy of every byte accepted by Write.
func (m *Memory) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

// Queued returns the bytes still waiting in the simulated hardware buffer.
func (m *Memory) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.queued
}

// Played returns the total bytes consumed by the simulated hardware.
func (m *Memory) Played() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.played
}

// Running reports whether the device is started.
func (m *Memory) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Underruns counts the times the buffer ran dry while started.
func (m *Memory) Underruns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.underruns
}

// GainDB returns the last gain set.
func (m *Memory) GainDB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gainDB
}
