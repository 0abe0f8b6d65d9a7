// ABOUTME: Playback engine delivering buffered PCM to an output device on the master clock
// ABOUTME: Owns the ring buffer, transport state and the single delivery goroutine
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/output"
	"github.com/decamp/drawjav-sub002/pkg/clock"
)

const (
	// refillThreshold is the margin under which the loop writes immediately
	// instead of sleeping until the device has room for a full chunk.
	refillThreshold = 10 * time.Millisecond
	minWait         = time.Millisecond
)

// Config configures an Engine.
type Config struct {
	// Format is the device format. Samples are encoded to Format.Encoding
	// on the way into the ring.
	Format audio.Format
	Device output.Device
	Clock  clock.Master

	// Time drives sleeps. Defaults to the real clock.
	Time clockwork.Clock

	// BufferFrames is the ring capacity. Defaults to 250ms.
	BufferFrames int
	// DeviceBufferFrames is the hardware-side buffer. Defaults to 100ms.
	DeviceBufferFrames int

	Logger zerolog.Logger
}

// Stats is a snapshot of engine counters. Byte counts refer to the
// device encoding.
type Stats struct {
	Accepted     int64
	Written      int64
	Discarded    int64
	Buffered     int
	Capacity     int
	Underruns    int64
	// Playing includes start and stop calls still waiting for their instant.
	Playing      bool
	DeviceActive bool
	Volume       float64
}

type eventKind int

const (
	eventStart eventKind = iota
	eventStop
	eventSeek
	eventRate
)

func (k eventKind) String() string {
	switch k {
	case eventStart:
		return "start"
	case eventStop:
		return "stop"
	case eventSeek:
		return "seek"
	case eventRate:
		return "rate"
	}
	return "unknown"
}

// transportEvent is a transport call waiting for its master instant.
type transportEvent struct {
	kind   eventKind
	exec   int64
	target int64
	rate   float64
}

type transport struct {
	// intent is the playing state once every queued event has applied.
	intent bool
	rate   float64
	// pending holds events in the order received. Only the head is ever
	// applied, once its instant has arrived.
	pending []transportEvent
}

// Engine pulls audio pushed by ConsumeAudio into an output device at the
// instants dictated by transport calls. It implements clock.Listener.
type Engine struct {
	format audio.Format
	dev    output.Device
	clock  clock.Master
	clk    clockwork.Clock
	log    zerolog.Logger
	chunk  int

	mu        sync.Mutex
	wake      chan struct{}
	ring      *ring
	scratch   []byte
	transport transport
	active    bool
	starved   bool
	closed    bool
	err       error
	volume    float64
	stats     Stats

	done chan struct{}
}

var _ clock.Listener = (*Engine)(nil)

// New opens the device and starts the delivery goroutine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Device == nil {
		return nil, fmt.Errorf("%w: no output device", audio.ErrDeviceUnavailable)
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("%w: no master clock", audio.ErrConfiguration)
	}
	if cfg.Time == nil {
		cfg.Time = clockwork.NewRealClock()
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = cfg.Format.SampleRate / 4
	}
	if cfg.DeviceBufferFrames <= 0 {
		cfg.DeviceBufferFrames = cfg.Format.SampleRate / 10
	}

	fs := cfg.Format.FrameSize()
	if err := cfg.Device.Open(cfg.Format, cfg.DeviceBufferFrames*fs); err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) || errors.Is(err, audio.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	chunk := cfg.Device.BufferSize() / 4
	chunk -= chunk % fs
	chunk = max(chunk, fs)

	e := &Engine{
		format:    cfg.Format,
		dev:       cfg.Device,
		clock:     cfg.Clock,
		clk:       cfg.Time,
		log:       cfg.Logger.With().Str("component", "playback").Logger(),
		chunk:     chunk,
		wake:      make(chan struct{}),
		ring:      newRing(cfg.BufferFrames * fs),
		transport: transport{rate: 1},
		volume:    1,
		done:      make(chan struct{}),
	}

	e.log.Info().
		Stringer("format", cfg.Format).
		Int("ring_bytes", e.ring.Cap()).
		Int("device_bytes", cfg.Device.BufferSize()).
		Msg("playback engine started")

	go e.run()
	return e, nil
}

// Format returns the device format.
func (e *Engine) Format() audio.Format {
	return e.format
}

// changed wakes every waiter. Must hold e.mu.
func (e *Engine) changed() {
	close(e.wake)
	e.wake = make(chan struct{})
}

// waitLocked releases e.mu until the next change, until d elapses when
// d > 0, or until ctx is done when ctx is non-nil. Callers re-check their
// condition afterwards.
func (e *Engine) waitLocked(ctx context.Context, d time.Duration) bool {
	ch := e.wake
	var timeout <-chan time.Time
	if d > 0 {
		t := e.clk.NewTimer(d)
		defer t.Stop()
		timeout = t.Chan()
	}
	var cancel <-chan struct{}
	if ctx != nil {
		cancel = ctx.Done()
	}

	e.mu.Unlock()
	defer e.mu.Lock()

	select {
	case <-ch:
	case <-timeout:
	case <-cancel:
		return false
	}
	return true
}

// closedErr reports why the engine no longer accepts work. Must hold e.mu.
func (e *Engine) closedErr() error {
	if e.err != nil {
		return fmt.Errorf("%w: %w", audio.ErrClosed, e.err)
	}
	return audio.ErrClosed
}

// fail records a fatal device error and shuts the engine down. Must hold e.mu.
func (e *Engine) fail(err error) {
	if e.closed {
		return
	}
	e.log.Error().Err(err).Msg("output device failed, closing engine")
	e.err = err
	e.closed = true
	e.changed()
}

// PlayStart schedules playback to begin at master instant exec.
func (e *Engine) PlayStart(exec int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.transport.intent {
		return
	}
	e.transport.intent = true
	e.schedule(transportEvent{kind: eventStart, exec: exec})
}

// PlayStop schedules playback to stop at master instant exec.
func (e *Engine) PlayStop(exec int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.transport.intent {
		return
	}
	e.transport.intent = false
	e.schedule(transportEvent{kind: eventStop, exec: exec})
}

// Seek re-syncs the device to media position target at master instant exec.
// Buffered audio is not touched; upstream clears it when it seeks.
func (e *Engine) Seek(exec, target int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.schedule(transportEvent{kind: eventSeek, exec: exec, target: target})
}

// SetRate records a rate change at exec. Playback speed is not altered.
func (e *Engine) SetRate(exec int64, rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.schedule(transportEvent{kind: eventRate, exec: exec, rate: rate})
}

// schedule queues ev behind every earlier transport call. Must hold e.mu.
func (e *Engine) schedule(ev transportEvent) {
	e.transport.pending = append(e.transport.pending, ev)
	e.log.Debug().
		Stringer("event", ev.kind).
		Int64("exec", ev.exec).
		Int("pending", len(e.transport.pending)).
		Msg("transport queued")
	e.changed()
}

// SetVolume sets a linear volume, applied to the device as a gain in dB.
func (e *Engine) SetVolume(v float64) error {
	if math.IsNaN(v) || v < 0 {
		return fmt.Errorf("%w: volume %v", audio.ErrInvalidArgument, v)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.volume = v
	e.mu.Unlock()

	// Devices guard their own gain, so this does not need the engine lock.
	e.dev.SetGainDB(20 * math.Log10(v))
	return nil
}

// Volume returns the last linear volume set.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Buffered = e.ring.Len()
	s.Capacity = e.ring.Cap()
	s.Playing = e.transport.intent
	s.DeviceActive = e.active
	s.Volume = e.volume
	return s
}

// Err returns the fatal device error that closed the engine, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// CloseAt closes the engine as a transport call. Close takes effect
// immediately; exec is only logged.
func (e *Engine) CloseAt(exec int64) error {
	e.log.Debug().Int64("exec", exec).Msg("close")
	return e.Close()
}

// Close stops delivery and releases the device. It is idempotent and wakes
// every blocked caller.
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.changed()
	}
	e.mu.Unlock()
	<-e.done
	return nil
}
