// ABOUTME: Master clock with scheduled transport changes and listener fan-out
// ABOUTME: Maps master (exec) time to media time and to local wall time
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/rs/zerolog"
)

// Master is the read side of a master clock that output stages schedule against.
type Master interface {
	// Micros returns the current master time.
	Micros() int64
	// WallTime maps a master instant to local wall time.
	WallTime(execMicros int64) time.Time
}

// Listener receives transport changes. execMicros is the master instant at
// which the change takes effect, which may lie in the past or the future.
// Callbacks run on the caller's goroutine and must not call transport
// methods on the clock that invoked them.
type Listener interface {
	PlayStart(execMicros int64)
	PlayStop(execMicros int64)
	Seek(execMicros, targetMicros int64)
	SetRate(execMicros int64, rate float64)
}

// State is a snapshot of the clock's exec to media mapping.
type State struct {
	Playing   bool
	Rate      float64
	SyncExec  int64
	SyncMedia int64
}

// Config holds PlayClock settings.
type Config struct {
	// Reference defaults to the real system clock.
	Reference Reference
	Logger    zerolog.Logger
}

// PlayClock is the shared master clock. Transport calls update the mapping
// and then notify listeners in registration order, outside the state lock.
type PlayClock struct {
	ref Reference
	log zerolog.Logger

	// transport serializes update+notify so listeners observe changes in
	// the order they were applied.
	transport sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []Listener
}

// New creates a stopped clock at media position zero.
func New(cfg Config) *PlayClock {
	ref := cfg.Reference
	if ref == nil {
		ref = NewSystemReference(nil)
	}
	return &PlayClock{
		ref:   ref,
		log:   cfg.Logger.With().Str("component", "clock").Logger(),
		state: State{Rate: 1.0},
	}
}

func (c *PlayClock) Micros() int64 {
	return c.ref.Now()
}

func (c *PlayClock) WallTime(execMicros int64) time.Time {
	return c.ref.LocalTime(execMicros)
}

// State returns the current mapping.
func (c *PlayClock) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Playing reports whether the clock is running.
func (c *PlayClock) Playing() bool {
	return c.State().Playing
}

// MediaMicros returns the media position at the current master time.
func (c *PlayClock) MediaMicros() int64 {
	return c.MediaAt(c.Micros())
}

// MediaAt returns the media position at master instant exec.
func (c *PlayClock) MediaAt(exec int64) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.mediaAt(exec)
}

func (s State) mediaAt(exec int64) int64 {
	if !s.Playing || exec <= s.SyncExec {
		return s.SyncMedia
	}
	return s.SyncMedia + int64(float64(exec-s.SyncExec)*s.Rate)
}

// AddListener registers l. Adding the same listener twice is a no-op.
func (c *PlayClock) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.listeners {
		if existing == l {
			return
		}
	}
	c.listeners = append(c.listeners, l)
}

// RemoveListener unregisters l.
func (c *PlayClock) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Start resumes playback at exec. Returns false if already playing.
func (c *PlayClock) Start(exec int64) bool {
	c.transport.Lock()
	defer c.transport.Unlock()

	ls, ok := c.update(func(s *State) bool {
		if s.Playing {
			return false
		}
		s.Playing = true
		s.SyncExec = exec
		return true
	})
	if !ok {
		return false
	}
	c.log.Debug().Int64("exec", exec).Msg("start")
	for _, l := range ls {
		l.PlayStart(exec)
	}
	return true
}

// Stop pauses playback at exec, freezing media time at that instant.
// Returns false if already stopped.
func (c *PlayClock) Stop(exec int64) bool {
	c.transport.Lock()
	defer c.transport.Unlock()

	ls, ok := c.update(func(s *State) bool {
		if !s.Playing {
			return false
		}
		s.SyncMedia = s.mediaAt(exec)
		s.SyncExec = exec
		s.Playing = false
		return true
	})
	if !ok {
		return false
	}
	c.log.Debug().Int64("exec", exec).Msg("stop")
	for _, l := range ls {
		l.PlayStop(exec)
	}
	return true
}

// Toggle starts or stops at exec and reports the new playing state.
func (c *PlayClock) Toggle(exec int64) bool {
	if c.Start(exec) {
		return true
	}
	c.Stop(exec)
	return false
}

// Seek maps exec to media position target.
func (c *PlayClock) Seek(exec, target int64) {
	c.transport.Lock()
	defer c.transport.Unlock()

	ls, _ := c.update(func(s *State) bool {
		s.SyncExec = exec
		s.SyncMedia = target
		return true
	})
	c.log.Debug().Int64("exec", exec).Int64("target", target).Msg("seek")
	for _, l := range ls {
		l.Seek(exec, target)
	}
}

// SetRate changes the media rate from exec onward.
func (c *PlayClock) SetRate(exec int64, rate float64) error {
	if !(rate > 0) {
		return fmt.Errorf("%w: rate %v", audio.ErrInvalidArgument, rate)
	}

	c.transport.Lock()
	defer c.transport.Unlock()

	ls, _ := c.update(func(s *State) bool {
		s.SyncMedia = s.mediaAt(exec)
		s.SyncExec = exec
		s.Rate = rate
		return true
	})
	c.log.Debug().Int64("exec", exec).Float64("rate", rate).Msg("rate")
	for _, l := range ls {
		l.SetRate(exec, rate)
	}
	return nil
}

// update applies fn under the state lock and returns a listener snapshot.
func (c *PlayClock) update(fn func(*State) bool) ([]Listener, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !fn(&c.state) {
		return nil, false
	}
	return append([]Listener(nil), c.listeners...), true
}
