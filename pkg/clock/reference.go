// ABOUTME: Reference time sources for the master clock
// ABOUTME: System reference built on clockwork so tests can drive time by hand
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Reference supplies the timeline a PlayClock runs on.
type Reference interface {
	// Now returns the current reference time in microseconds.
	Now() int64
	// LocalTime maps a reference instant to local wall time.
	LocalTime(micros int64) time.Time
}

// SystemReference uses the local clock as the reference timeline.
type SystemReference struct {
	clk clockwork.Clock
}

// NewSystemReference wraps c. A nil clock selects the real clock.
func NewSystemReference(c clockwork.Clock) *SystemReference {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &SystemReference{clk: c}
}

func (r *SystemReference) Now() int64 {
	return r.clk.Now().UnixMicro()
}

func (r *SystemReference) LocalTime(micros int64) time.Time {
	return time.UnixMicro(micros)
}

// Clock returns the underlying clockwork clock.
func (r *SystemReference) Clock() clockwork.Clock {
	return r.clk
}
