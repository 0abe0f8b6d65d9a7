// ABOUTME: Decode-order stream timer for discrete-frame media
// ABOUTME: Every frame lasts a fixed rational duration
package timer

import (
	"fmt"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// FrameTimer assigns each decoded frame a fixed duration of
// frameDuration seconds (Num/Den). Units passed to PacketDecoded are frames.
type FrameTimer struct {
	syncState

	// perFrame is the frame duration in microseconds as a reduced ratio;
	// the running count is folded whenever it reaches perFrame.den, where
	// the elapsed time is a whole number of microseconds.
	perFrame ratio

	startMicros   int64
	runningMicros int64
	runningFrames int64
}

// NewFrameTimer creates a timer for frames of frameDuration in tb
func NewFrameTimer(tb TimeBase, frameDuration TimeBase) (*FrameTimer, error) {
	if frameDuration.Num <= 0 || frameDuration.Den <= 0 {
		return nil, fmt.Errorf("timer: %w: frame duration %v", audio.ErrConfiguration, frameDuration)
	}
	conv, err := NewConverter(tb, 0, 0)
	if err != nil {
		return nil, err
	}
	durConv, err := NewConverter(frameDuration, 0, 0)
	if err != nil {
		return nil, err
	}
	t := &FrameTimer{
		syncState: syncState{conv: conv},
		perFrame:  durConv.toMicros,
	}
	t.seek(0)
	return t, nil
}

// Seek implements Timer
func (t *FrameTimer) Seek(targetMicros int64) { t.seek(targetMicros) }

// PacketDecoded implements Timer
func (t *FrameTimer) PacketDecoded(pts int64, frames int64, out *[2]int64) {
	t.stamp(pts, max(frames, 0), out)
}

// PacketSkipped implements Timer
func (t *FrameTimer) PacketSkipped(pts int64, approxFrames int64, out *[2]int64) {
	t.stamp(pts, max(approxFrames, 1), out)
}

// Reset returns the timer to its initial state at position zero
func (t *FrameTimer) Reset() {
	t.startMicros, t.runningMicros, t.runningFrames = 0, 0, 0
	t.seek(0)
}

// Position implements Timer
func (t *FrameTimer) Position() int64 {
	if t.startMicros == UnknownMicros {
		return UnknownMicros
	}
	return t.startMicros + t.runningMicros + t.perFrame.apply(t.runningFrames)
}

func (t *FrameTimer) stamp(pts int64, frames int64, out *[2]int64) {
	if t.needsSync {
		t.startMicros = t.anchor(pts)
		t.runningMicros = 0
		t.runningFrames = 0
	}

	out[0] = t.Position()
	t.runningFrames += frames
	if t.runningFrames >= t.perFrame.den {
		periods := t.runningFrames / t.perFrame.den
		t.runningMicros += periods * t.perFrame.num
		t.runningFrames -= periods * t.perFrame.den
	}
	out[1] = t.Position()
}
