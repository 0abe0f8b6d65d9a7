// ABOUTME: Sample-count driven stream timer for audio
// ABOUTME: Durations come from running sample counts, folded every second
package timer

import (
	"fmt"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// SampleTimer derives packet durations from sample counts. Units passed to
// PacketDecoded are interleaved samples (frames × channels).
type SampleTimer struct {
	syncState

	// samplesPerSecond is sampleRate × channels
	samplesPerSecond int64

	startMicros    int64
	runningMicros  int64
	runningSamples int64
}

// NewSampleTimer creates a timer for audio in tb with the given format.
// The timeline starts synchronized to position 0 unless the first packet
// carries a timestamp.
func NewSampleTimer(tb TimeBase, format audio.Format) (*SampleTimer, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("timer: %w", err)
	}
	conv, err := NewConverter(tb, 0, 0)
	if err != nil {
		return nil, err
	}
	t := &SampleTimer{
		syncState:        syncState{conv: conv},
		samplesPerSecond: int64(format.SampleRate) * int64(format.Channels),
	}
	t.seek(0)
	return t, nil
}

// Converter returns the timer's pts converter
func (t *SampleTimer) Converter() Converter { return t.conv }

// Seek implements Timer
func (t *SampleTimer) Seek(targetMicros int64) { t.seek(targetMicros) }

// PacketDecoded implements Timer
func (t *SampleTimer) PacketDecoded(pts int64, samples int64, out *[2]int64) {
	t.stamp(pts, max(samples, 0), out)
}

// PacketSkipped implements Timer
func (t *SampleTimer) PacketSkipped(pts int64, approxSamples int64, out *[2]int64) {
	t.stamp(pts, max(approxSamples, 1), out)
}

// Reset returns the timer to its initial state at position zero
func (t *SampleTimer) Reset() {
	t.startMicros, t.runningMicros, t.runningSamples = 0, 0, 0
	t.seek(0)
}

// Position implements Timer
func (t *SampleTimer) Position() int64 {
	if t.startMicros == UnknownMicros {
		return UnknownMicros
	}
	return t.startMicros + t.runningMicros + t.runningSamples*1_000_000/t.samplesPerSecond
}

// RunningSamples returns the sub-second sample remainder
func (t *SampleTimer) RunningSamples() int64 { return t.runningSamples }

func (t *SampleTimer) stamp(pts int64, samples int64, out *[2]int64) {
	if t.needsSync {
		t.startMicros = t.anchor(pts)
		t.runningMicros = 0
		t.runningSamples = 0
	}

	out[0] = t.Position()
	t.runningSamples += samples
	if t.runningSamples >= t.samplesPerSecond {
		secs := t.runningSamples / t.samplesPerSecond
		t.runningMicros += secs * 1_000_000
		t.runningSamples -= secs * t.samplesPerSecond
	}
	out[1] = t.Position()
}
