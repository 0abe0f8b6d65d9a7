// ABOUTME: Reference-counted audio frames
// ABOUTME: Interleaved float samples stamped with a playback time range
package audio

import "sync/atomic"

// Frame is a buffer of interleaved float samples occupying the half-open
// range [StartMicros, StopMicros) on the playback timeline.
//
// A frame is handed to exactly one consumer at a time. Consumers that keep
// a frame beyond the Consume call must Retain it, and every holder calls
// Release when done. Pooled frames return to their pool on the last Release.
type Frame struct {
	Format      Format
	Samples     []float32
	StartMicros int64
	StopMicros  int64
	StreamID    string

	refs atomic.Int32
	pool *FramePool
}

// NewFrame allocates an unpooled frame holding frames×channels samples
func NewFrame(format Format, frames int) *Frame {
	f := &Frame{
		Format:  format,
		Samples: make([]float32, frames*format.Channels),
	}
	f.refs.Store(1)
	return f
}

// FrameCount returns the number of frames held
func (f *Frame) FrameCount() int {
	return len(f.Samples) / f.Format.Channels
}

// Retain adds a holder
func (f *Frame) Retain() {
	f.refs.Add(1)
}

// Release drops a holder. The frame must not be used by the caller afterwards.
func (f *Frame) Release() {
	n := f.refs.Add(-1)
	if n < 0 {
		panic("audio: frame released too many times")
	}
	if n == 0 && f.pool != nil {
		f.pool.put(f)
	}
}

// RefCount returns the current number of holders
func (f *Frame) RefCount() int {
	return int(f.refs.Load())
}
