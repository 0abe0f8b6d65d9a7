// ABOUTME: Sink interface for chained pipeline stages
// ABOUTME: Stages receive frames, discard pending state on seek, and close
package audio

import "context"

// Sink receives timestamped frames from an upstream stage.
//
// Consume takes a reference to frame for the duration of the call; a sink
// that keeps the frame longer must Retain it. The caller keeps its own
// reference and releases it after Consume returns.
type Sink interface {
	Consume(ctx context.Context, frame *Frame) error

	// Clear discards pending state after a seek or discontinuity
	Clear() error

	// Close ends the session, flushing anything still pending
	Close() error
}

// ContextCloser is implemented by sinks whose Close can block, such as a
// playback engine waiting for buffered audio to play out.
type ContextCloser interface {
	CloseContext(ctx context.Context) error
}

// CloseSink closes s, bounded by ctx when s is a ContextCloser.
func CloseSink(ctx context.Context, s Sink) error {
	if c, ok := s.(ContextCloser); ok {
		return c.CloseContext(ctx)
	}
	return s.Close()
}
