// ABOUTME: audio.Sink adapter terminating a pipeline in the playback engine
// ABOUTME: Consume feeds ConsumeAudio, Clear clears and Close drains
package playback

import (
	"context"
	"fmt"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

type engineSink struct {
	e *Engine
}

// Sink returns the engine as the last stage of a sink chain. Closing the
// sink drains the engine but leaves it open for the next stream. While
// playback is stopped the drain waits for it to resume, so callers that
// must stay responsive use audio.CloseSink with a context.
func (e *Engine) Sink() audio.Sink {
	return engineSink{e: e}
}

func (s engineSink) Consume(ctx context.Context, f *audio.Frame) error {
	want := s.e.format
	if f.Format.Channels != want.Channels || f.Format.SampleRate != want.SampleRate {
		return fmt.Errorf("%w: frame is %s, engine plays %s", audio.ErrInvalidArgument, f.Format, want)
	}
	_, err := s.e.ConsumeAudio(ctx, f.Samples, 0, f.FrameCount())
	return err
}

func (s engineSink) Clear() error {
	return s.e.Clear()
}

func (s engineSink) Close() error {
	return s.e.Drain(context.Background())
}

func (s engineSink) CloseContext(ctx context.Context) error {
	return s.e.Drain(ctx)
}
