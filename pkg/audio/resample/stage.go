// ABOUTME: Resampling pipeline stage
// ABOUTME: Converts incoming frames to a fixed output rate and forwards them
package resample

import (
	"context"
	"fmt"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/rs/zerolog"
)

// StageConfig holds resampling stage configuration
type StageConfig struct {
	// OutputRate is the sample rate frames are converted to
	OutputRate int

	// Options are passed to every Resampler the stage creates
	Options []Option

	// Pool supplies output frames (default: a private pool)
	Pool *audio.FramePool

	Logger zerolog.Logger
}

// Stage is an audio.Sink that resamples frames before handing them to the
// next sink. A new Resampler is built whenever the input format changes.
type Stage struct {
	config StageConfig
	next   audio.Sink
	log    zerolog.Logger

	resampler *Resampler
	inFormat  audio.Format
	outFormat audio.Format
	streamID  string

	// nextStart is where the next output frame begins on the timeline;
	// inNext is where the next input frame is expected to begin.
	nextStart int64
	inNext    int64
	anchored  bool
}

// NewStage creates a resampling stage in front of next
func NewStage(config StageConfig, next audio.Sink) (*Stage, error) {
	if config.OutputRate <= 0 {
		return nil, fmt.Errorf("resample: %w: output rate %d", audio.ErrConfiguration, config.OutputRate)
	}
	if config.Pool == nil {
		config.Pool = audio.NewFramePool(audio.PoolConfig{})
	}
	return &Stage{
		config: config,
		next:   next,
		log:    config.Logger.With().Str("component", "resample").Logger(),
	}, nil
}

// Consume resamples frame and forwards the result
func (s *Stage) Consume(ctx context.Context, frame *audio.Frame) error {
	if err := s.configure(frame); err != nil {
		return err
	}

	r := s.resampler
	if r == nil {
		return s.next.Consume(ctx, frame)
	}

	if !s.anchored || frame.StartMicros != s.inNext || frame.StreamID != s.streamID {
		s.nextStart = frame.StartMicros
		s.streamID = frame.StreamID
		s.anchored = true
	}
	s.inNext = frame.StopMicros

	capacity := r.RecommendOutBufferSize(len(frame.Samples))
	out := s.config.Pool.Get(s.outFormat, capacity/s.outFormat.Channels)
	defer out.Release()

	n, err := r.Process(frame.Samples, 0, out.Samples, 0, len(frame.Samples))
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.forward(ctx, out, n)
}

// Clear resets filter history and clears downstream
func (s *Stage) Clear() error {
	if s.resampler != nil {
		s.resampler.Clear()
	}
	s.anchored = false
	return s.next.Clear()
}

// Close emits the filter tail and closes downstream
func (s *Stage) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext is Close with the tail delivery and the downstream close
// bounded by ctx.
func (s *Stage) CloseContext(ctx context.Context) error {
	if r := s.resampler; r != nil {
		out := s.config.Pool.Get(s.outFormat, r.DrainSize()/s.outFormat.Channels)
		n := r.Drain(out.Samples, 0)
		if n > 0 {
			if err := s.forward(ctx, out, n); err != nil {
				out.Release()
				return err
			}
		}
		out.Release()
	}
	return audio.CloseSink(ctx, s.next)
}

func (s *Stage) forward(ctx context.Context, out *audio.Frame, frames int) error {
	out.Samples = out.Samples[:frames*s.outFormat.Channels]
	out.StreamID = s.streamID
	out.StartMicros = s.nextStart
	out.StopMicros = s.nextStart + s.outFormat.FramesToMicros(int64(frames))
	s.nextStart = out.StopMicros
	return s.next.Consume(ctx, out)
}

// configure rebuilds the resampler when the input format changes. Frames
// already at the output rate bypass resampling.
func (s *Stage) configure(frame *audio.Frame) error {
	if frame.Format == s.inFormat && (s.resampler != nil || frame.Format.SampleRate == s.config.OutputRate) {
		return nil
	}

	s.inFormat = frame.Format
	s.resampler = nil
	if frame.Format.SampleRate == s.config.OutputRate {
		return nil
	}

	r, err := New(frame.Format.SampleRate, s.config.OutputRate, frame.Format.Channels, s.config.Options...)
	if err != nil {
		return err
	}
	s.resampler = r
	s.outFormat = audio.Format{
		Channels:   frame.Format.Channels,
		SampleRate: s.config.OutputRate,
		Encoding:   audio.EncodingF32,
	}
	s.anchored = false

	s.log.Debug().
		Int("in_rate", frame.Format.SampleRate).
		Int("out_rate", s.config.OutputRate).
		Int("channels", frame.Format.Channels).
		Msg("resampler configured")
	return nil
}
