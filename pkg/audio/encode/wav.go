// ABOUTME: WAV file sink
// ABOUTME: Encodes float frames as 16 or 24-bit integer PCM with go-audio/wav
package encode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

const wavFormatPCM = 1

// WAVSink is an audio.Sink that appends every frame to a WAV file. The
// file format is fixed by the first frame.
type WAVSink struct {
	path     string
	bitDepth int
	log      zerolog.Logger

	file   *os.File
	enc    *wav.Encoder
	format audio.Format
	buf    goaudio.IntBuffer
	frames int64
	closed bool
}

// NewWAVSink creates path and returns a sink writing bitDepth-bit PCM
func NewWAVSink(path string, bitDepth int, logger zerolog.Logger) (*WAVSink, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("encode: %w: unsupported bit depth: %d (supported: 16, 24)", audio.ErrConfiguration, bitDepth)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("encode: failed to create %s: %w", path, err)
	}
	return &WAVSink{
		path:     path,
		bitDepth: bitDepth,
		log:      logger.With().Str("component", "wav").Str("path", path).Logger(),
		file:     f,
	}, nil
}

// Consume encodes frame. A format change mid-file is rejected.
func (s *WAVSink) Consume(ctx context.Context, frame *audio.Frame) error {
	if s.closed {
		return audio.ErrClosed
	}
	if s.enc == nil {
		s.format = frame.Format
		s.enc = wav.NewEncoder(s.file, frame.Format.SampleRate, s.bitDepth, frame.Format.Channels, wavFormatPCM)
		s.buf.Format = &goaudio.Format{NumChannels: frame.Format.Channels, SampleRate: frame.Format.SampleRate}
		s.buf.SourceBitDepth = s.bitDepth
		s.log.Debug().Stringer("format", frame.Format).Msg("wav stream started")
	} else if frame.Format.Channels != s.format.Channels || frame.Format.SampleRate != s.format.SampleRate {
		return fmt.Errorf("encode: %w: frame is %s, file is %s", audio.ErrInvalidArgument, frame.Format, s.format)
	}

	scale := float64(int64(1)<<(s.bitDepth-1)) - 1
	if cap(s.buf.Data) < len(frame.Samples) {
		s.buf.Data = make([]int, len(frame.Samples))
	}
	s.buf.Data = s.buf.Data[:len(frame.Samples)]
	for i, v := range frame.Samples {
		s.buf.Data[i] = int(math.Round(max(-1, min(1, float64(v))) * scale))
	}
	if err := s.enc.Write(&s.buf); err != nil {
		return fmt.Errorf("encode: write: %w", err)
	}
	s.frames += int64(frame.FrameCount())
	return nil
}

// Clear is a no-op; a file has no pending audio to discard.
func (s *WAVSink) Clear() error { return nil }

// Close finalizes the header and closes the file
func (s *WAVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.enc != nil {
		err = s.enc.Close()
	}
	err = errors.Join(err, s.file.Close())
	s.log.Info().Int64("frames", s.frames).Msg("wav file written")
	return err
}

// Frames returns the number of frames written
func (s *WAVSink) Frames() int64 { return s.frames }
