// ABOUTME: FLAC file source
// ABOUTME: Parses frames with mewkiz/flac and seeks to sample positions
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file    *os.File
	stream  *flac.Stream
	format  audio.Format
	scale   float32
	frames  int64
	pos     int64 // frames
	samples []float32
}

// OpenFLAC opens a FLAC file
func OpenFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	frames := int64(info.NSamples)
	if frames == 0 {
		frames = -1
	}
	return &FLACSource{
		file:   f,
		stream: stream,
		format: float32Format(int(info.NChannels), int(info.SampleRate)),
		scale:  float32(int64(1) << (info.BitsPerSample - 1)),
		frames: frames,
	}, nil
}

func (s *FLACSource) Format() audio.Format     { return s.format }
func (s *FLACSource) TimeBase() timer.TimeBase { return sampleTimeBase(s.format.SampleRate) }

func (s *FLACSource) ReadPacket() (Packet, error) {
	fr, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("flac decode error: %w", err)
	}

	ch := s.format.Channels
	n := int(fr.BlockSize)
	if cap(s.samples) < n*ch {
		s.samples = make([]float32, n*ch)
	}
	out := s.samples[:n*ch]
	for c := 0; c < ch; c++ {
		sub := fr.Subframes[c].Samples
		for i := 0; i < n; i++ {
			out[i*ch+c] = float32(sub[i]) / s.scale
		}
	}

	p := Packet{Samples: out, Frames: n, PTS: s.pos}
	s.pos += int64(n)
	return p, nil
}

func (s *FLACSource) SeekMicros(micros int64) error {
	target := microsToFrame(micros, s.format.SampleRate, s.frames)
	got, err := s.stream.Seek(uint64(target))
	if err != nil {
		return fmt.Errorf("flac seek: %w", err)
	}
	s.pos = int64(got)
	return nil
}

func (s *FLACSource) DurationMicros() int64 {
	if s.frames < 0 {
		return timer.UnknownMicros
	}
	return s.format.FramesToMicros(s.frames)
}

func (s *FLACSource) Close() error {
	return s.file.Close()
}
