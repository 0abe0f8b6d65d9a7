// ABOUTME: In-memory PCM source
// ABOUTME: Serves fully decoded float samples in fixed-size packets with exact seeking
package decode

import (
	"fmt"
	"io"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// PCMSource plays interleaved float samples held in memory.
type PCMSource struct {
	format  audio.Format
	samples []float32
	pos     int64 // frames
	frames  int64
}

// NewPCMSource wraps samples, which must hold whole frames.
func NewPCMSource(channels, rate int, samples []float32) (*PCMSource, error) {
	format := float32Format(channels, rate)
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels",
			audio.ErrInvalidArgument, len(samples), channels)
	}
	return &PCMSource{
		format:  format,
		samples: samples,
		frames:  int64(len(samples) / channels),
	}, nil
}

func (s *PCMSource) Format() audio.Format     { return s.format }
func (s *PCMSource) TimeBase() timer.TimeBase { return sampleTimeBase(s.format.SampleRate) }

func (s *PCMSource) ReadPacket() (Packet, error) {
	if s.pos >= s.frames {
		return Packet{}, io.EOF
	}
	n := min(int64(packetFrames), s.frames-s.pos)
	ch := int64(s.format.Channels)
	p := Packet{
		Samples: s.samples[s.pos*ch : (s.pos+n)*ch],
		Frames:  int(n),
		PTS:     s.pos,
	}
	s.pos += n
	return p, nil
}

func (s *PCMSource) SeekMicros(micros int64) error {
	s.pos = microsToFrame(micros, s.format.SampleRate, s.frames)
	return nil
}

func (s *PCMSource) DurationMicros() int64 {
	return s.format.FramesToMicros(s.frames)
}

func (s *PCMSource) Close() error { return nil }
