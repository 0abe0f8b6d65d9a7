// ABOUTME: Synthetic sine tone source
// ABOUTME: Emits packets without timestamps so downstream timers synthesize durations
package decode

import (
	"io"
	"math"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// ToneConfig configures a sine source. Zero fields take defaults.
type ToneConfig struct {
	Frequency  float64 // Hz, default 440
	Amplitude  float64 // default 0.5
	SampleRate int     // default 48000
	Channels   int     // default 2
	// Duration in microseconds; 0 plays forever.
	DurationMicros int64
}

// ToneSource generates a sine wave. Packets carry timer.NoPTS.
type ToneSource struct {
	cfg     ToneConfig
	format  audio.Format
	frames  int64 // total, -1 when endless
	pos     int64
	samples []float32
}

// NewTone creates a tone source
func NewTone(cfg ToneConfig) (*ToneSource, error) {
	if cfg.Frequency == 0 {
		cfg.Frequency = 440
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.5
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	format := float32Format(cfg.Channels, cfg.SampleRate)
	if err := format.Validate(); err != nil {
		return nil, err
	}

	frames := int64(-1)
	if cfg.DurationMicros > 0 {
		frames = format.MicrosToFrames(cfg.DurationMicros)
	}
	return &ToneSource{
		cfg:     cfg,
		format:  format,
		frames:  frames,
		samples: make([]float32, packetFrames*cfg.Channels),
	}, nil
}

func (s *ToneSource) Format() audio.Format     { return s.format }
func (s *ToneSource) TimeBase() timer.TimeBase { return sampleTimeBase(s.format.SampleRate) }

func (s *ToneSource) ReadPacket() (Packet, error) {
	n := int64(packetFrames)
	if s.frames >= 0 {
		n = min(n, s.frames-s.pos)
		if n <= 0 {
			return Packet{}, io.EOF
		}
	}

	ch := s.cfg.Channels
	w := 2 * math.Pi * s.cfg.Frequency / float64(s.cfg.SampleRate)
	out := s.samples[:int(n)*ch]
	for i := int64(0); i < n; i++ {
		v := float32(s.cfg.Amplitude * math.Sin(w*float64(s.pos+i)))
		for c := 0; c < ch; c++ {
			out[int(i)*ch+c] = v
		}
	}
	s.pos += n
	return Packet{Samples: out, Frames: int(n), PTS: timer.NoPTS}, nil
}

func (s *ToneSource) SeekMicros(micros int64) error {
	s.pos = microsToFrame(micros, s.format.SampleRate, s.frames)
	return nil
}

func (s *ToneSource) DurationMicros() int64 {
	if s.frames < 0 {
		return timer.UnknownMicros
	}
	return s.format.FramesToMicros(s.frames)
}

func (s *ToneSource) Close() error { return nil }
