// ABOUTME: MP3 file source
// ABOUTME: Decodes with go-mp3 (always 16-bit stereo) and seeks by byte offset
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// go-mp3 always produces interleaved 16-bit stereo.
const (
	mp3Channels   = 2
	mp3FrameBytes = mp3Channels * 2
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	frames  int64
	pos     int64 // frames
	raw     []byte
	samples []float32
}

// OpenMP3 opens an MP3 file
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Source{
		file:    f,
		decoder: decoder,
		format:  float32Format(mp3Channels, decoder.SampleRate()),
		frames:  decoder.Length() / mp3FrameBytes,
		raw:     make([]byte, packetFrames*mp3FrameBytes),
		samples: make([]float32, packetFrames*mp3Channels),
	}, nil
}

func (s *MP3Source) Format() audio.Format     { return s.format }
func (s *MP3Source) TimeBase() timer.TimeBase { return sampleTimeBase(s.format.SampleRate) }

func (s *MP3Source) ReadPacket() (Packet, error) {
	n, err := io.ReadFull(s.decoder, s.raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	n -= n % mp3FrameBytes
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return Packet{}, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return Packet{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	count := audio.DecodeSamples(s.samples, s.raw[:n], audio.EncodingS16)
	p := Packet{
		Samples: s.samples[:count],
		Frames:  count / mp3Channels,
		PTS:     s.pos,
	}
	s.pos += int64(p.Frames)
	return p, nil
}

func (s *MP3Source) SeekMicros(micros int64) error {
	frame := microsToFrame(micros, s.format.SampleRate, s.frames)
	if _, err := s.decoder.Seek(frame*mp3FrameBytes, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	s.pos = frame
	return nil
}

func (s *MP3Source) DurationMicros() int64 {
	return s.format.FramesToMicros(s.frames)
}

func (s *MP3Source) Close() error {
	return s.file.Close()
}
