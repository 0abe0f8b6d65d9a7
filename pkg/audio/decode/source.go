// ABOUTME: Decoded audio source interface and file opener
// ABOUTME: Sources yield float packets stamped in their native time base
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// packetFrames is the number of frames sources aim to return per packet.
const packetFrames = 1024

// Packet is one chunk of decoded, interleaved float samples.
type Packet struct {
	Samples []float32
	Frames  int
	// PTS is in the source's TimeBase, or timer.NoPTS.
	PTS int64
}

// Source produces decoded audio. ReadPacket returns io.EOF at the end of
// the stream. Samples in a returned packet are only valid until the next call.
type Source interface {
	// Format describes the decoded samples. Encoding is always F32.
	Format() audio.Format
	TimeBase() timer.TimeBase
	ReadPacket() (Packet, error)
	// SeekMicros repositions so the next packet starts at or just before micros.
	SeekMicros(micros int64) error
	// DurationMicros returns the stream length, or timer.UnknownMicros.
	DurationMicros() int64
	Close() error
}

// Open selects a decoder by file extension. The pseudo path "tone:FREQ"
// opens an endless sine tone at 48kHz stereo.
func Open(path string) (Source, error) {
	if freq, ok := strings.CutPrefix(path, "tone:"); ok {
		hz, err := strconv.ParseFloat(freq, 64)
		if err != nil || hz <= 0 {
			return nil, fmt.Errorf("%w: tone frequency %q", audio.ErrConfiguration, freq)
		}
		return NewTone(ToneConfig{Frequency: hz})
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return OpenMP3(path)
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".flac":
		return OpenFLAC(path)
	default:
		return nil, fmt.Errorf("%w: unsupported audio format %s (supported: .mp3, .wav, .flac)",
			audio.ErrConfiguration, ext)
	}
}

// sampleTimeBase is the time base for sources whose PTS counts frames.
func sampleTimeBase(rate int) timer.TimeBase {
	return timer.TimeBase{Num: 1, Den: int64(rate)}
}

// microsToFrame converts a seek target to a frame index clamped to [0, total].
// A negative total means the length is unknown.
func microsToFrame(micros int64, rate int, total int64) int64 {
	f := max(micros, 0) * int64(rate) / 1_000_000
	if total >= 0 {
		f = min(f, total)
	}
	return f
}

func float32Format(channels, rate int) audio.Format {
	return audio.Format{Channels: channels, SampleRate: rate, Encoding: audio.EncodingF32}
}
