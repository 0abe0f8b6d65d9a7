// ABOUTME: WAV file source
// ABOUTME: Loads the full PCM chunk with go-audio/wav and converts it to float samples
package decode

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT format tag.
const wavFormatFloat = 3

// OpenWAV decodes the whole file into memory.
func OpenWAV(path string) (*PCMSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", audio.ErrConfiguration, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	samples, err := wavToFloat(buf, dec.WavAudioFormat == wavFormatFloat)
	if err != nil {
		return nil, err
	}
	channels := buf.Format.NumChannels
	samples = samples[:len(samples)-len(samples)%max(channels, 1)]
	return NewPCMSource(channels, buf.Format.SampleRate, samples)
}

// wavToFloat normalizes integer PCM of any supported depth to [-1, 1).
// 8-bit WAV data is unsigned; 32-bit float data arrives as raw bits.
func wavToFloat(buf *goaudio.IntBuffer, isFloat bool) ([]float32, error) {
	out := make([]float32, len(buf.Data))
	depth := buf.SourceBitDepth

	switch {
	case isFloat && depth == 32:
		for i, v := range buf.Data {
			out[i] = math.Float32frombits(uint32(int32(v)))
		}
	case depth == 8:
		for i, v := range buf.Data {
			out[i] = (float32(v) - 128) / 128
		}
	case depth == 16 || depth == 24 || depth == 32:
		scale := float32(int64(1) << (depth - 1))
		for i, v := range buf.Data {
			out[i] = float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("%w: unsupported WAV bit depth %d", audio.ErrConfiguration, depth)
	}
	return out, nil
}
