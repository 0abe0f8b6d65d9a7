// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, sample encodings and timeline helpers
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Encoding identifies how a single sample is stored
type Encoding int

const (
	EncodingU8 Encoding = iota
	EncodingS16
	EncodingS32
	EncodingF32
	EncodingF64
)

// BytesPerSample returns the storage size of one sample
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingU8:
		return 1
	case EncodingS16:
		return 2
	case EncodingS32, EncodingF32:
		return 4
	case EncodingF64:
		return 8
	}
	return 0
}

func (e Encoding) String() string {
	switch e {
	case EncodingU8:
		return "u8"
	case EncodingS16:
		return "s16"
	case EncodingS32:
		return "s32"
	case EncodingF32:
		return "f32"
	case EncodingF64:
		return "f64"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding parses the short name returned by Encoding.String
func ParseEncoding(s string) (Encoding, error) {
	for e := EncodingU8; e <= EncodingF64; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sample encoding %q", ErrConfiguration, s)
}

// Format describes an interleaved PCM stream. It is a comparable value type.
type Format struct {
	Channels   int
	SampleRate int
	Encoding   Encoding
}

// Validate reports whether the format can describe a real stream
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrConfiguration, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrConfiguration, f.SampleRate)
	}
	if f.Encoding.BytesPerSample() == 0 {
		return fmt.Errorf("%w: sample encoding %v", ErrConfiguration, f.Encoding)
	}
	return nil
}

// FrameSize returns the number of bytes in one frame (one sample per channel)
func (f Format) FrameSize() int {
	return f.Channels * f.Encoding.BytesPerSample()
}

// BytesPerSecond returns the byte rate of the stream
func (f Format) BytesPerSecond() int {
	return f.FrameSize() * f.SampleRate
}

// BytesToFrames converts a byte count to whole frames
func (f Format) BytesToFrames(n int) int {
	return n / f.FrameSize()
}

// FramesToMicros returns the duration of n frames in microseconds
func (f Format) FramesToMicros(n int64) int64 {
	return n * 1_000_000 / int64(f.SampleRate)
}

// MicrosToFrames returns the number of whole frames that fit in micros
func (f Format) MicrosToFrames(micros int64) int64 {
	return micros * int64(f.SampleRate) / 1_000_000
}

// BytesToDuration returns the playback time of n bytes
func (f Format) BytesToDuration(n int) time.Duration {
	return time.Duration(f.BytesToFrames(n)) * time.Second / time.Duration(f.SampleRate)
}

// DurationToBytes returns the frame-aligned byte count that plays for d
func (f Format) DurationToBytes(d time.Duration) int {
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%v", f.SampleRate, f.Channels, f.Encoding)
}
