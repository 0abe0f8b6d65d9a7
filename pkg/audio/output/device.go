// ABOUTME: Audio output device interface definition
// ABOUTME: Common non-blocking contract for hardware and simulated backends
package output

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// Device is a PCM output with a bounded hardware-side buffer. Writes never
// block: callers poll Available and schedule their own refills.
type Device interface {
	// Open prepares the device for format with a buffer of roughly
	// bufferBytes. Failures wrap audio.ErrDeviceUnavailable.
	Open(format audio.Format, bufferBytes int) error

	// Write queues up to Available() bytes and returns how many were taken.
	Write(p []byte) (int, error)

	// Available returns the free space in the device buffer, in bytes.
	Available() int

	// BufferSize returns the total device buffer size, in bytes.
	BufferSize() int

	// Start begins draining the buffer to the hardware.
	Start() error

	// Stop halts draining. Queued bytes are kept.
	Stop() error

	// Flush discards queued bytes.
	Flush() error

	// SetGainDB sets the output gain in decibels. 0 is unity.
	SetGainDB(db float64)

	// Close releases the device.
	Close() error
}

// New returns the backend registered under name: "oto", "malgo" or "null".
func New(name string, logger zerolog.Logger) (Device, error) {
	switch name {
	case "oto", "":
		return NewOto(logger), nil
	case "malgo":
		return NewMalgo(logger), nil
	case "null", "memory":
		return NewMemory(nil), nil
	}
	return nil, fmt.Errorf("%w: unknown output device %q", audio.ErrConfiguration, name)
}

// dbToLinear converts a gain in decibels to an amplitude multiplier.
func dbToLinear(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/20)
}

// frameAlign rounds n down to a whole number of frames.
func frameAlign(n int, format audio.Format) int {
	fs := format.FrameSize()
	if fs <= 0 {
		return 0
	}
	return n - n%fs
}
