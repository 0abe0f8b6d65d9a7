// ABOUTME: Error taxonomy shared by the audio core
// ABOUTME: Sentinel errors matched with errors.Is by callers
package audio

import "errors"

var (
	// ErrConfiguration reports invalid construction parameters. Never recovered.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDeviceUnavailable reports that no output device could be acquired.
	ErrDeviceUnavailable = errors.New("output device unavailable")

	// ErrCancelledWait reports that a blocking buffer wait was interrupted.
	ErrCancelledWait = errors.New("wait cancelled")

	// ErrInvalidArgument reports a malformed call argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed reports use of a component after Close.
	ErrClosed = errors.New("closed")
)
