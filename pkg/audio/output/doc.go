// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device interface with oto, malgo and simulated backends
// Package output provides PCM output devices.
//
// Every backend exposes a bounded buffer through Available and a
// non-blocking Write, so the caller decides when to refill:
//
//	dev, err := output.New("oto", logger)
//	err = dev.Open(format, format.DurationToBytes(250*time.Millisecond))
//	n, err := dev.Write(pcm[:dev.Available()])
//	err = dev.Start()
//
// Memory simulates a device on a clockwork clock for tests and headless runs.
package output
