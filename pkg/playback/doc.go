// ABOUTME: Playback engine package
// ABOUTME: Clock-synchronized delivery of PCM to an output device
// Package playback delivers timestamped PCM to an output device in step
// with a master clock.
//
// Producers push float samples with ConsumeAudio, which blocks while the
// ring buffer is full. A single delivery goroutine moves bytes into the
// device, starting and stopping it at the master instants given to
// PlayStart and PlayStop:
//
//	eng, err := playback.New(playback.Config{Format: f, Device: dev, Clock: pc})
//	pc.AddListener(eng)
//	pc.Start(pc.Micros() + 100_000)
//	n, err := eng.ConsumeAudio(ctx, samples, 0, frames)
package playback
