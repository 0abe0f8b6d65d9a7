// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Frame, FramePool, Sink and sample conversion functions
// Package audio provides the types shared by every stage of the playback core.
//
//   - Format: channel count, sample rate and sample encoding of a PCM stream
//   - Frame: interleaved float32 samples with a [start, stop) microsecond range
//   - FramePool: bounded free-list of frames keyed by Format
//   - Sink: the consume/clear/close contract between pipeline stages
//
// Example:
//
//	pool := audio.NewFramePool(audio.PoolConfig{MaxItems: 32})
//	frame := pool.Get(audio.Format{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingF32}, 1024)
//	defer frame.Release()
package audio
