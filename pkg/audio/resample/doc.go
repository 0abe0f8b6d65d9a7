// ABOUTME: Sample rate conversion package
// ABOUTME: Polyphase windowed-sinc resampler and its pipeline stage
// Package resample converts interleaved float audio between sample rates.
//
// The Resampler reduces the two rates to their smallest integer ratio and
// precomputes one Kaiser-windowed sinc kernel per output phase. History is
// kept per channel, so input may arrive in chunks of any size:
//
//	r, err := resample.New(48000, 44100, 2)
//	out := make([]float32, r.RecommendOutBufferSize(len(in)))
//	n, err := r.Process(in, 0, out, 0, len(in))
//	// after a seek:
//	r.Clear()
package resample
