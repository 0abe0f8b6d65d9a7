// ABOUTME: Software gain for backends without a hardware volume control
// ABOUTME: Decodes, scales and re-encodes interleaved PCM in place with clipping
package output

import (
	"github.com/tphakala/simd/f32"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// applyGain scales the samples in buf by gain. scratch is grown as needed
// and returned for reuse.
func applyGain(buf []byte, enc audio.Encoding, gain float64, scratch []float32) []float32 {
	if gain == 1 {
		return scratch
	}
	bps := enc.BytesPerSample()
	if bps == 0 {
		return scratch
	}
	n := len(buf) / bps
	if cap(scratch) < n {
		scratch = make([]float32, n)
	}
	scratch = scratch[:n]

	audio.DecodeSamples(scratch, buf, enc)
	f32.Scale(scratch, scratch, float32(gain))
	for i, v := range scratch {
		if v > 1 {
			scratch[i] = 1
		} else if v < -1 {
			scratch[i] = -1
		}
	}
	audio.EncodeSamples(buf, scratch, enc)
	return scratch
}
