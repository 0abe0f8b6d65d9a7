// ABOUTME: Polyphase windowed-sinc sample rate converter
// ABOUTME: Streams interleaved float frames with per-channel filter history
package resample

import (
	"fmt"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/tphakala/simd/f32"
)

const (
	DefaultGain   = 1.0
	DefaultCutoff = 0.80
	DefaultTaps   = 45
	DefaultBeta   = 16.0

	minCutoff = 0.01
	maxCutoff = 1.0
	minTaps   = 3
	maxTaps   = 1000
	minBeta   = 2.0

	// outMarginFrames absorbs rounding in RecommendOutBufferSize
	outMarginFrames = 16
)

// Option configures a Resampler
type Option func(*params)

type params struct {
	gain   float64
	cutoff float64
	taps   int
	beta   float64
}

// WithGain scales the output
func WithGain(gain float64) Option { return func(p *params) { p.gain = gain } }

// WithCutoff sets the lowpass cutoff as a fraction of the lower Nyquist rate (0.01–1.0)
func WithCutoff(cutoff float64) Option { return func(p *params) { p.cutoff = cutoff } }

// WithTaps sets the filter length (3–1000)
func WithTaps(taps int) Option { return func(p *params) { p.taps = taps } }

// WithBeta sets the Kaiser window beta (> 2.0)
func WithBeta(beta float64) Option { return func(p *params) { p.beta = beta } }

// Resampler converts interleaved frames from one sample rate to another.
//
// Each channel keeps a history of the most recent input samples so that
// Process can be called with arbitrarily sized chunks and produce the same
// output as a single call over the concatenated input. Not safe for
// concurrent use.
type Resampler struct {
	channels   int
	inputStep  int
	outputStep int
	taps       int
	table      []float32

	// hist[c] holds the channel's unconsumed history; its first element is
	// the first tap of the next output window.
	hist  [][]float32
	work  [][]float32
	phase int
	skip  int
}

// New creates a resampler from inRate to outRate for the given channel count
func New(inRate, outRate, channels int, opts ...Option) (*Resampler, error) {
	p := params{gain: DefaultGain, cutoff: DefaultCutoff, taps: DefaultTaps, beta: DefaultBeta}
	for _, opt := range opts {
		opt(&p)
	}

	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resample: %w: rates %d -> %d", audio.ErrConfiguration, inRate, outRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("resample: %w: %d channels", audio.ErrConfiguration, channels)
	}
	if p.cutoff < minCutoff || p.cutoff > maxCutoff {
		return nil, fmt.Errorf("resample: %w: cutoff %f outside [%g, %g]", audio.ErrConfiguration, p.cutoff, minCutoff, maxCutoff)
	}
	if p.taps < minTaps || p.taps > maxTaps {
		return nil, fmt.Errorf("resample: %w: %d taps outside [%d, %d]", audio.ErrConfiguration, p.taps, minTaps, maxTaps)
	}
	if p.beta <= minBeta {
		return nil, fmt.Errorf("resample: %w: beta %f must exceed %g", audio.ErrConfiguration, p.beta, minBeta)
	}
	if p.gain <= 0 {
		return nil, fmt.Errorf("resample: %w: gain %f", audio.ErrConfiguration, p.gain)
	}

	g := gcd(inRate, outRate)
	inStep := inRate / g
	outStep := outRate / g

	cutoff, beta := p.cutoff, p.beta
	if ratio := float64(outStep) / float64(inStep); ratio < 1 {
		cutoff *= ratio
		beta *= ratio * ratio
	}

	r := &Resampler{
		channels:   channels,
		inputStep:  inStep,
		outputStep: outStep,
		taps:       p.taps,
		table:      designTable(outStep, p.taps, cutoff, beta, p.gain),
		hist:       make([][]float32, channels),
		work:       make([][]float32, channels),
	}
	r.Clear()
	return r, nil
}

// Channels returns the channel count
func (r *Resampler) Channels() int { return r.channels }

// Taps returns the filter length
func (r *Resampler) Taps() int { return r.taps }

// Steps returns the reduced input and output rate ratio
func (r *Resampler) Steps() (inputStep, outputStep int) { return r.inputStep, r.outputStep }

// HistoryLen returns the number of input frames currently held per channel
func (r *Resampler) HistoryLen() int { return len(r.hist[0]) }

// RecommendOutBufferSize returns an output capacity, in samples, large
// enough for one Process call over inSamples input samples.
func (r *Resampler) RecommendOutBufferSize(inSamples int) int {
	return inSamples*r.outputStep/r.inputStep + outMarginFrames*r.channels
}

// RecommendInBufferSize is the inverse of RecommendOutBufferSize, rounded
// down to whole frames and floored at zero.
func (r *Resampler) RecommendInBufferSize(outSamples int) int {
	n := (outSamples - outMarginFrames*r.channels) * r.inputStep / r.outputStep
	n -= n % r.channels
	return max(n, 0)
}

// DrainSize returns the output capacity, in samples, that Drain may need
func (r *Resampler) DrainSize() int {
	return r.RecommendOutBufferSize(r.padFrames() * r.channels)
}

// Process resamples inSamples interleaved samples from in[inOff:] into
// out[outOff:] and returns the number of frames written. inSamples must be
// a multiple of the channel count and out must have room for the result;
// otherwise nothing is consumed.
func (r *Resampler) Process(in []float32, inOff int, out []float32, outOff int, inSamples int) (int, error) {
	if inSamples < 0 || inSamples%r.channels != 0 {
		return 0, fmt.Errorf("resample: %w: %d samples is not a multiple of %d channels",
			audio.ErrInvalidArgument, inSamples, r.channels)
	}
	if inOff < 0 || inOff+inSamples > len(in) {
		return 0, fmt.Errorf("resample: %w: input range [%d, %d) exceeds %d samples",
			audio.ErrInvalidArgument, inOff, inOff+inSamples, len(in))
	}

	frames := inSamples / r.channels
	skipped := min(r.skip, frames)
	avail := len(r.hist[0]) + frames - skipped

	need := r.pending(avail)
	if outOff < 0 || outOff+need*r.channels > len(out) {
		return 0, fmt.Errorf("resample: %w: output needs %d samples, has %d",
			audio.ErrInvalidArgument, need*r.channels, len(out)-outOff)
	}

	for c := 0; c < r.channels; c++ {
		w := append(r.work[c][:0], r.hist[c]...)
		for i := skipped; i < frames; i++ {
			w = append(w, in[inOff+i*r.channels+c])
		}
		r.work[c] = w
	}
	r.skip -= skipped

	return r.run(out, outOff), nil
}

// Drain flushes the filter tail by feeding zero padding, writes the
// remaining frames to out[outOff:], and resets the resampler.
func (r *Resampler) Drain(out []float32, outOff int) int {
	pad := r.padFrames()
	if r.skip >= pad {
		r.Clear()
		return 0
	}
	pad -= r.skip
	r.skip = 0

	for c := 0; c < r.channels; c++ {
		w := append(r.work[c][:0], r.hist[c]...)
		for i := 0; i < pad; i++ {
			w = append(w, 0)
		}
		r.work[c] = w
	}

	n := r.pending(len(r.work[0]))
	if outOff < 0 || outOff+n*r.channels > len(out) {
		n = max(0, (len(out)-outOff)/r.channels)
	}
	produced := r.emit(out, outOff, n)
	r.Clear()
	return produced
}

// Clear drops all history and resets the phase. Call it whenever the input
// becomes discontinuous (after a seek).
func (r *Resampler) Clear() {
	for c := range r.hist {
		h := r.hist[c][:0]
		for i := 0; i < r.taps-1; i++ {
			h = append(h, 0)
		}
		r.hist[c] = h
	}
	r.phase = 0
	r.skip = 0
}

// padFrames is the zero padding that pushes the last real input sample
// past the center tap.
func (r *Resampler) padFrames() int {
	return r.taps - 1 - (r.taps-1)/2
}

// pending returns how many outputs a window buffer of n frames yields
func (r *Resampler) pending(n int) int {
	if n < r.taps {
		return 0
	}
	last := n - r.taps
	return ((last+1)*r.outputStep - r.phase + r.inputStep - 1) / r.inputStep
}

// run emits every output the work buffers allow and keeps the remainder
// as history.
func (r *Resampler) run(out []float32, outOff int) int {
	return r.emit(out, outOff, r.pending(len(r.work[0])))
}

func (r *Resampler) emit(out []float32, outOff int, count int) int {
	taps := r.taps
	n := len(r.work[0])

	var start, phase int
	for c := 0; c < r.channels; c++ {
		w := r.work[c]
		start, phase = 0, r.phase
		for j := 0; j < count; j++ {
			coeffs := r.table[phase*taps : phase*taps+taps]
			out[outOff+j*r.channels+c] = f32.DotProductUnsafe(w[start:start+taps], coeffs)

			phase += r.inputStep
			start += phase / r.outputStep
			phase %= r.outputStep
		}
	}
	r.phase = phase

	for c := 0; c < r.channels; c++ {
		if start <= n {
			r.hist[c] = append(r.hist[c][:0], r.work[c][start:]...)
		} else {
			r.hist[c] = r.hist[c][:0]
		}
	}
	if start > n {
		r.skip = start - n
	}

	return count
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
