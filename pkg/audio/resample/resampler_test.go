// ABOUTME: Tests for the polyphase resampler
// ABOUTME: Streaming equivalence, history bounds, frame counts and frequency response
package resample

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
)

func sineFrames(frames, channels, rate int, freq float64) []float32 {
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			// Offset channels slightly so a channel mix-up shows in the output
			out[i*channels+c] = v * float32(c+1) / float32(channels)
		}
	}
	return out
}

// runChunks resamples in using the given chunk sizes (in frames) and drains.
func runChunks(t *testing.T, r *Resampler, in []float32, chunks []int) []float32 {
	t.Helper()
	ch := r.Channels()
	var result []float32
	pos := 0
	for _, frames := range chunks {
		n := frames * ch
		out := make([]float32, r.RecommendOutBufferSize(n))
		produced, err := r.Process(in, pos, out, 0, n)
		require.NoError(t, err)
		result = append(result, out[:produced*ch]...)
		pos += n
		require.LessOrEqual(t, r.HistoryLen(), r.Taps(), "history must stay within the tap count")
	}
	require.Equal(t, len(in), pos)

	tail := make([]float32, r.DrainSize())
	n := r.Drain(tail, 0)
	return append(result, tail[:n*ch]...)
}

func randomChunks(rng *rand.Rand, total int) []int {
	var chunks []int
	for total > 0 {
		n := min(total, rng.Intn(300))
		chunks = append(chunks, n)
		total -= n
	}
	return chunks
}

func TestStreamingEquivalence(t *testing.T) {
	rates := []struct{ in, out int }{
		{48000, 44100},
		{44100, 48000},
		{48000, 8000},
		{8000, 48000},
		{32000, 32000},
		{22050, 16000},
	}

	rng := rand.New(rand.NewSource(7))
	for _, rate := range rates {
		for _, channels := range []int{1, 2, 3} {
			in := sineFrames(3000, channels, rate.in, 440)

			whole, err := New(rate.in, rate.out, channels)
			require.NoError(t, err)
			expected := runChunks(t, whole, in, []int{3000})

			chunked, err := New(rate.in, rate.out, channels)
			require.NoError(t, err)
			got := runChunks(t, chunked, in, randomChunks(rng, 3000))

			require.Len(t, got, len(expected), "%d->%d %dch", rate.in, rate.out, channels)
			for i := range expected {
				require.InDelta(t, expected[i], got[i], 1e-5, "%d->%d %dch sample %d", rate.in, rate.out, channels, i)
			}
		}
	}
}

func TestDownsampleScenario(t *testing.T) {
	r, err := New(48000, 44100, 2)
	require.NoError(t, err)

	in := sineFrames(1000, 2, 48000, 1000)
	chunks := []int{13, 200, 1, 377, 64, 245, 100}

	total := 0
	pos := 0
	for _, frames := range chunks {
		out := make([]float32, r.RecommendOutBufferSize(frames*2))
		n, err := r.Process(in, pos, out, 0, frames*2)
		require.NoError(t, err)
		total += n
		pos += frames * 2
	}

	expected := 1000.0 * 44100 / 48000
	assert.InDelta(t, expected, float64(total), 2)

	tail := make([]float32, r.DrainSize())
	drained := r.Drain(tail, 0)
	assert.LessOrEqual(t, drained, r.Taps()/2)
	assert.Positive(t, drained)
	assert.Equal(t, r.Taps()-1, r.HistoryLen(), "drain resets state")
}

func TestProcessRejectsPartialFrames(t *testing.T) {
	r, err := New(48000, 44100, 2)
	require.NoError(t, err)

	in := sineFrames(100, 2, 48000, 440)
	out := make([]float32, 1000)
	before := r.HistoryLen()

	n, err := r.Process(in, 0, out, 0, 101)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, audio.ErrInvalidArgument))
	assert.Equal(t, before, r.HistoryLen(), "no partial processing")

	_, err = r.Process(in, 0, out[:2], 0, 200)
	assert.ErrorIs(t, err, audio.ErrInvalidArgument, "undersized output")
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		in   int
		out  int
		ch   int
		opts []Option
	}{
		{"zero input rate", 0, 44100, 2, nil},
		{"negative output rate", 48000, -1, 2, nil},
		{"zero channels", 48000, 44100, 0, nil},
		{"too few taps", 48000, 44100, 2, []Option{WithTaps(2)}},
		{"too many taps", 48000, 44100, 2, []Option{WithTaps(1001)}},
		{"cutoff too low", 48000, 44100, 2, []Option{WithCutoff(0.001)}},
		{"cutoff too high", 48000, 44100, 2, []Option{WithCutoff(1.5)}},
		{"beta too small", 48000, 44100, 2, []Option{WithBeta(2.0)}},
		{"zero gain", 48000, 44100, 2, []Option{WithGain(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in, tt.out, tt.ch, tt.opts...)
			assert.ErrorIs(t, err, audio.ErrConfiguration)
		})
	}
}

func TestRatioReduction(t *testing.T) {
	r, err := New(48000, 44100, 1)
	require.NoError(t, err)
	in, out := r.Steps()
	assert.Equal(t, 160, in)
	assert.Equal(t, 147, out)
	assert.Len(t, r.table, 147*DefaultTaps)
}

func TestRecommendBufferSizes(t *testing.T) {
	r, err := New(48000, 44100, 2)
	require.NoError(t, err)

	assert.Equal(t, 2000*147/160+32, r.RecommendOutBufferSize(2000))
	assert.Equal(t, 1998, r.RecommendInBufferSize(r.RecommendOutBufferSize(2000)))
	assert.Equal(t, 0, r.RecommendInBufferSize(10))
}

func TestUnityGainForDC(t *testing.T) {
	r, err := New(44100, 48000, 1)
	require.NoError(t, err)

	in := make([]float32, 4096)
	for i := range in {
		in[i] = 0.5
	}
	out := make([]float32, r.RecommendOutBufferSize(len(in)))
	n, err := r.Process(in, 0, out, 0, len(in))
	require.NoError(t, err)
	require.Greater(t, n, 200)

	// Skip the warm-up where the window still overlaps the zero history
	for i := 100; i < n; i++ {
		assert.InDelta(t, 0.5, out[i], 1e-4, "sample %d", i)
	}
}

func TestGainOption(t *testing.T) {
	r, err := New(44100, 48000, 1, WithGain(0.5))
	require.NoError(t, err)

	in := make([]float32, 2048)
	for i := range in {
		in[i] = 1
	}
	out := make([]float32, r.RecommendOutBufferSize(len(in)))
	n, err := r.Process(in, 0, out, 0, len(in))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[n-1], 1e-4)
}

func TestFrequencyPreserved(t *testing.T) {
	const (
		inRate  = 48000
		outRate = 44100
		tone    = 1000.0
	)
	r, err := New(inRate, outRate, 1)
	require.NoError(t, err)

	in := sineFrames(inRate, 1, inRate, tone)
	out := make([]float32, r.RecommendOutBufferSize(len(in)))
	n, err := r.Process(in, 0, out, 0, len(in))
	require.NoError(t, err)

	const size = 16384
	require.Greater(t, n, size)
	seq := make([]float64, size)
	for i := range seq {
		seq[i] = float64(out[n-size+i])
	}

	coeffs := fourier.NewFFT(size).Coefficients(nil, seq)
	peak := 0
	for k := range coeffs {
		if cmplx.Abs(coeffs[k]) > cmplx.Abs(coeffs[peak]) {
			peak = k
		}
	}

	freq := float64(peak) * outRate / size
	assert.InDelta(t, tone, freq, float64(outRate)/size, "peak at %.1fHz", freq)
}

func TestAntiAliasing(t *testing.T) {
	// A 20kHz tone cannot be represented at 16kHz and must be attenuated
	r, err := New(48000, 16000, 1)
	require.NoError(t, err)

	in := sineFrames(9600, 1, 48000, 20000)
	out := make([]float32, r.RecommendOutBufferSize(len(in)))
	n, err := r.Process(in, 0, out, 0, len(in))
	require.NoError(t, err)

	var peak float64
	for _, v := range out[100:n] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	assert.Less(t, peak, 0.05)
}

func TestClearMatchesFresh(t *testing.T) {
	first := sineFrames(700, 2, 44100, 300)
	second := sineFrames(900, 2, 44100, 700)

	used, err := New(44100, 48000, 2)
	require.NoError(t, err)
	runChunks(t, used, first, []int{350, 350})
	// runChunks drains, so dirty the state again before clearing
	scratch := make([]float32, used.RecommendOutBufferSize(len(first)))
	_, err = used.Process(first, 0, scratch, 0, len(first))
	require.NoError(t, err)
	used.Clear()

	fresh, err := New(44100, 48000, 2)
	require.NoError(t, err)

	assert.Equal(t, runChunks(t, fresh, second, []int{900}), runChunks(t, used, second, []int{900}))
}

func TestBesselI0(t *testing.T) {
	assert.Equal(t, 1.0, besselI0(0))
	assert.InDelta(t, 1.2660658777520082, besselI0(1), 1e-12)
	assert.InDelta(t, 2815.716628466254, besselI0(10), 1e-6)
}

func TestDesignTableRowsSumToGain(t *testing.T) {
	const phases, taps = 147, 45
	table := designTable(phases, taps, 0.8*160.0/147.0, 16, 0.75)
	require.Len(t, table, phases*taps)

	for p := 0; p < phases; p++ {
		var sum float64
		for _, v := range table[p*taps : (p+1)*taps] {
			sum += float64(v)
		}
		require.InDelta(t, 0.75, sum, 1e-4, "row %d", p)
	}
}
