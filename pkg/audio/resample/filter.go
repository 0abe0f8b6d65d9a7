// ABOUTME: Filter design for the polyphase resampler
// ABOUTME: Windowed-sinc kernel and Kaiser window via the I0 Bessel series
package resample

import (
	"math"

	"github.com/tphakala/simd/f64"
)

// besselI0 evaluates the zeroth-order modified Bessel function of the
// first kind by summing its power series until a term is negligible.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; ; k++ {
		f := halfX / float64(k)
		term *= f * f
		sum += term
		if term < 1e-21*sum {
			return sum
		}
	}
}

// kaiser returns the Kaiser window value at distance d from the center of
// a window spanning [-halfSpan, halfSpan].
func kaiser(d, halfSpan, beta, i0Beta float64) float64 {
	r := d / halfSpan
	if r <= -1 || r >= 1 {
		return 0
	}
	return besselI0(beta*math.Sqrt(1-r*r)) / i0Beta
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// designTable builds the polyphase table: phases rows of taps coefficients.
// Row p evaluates the filter at fractional offset p/phases past the
// window's center tap. Each row is normalized to sum to gain.
func designTable(phases, taps int, cutoff, beta, gain float64) []float32 {
	table := make([]float32, phases*taps)
	row := make([]float64, taps)

	half := (taps - 1) / 2
	halfSpan := float64(half + 1)
	i0Beta := besselI0(beta)

	for p := 0; p < phases; p++ {
		frac := float64(p) / float64(phases)

		for k := 0; k < taps; k++ {
			d := float64(k-half) - frac
			row[k] = cutoff * sinc(cutoff*d) * kaiser(d, halfSpan, beta, i0Beta)
		}

		if sum := f64.Sum(row); sum != 0 {
			f64.Scale(row, row, gain/sum)
		} else {
			f64.Scale(row, row, gain)
		}
		for k, v := range row {
			table[p*taps+k] = float32(v)
		}
	}

	return table
}
