// ABOUTME: Rational time bases and exact timestamp conversion
// ABOUTME: Maps decoder PTS units to microseconds without overflow
package timer

import (
	"fmt"
	"math"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

const (
	// NoPTS marks a packet without a decoder timestamp
	NoPTS int64 = math.MinInt64

	// UnknownMicros marks a position that cannot be determined
	UnknownMicros int64 = math.MinInt64
)

// TimeBase is the duration of one PTS unit in seconds, as Num/Den
type TimeBase struct {
	Num int64
	Den int64
}

func (tb TimeBase) String() string {
	return fmt.Sprintf("%d/%d", tb.Num, tb.Den)
}

// ratio is a reduced non-negative rational used for unit conversion
type ratio struct {
	num int64
	den int64
}

func newRatio(num, den int64) ratio {
	g := gcd(num, den)
	return ratio{num: num / g, den: den / g}
}

// apply returns v*num/den truncated toward zero. The product is split so
// that only the remainder is multiplied, keeping intermediates small.
func (r ratio) apply(v int64) int64 {
	q, rem := v/r.den, v%r.den
	return q*r.num + rem*r.num/r.den
}

// Converter maps PTS values to the microsecond timeline around an anchor
type Converter struct {
	toMicros    ratio
	toPts       ratio
	startPts    int64
	startMicros int64
}

// NewConverter builds a converter for tb where startPts maps to startMicros
func NewConverter(tb TimeBase, startPts, startMicros int64) (Converter, error) {
	if tb.Num <= 0 || tb.Den <= 0 {
		return Converter{}, fmt.Errorf("timer: %w: time base %v", audio.ErrConfiguration, tb)
	}
	if startPts == NoPTS {
		startPts = 0
	}
	if startMicros == UnknownMicros {
		startMicros = 0
	}

	// Reduce num*1e6/den once so that per-call arithmetic stays small
	g := gcd(tb.Num, tb.Den)
	num, den := tb.Num/g, tb.Den/g
	a := gcd(den, 1_000_000)
	micros := newRatio(num*(1_000_000/a), den/a)

	return Converter{
		toMicros:    micros,
		toPts:       ratio{num: micros.den, den: micros.num},
		startPts:    startPts,
		startMicros: startMicros,
	}, nil
}

// PtsToMicros converts pts to microseconds. NoPTS maps to UnknownMicros.
func (c Converter) PtsToMicros(pts int64) int64 {
	if pts == NoPTS {
		return UnknownMicros
	}
	return c.toMicros.apply(pts-c.startPts) + c.startMicros
}

// MicrosToPts converts microseconds to pts. UnknownMicros maps to NoPTS.
func (c Converter) MicrosToPts(micros int64) int64 {
	if micros == UnknownMicros {
		return NoPTS
	}
	return c.toPts.apply(micros-c.startMicros) + c.startPts
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
