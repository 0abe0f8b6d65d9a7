// ABOUTME: Tests for the engine byte ring
// ABOUTME: Checks FIFO order across wraparound and the length bounds
package playback

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingWrapsInOrder(t *testing.T) {
	b := newRing(6)
	assert.Equal(t, 4, b.Write([]byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Peek())

	b.Discard(3)
	assert.Equal(t, 5, b.Write([]byte{5, 6, 7, 8, 9, 10}))
	assert.Equal(t, 0, b.Free())

	assert.Equal(t, []byte{4, 5, 6}, b.Peek(), "peek stops at the physical end")
	b.Discard(3)
	assert.Equal(t, []byte{7, 8, 9}, b.Peek())
	b.Discard(10)
	assert.Equal(t, 0, b.Len())
}

func TestRingLengthStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := newRing(97)
	var in, out []byte
	next := byte(0)

	for i := 0; i < 5000; i++ {
		if rng.Intn(2) == 0 {
			p := make([]byte, rng.Intn(60))
			for j := range p {
				p[j] = next
				next++
			}
			n := b.Write(p)
			in = append(in, p[:n]...)
			next = byte(int(next) - (len(p) - n))
		} else {
			seg := b.Peek()
			k := rng.Intn(len(seg) + 1)
			out = append(out, seg[:k]...)
			b.Discard(k)
		}
		require.GreaterOrEqual(t, b.Len(), 0)
		require.LessOrEqual(t, b.Len(), b.Cap())
	}
	for b.Len() > 0 {
		seg := b.Peek()
		out = append(out, seg...)
		b.Discard(len(seg))
	}
	assert.Equal(t, in, out)
}
