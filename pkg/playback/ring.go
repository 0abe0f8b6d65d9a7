// ABOUTME: Fixed-capacity byte ring holding encoded PCM between producer and delivery loop
// ABOUTME: Not safe for concurrent use; the engine mutex guards it
package playback

// ring is a FIFO of encoded bytes. Readers consume through Peek and Discard
// so a partial device write leaves the rest in place.
type ring struct {
	buf []byte
	r   int
	n   int
}

func newRing(size int) *ring {
	return &ring{buf: make([]byte, size)}
}

func (b *ring) Len() int  { return b.n }
func (b *ring) Cap() int  { return len(b.buf) }
func (b *ring) Free() int { return len(b.buf) - b.n }

// Write appends as much of p as fits.
func (b *ring) Write(p []byte) int {
	n := min(len(p), b.Free())
	w := (b.r + b.n) % len(b.buf)
	c := copy(b.buf[w:], p[:n])
	copy(b.buf, p[c:n])
	b.n += n
	return n
}

// Peek returns the contiguous run of bytes at the read position.
func (b *ring) Peek() []byte {
	end := min(b.r+b.n, len(b.buf))
	return b.buf[b.r:end]
}

// Discard drops n bytes from the read position.
func (b *ring) Discard(n int) {
	n = min(n, b.n)
	b.r = (b.r + n) % len(b.buf)
	b.n -= n
	if b.n == 0 {
		b.r = 0
	}
}

func (b *ring) Reset() {
	b.r, b.n = 0, 0
}
