// ABOUTME: Byte FIFO shared between writers and device callbacks
// ABOUTME: Fixed capacity, never blocks, safe for concurrent use
package output

import "sync"

// fifo is the device-side buffer that hardware callbacks read from.
type fifo struct {
	mu       sync.Mutex
	buf      []byte
	readPos  int
	writePos int
	count    int
}

func newFIFO(capacity int) *fifo {
	return &fifo{buf: make([]byte, capacity)}
}

// Write appends as much of p as fits and returns the number of bytes taken.
func (f *fifo) Write(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(len(p), len(f.buf)-f.count)
	for done := 0; done < n; {
		c := copy(f.buf[f.writePos:], p[done:n])
		f.writePos = (f.writePos + c) % len(f.buf)
		done += c
	}
	f.count += n
	return n
}

// Read moves up to len(p) queued bytes into p.
func (f *fifo) Read(p []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(len(p), f.count)
	for done := 0; done < n; {
		c := copy(p[done:n], f.buf[f.readPos:])
		f.readPos = (f.readPos + c) % len(f.buf)
		done += c
	}
	f.count -= n
	return n
}

// Len returns the number of queued bytes.
func (f *fifo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Free returns the remaining capacity.
func (f *fifo) Free() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf) - f.count
}

// Cap returns the total capacity.
func (f *fifo) Cap() int {
	return len(f.buf)
}

// Reset drops all queued bytes.
func (f *fifo) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readPos, f.writePos, f.count = 0, 0, 0
}
