// ABOUTME: Bounded free-list of audio frames keyed by format
// ABOUTME: Frames return here when their reference count reaches zero
package audio

import "sync"

// PoolConfig bounds a FramePool
type PoolConfig struct {
	// MaxItems is the maximum number of free frames kept (default: 64)
	MaxItems int

	// MaxBytes is the maximum sample memory kept by free frames (default: 16 MiB)
	MaxBytes int
}

// FramePool recycles frames per Format. Content is never used as a key.
type FramePool struct {
	mu       sync.Mutex
	free     map[Format][]*Frame
	items    int
	bytes    int
	maxItems int
	maxBytes int
}

// NewFramePool creates a pool with the given bounds
func NewFramePool(config PoolConfig) *FramePool {
	if config.MaxItems <= 0 {
		config.MaxItems = 64
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 16 << 20
	}
	return &FramePool{
		free:     make(map[Format][]*Frame),
		maxItems: config.MaxItems,
		maxBytes: config.MaxBytes,
	}
}

// Get returns a frame with exactly frames×channels samples and a reference
// count of one. Time range and stream id are reset.
func (p *FramePool) Get(format Format, frames int) *Frame {
	need := frames * format.Channels

	p.mu.Lock()
	list := p.free[format]
	for i := len(list) - 1; i >= 0; i-- {
		f := list[i]
		if cap(f.Samples) < need {
			continue
		}
		list[i] = list[len(list)-1]
		p.free[format] = list[:len(list)-1]
		p.items--
		p.bytes -= cap(f.Samples) * 4
		p.mu.Unlock()

		f.Samples = f.Samples[:need]
		f.StartMicros, f.StopMicros, f.StreamID = 0, 0, ""
		f.refs.Store(1)
		return f
	}
	p.mu.Unlock()

	f := NewFrame(format, frames)
	f.pool = p
	return f
}

// Len returns the number of free frames held
func (p *FramePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items
}

func (p *FramePool) put(f *Frame) {
	size := cap(f.Samples) * 4

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.items+1 > p.maxItems || p.bytes+size > p.maxBytes {
		return
	}
	p.free[f.Format] = append(p.free[f.Format], f)
	p.items++
	p.bytes += size
}
