// ABOUTME: Producer side of the playback engine
// ABOUTME: Blocking ConsumeAudio with backpressure, Clear on seek and Drain at end of stream
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// ConsumeAudio encodes frames interleaved samples starting at offset into
// the ring, blocking while it is full. It returns fewer than frames only
// when interrupted: by ctx, which yields an error wrapping
// audio.ErrCancelledWait, or by Close, which yields audio.ErrClosed.
func (e *Engine) ConsumeAudio(ctx context.Context, samples []float32, offset, frames int) (int, error) {
	ch := e.format.Channels
	if offset < 0 || frames < 0 || offset+frames*ch > len(samples) {
		return 0, fmt.Errorf("%w: %d frames at offset %d exceed %d samples",
			audio.ErrInvalidArgument, frames, offset, len(samples))
	}

	fs := e.format.FrameSize()

	e.mu.Lock()
	defer e.mu.Unlock()

	accepted := 0
	for accepted < frames {
		if e.closed {
			return accepted, e.closedErr()
		}
		free := e.ring.Free() / fs
		if free == 0 {
			if !e.waitLocked(ctx, 0) {
				return accepted, fmt.Errorf("%w: %w", audio.ErrCancelledWait, ctx.Err())
			}
			continue
		}

		n := min(free, frames-accepted)
		nbytes := n * fs
		if cap(e.scratch) < nbytes {
			e.scratch = make([]byte, nbytes)
		}
		buf := e.scratch[:nbytes]
		start := offset + accepted*ch
		audio.EncodeSamples(buf, samples[start:start+n*ch], e.format.Encoding)
		e.ring.Write(buf)

		accepted += n
		e.stats.Accepted += int64(nbytes)
		e.changed()
	}
	return accepted, nil
}

// Clear discards all buffered audio and flushes the device.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	dropped := e.ring.Len()
	e.ring.Reset()
	e.stats.Discarded += int64(dropped)
	if err := e.dev.Flush(); err != nil {
		e.fail(err)
		return e.closedErr()
	}
	if dropped > 0 {
		e.log.Debug().Int("bytes", dropped).Msg("cleared buffered audio")
	}
	e.changed()
	return nil
}

// Drain blocks until every accepted byte has been handed to the device
// and, while the device is running, until the device has played it out.
// Queued device audio is not flushed, so nothing is truncated.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.closed {
			return e.closedErr()
		}

		var wait time.Duration
		if e.ring.Len() == 0 {
			if !e.active {
				return nil
			}
			queued := e.dev.BufferSize() - e.dev.Available()
			if queued <= 0 {
				return nil
			}
			wait = max(e.format.BytesToDuration(queued), minWait)
		}

		if !e.waitLocked(ctx, wait) {
			return fmt.Errorf("%w: %w", audio.ErrCancelledWait, ctx.Err())
		}
	}
}
