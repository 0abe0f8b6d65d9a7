// ABOUTME: Delivery loop moving ring bytes into the output device
// ABOUTME: Applies queued transport events at their instants and paces refills by device free space
package playback

import "time"

func (e *Engine) run() {
	defer close(e.done)

	e.mu.Lock()
	defer e.mu.Unlock()

	for !e.closed {
		if err := e.step(); err != nil {
			e.fail(err)
		}
	}
	e.shutdownDevice()
}

// step applies due transport events, then performs at most one wait.
// Every wake returns to the top of run, so a change that lands mid-wait is
// always evaluated against fresh state. Must hold e.mu.
func (e *Engine) step() error {
	t := &e.transport

	for len(t.pending) > 0 && e.untilExec(t.pending[0].exec) <= 0 {
		ev := t.pending[0]
		t.pending = t.pending[1:]
		if err := e.apply(ev); err != nil {
			return err
		}
	}

	// next bounds every wait so the head event fires on time.
	var next time.Duration
	if len(t.pending) > 0 {
		if next = e.untilExec(t.pending[0].exec); next <= 0 {
			return nil
		}
	}

	if !e.active {
		// Prefill so output begins with a full device buffer.
		if len(t.pending) > 0 && t.pending[0].kind == eventStart {
			if err := e.fillDevice(); err != nil {
				return err
			}
		}
		e.waitLocked(nil, next)
		return nil
	}

	if e.ring.Len() == 0 {
		if !e.starved {
			e.starved = true
			e.stats.Underruns++
			e.log.Debug().Msg("ring buffer empty while playing")
		}
		e.waitLocked(nil, next)
		return nil
	}
	e.starved = false

	want := min(e.chunk, e.ring.Len())
	avail := e.dev.Available()
	d := e.format.BytesToDuration(want - avail)
	if avail >= want || (d < refillThreshold && avail >= e.format.FrameSize()) {
		before := e.ring.Len()
		if err := e.fillDevice(); err != nil {
			return err
		}
		if e.ring.Len() < before {
			return nil
		}
		// The device reported room but took nothing; back off.
		d = minWait
	}
	d = max(d, minWait)
	if next > 0 {
		d = min(d, next)
	}
	e.waitLocked(nil, d)
	return nil
}

// apply performs one transport event whose instant has arrived.
func (e *Engine) apply(ev transportEvent) error {
	switch ev.kind {
	case eventStart:
		if !e.active {
			if err := e.fillDevice(); err != nil {
				return err
			}
			return e.startDevice(ev.exec)
		}
	case eventStop:
		if e.active {
			return e.stopDevice(ev.exec)
		}
	case eventSeek:
		e.log.Debug().Int64("exec", ev.exec).Int64("target", ev.target).Msg("seek applied")
		if e.active {
			// Re-sync: restart from a full device buffer at the seek instant.
			if err := e.stopDevice(ev.exec); err != nil {
				return err
			}
			if err := e.fillDevice(); err != nil {
				return err
			}
			return e.startDevice(ev.exec)
		}
	case eventRate:
		e.transport.rate = ev.rate
		e.log.Debug().Int64("exec", ev.exec).Float64("rate", ev.rate).Msg("rate change recorded")
	}
	return nil
}

// untilExec returns the wall time remaining before master instant exec.
func (e *Engine) untilExec(exec int64) time.Duration {
	return e.clk.Until(e.clock.WallTime(exec))
}

// fillDevice writes as much buffered audio as the device accepts.
func (e *Engine) fillDevice() error {
	wrote := 0
	for e.ring.Len() > 0 {
		seg := e.ring.Peek()
		n, err := e.dev.Write(seg)
		if n > 0 {
			e.ring.Discard(n)
			wrote += n
		}
		if err != nil {
			e.stats.Written += int64(wrote)
			return err
		}
		if n < len(seg) {
			break
		}
	}
	if wrote > 0 {
		e.stats.Written += int64(wrote)
		e.changed()
	}
	return nil
}

func (e *Engine) startDevice(exec int64) error {
	if err := e.dev.Start(); err != nil {
		return err
	}
	e.active = true
	e.starved = false
	e.log.Debug().Int64("exec", exec).Msg("device started")
	return nil
}

func (e *Engine) stopDevice(exec int64) error {
	if err := e.dev.Stop(); err != nil {
		return err
	}
	e.active = false
	e.log.Debug().Int64("exec", exec).Msg("device stopped")
	return nil
}

// shutdownDevice releases the device when the loop exits.
func (e *Engine) shutdownDevice() {
	if e.active {
		if err := e.dev.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("device stop error")
		}
		e.active = false
	}
	if err := e.dev.Close(); err != nil {
		e.log.Warn().Err(err).Msg("device close error")
	}
	e.log.Info().
		Int64("accepted", e.stats.Accepted).
		Int64("written", e.stats.Written).
		Int64("discarded", e.stats.Discarded).
		Msg("playback engine stopped")
}
