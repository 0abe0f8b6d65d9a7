// ABOUTME: Periodic exchange loop feeding a ClockSync
// ABOUTME: Probers supply the remote receive/send timestamps for each round trip
package sync

import (
	"context"
	"errors"
	"time"
)

// Prober performs one timestamp exchange with a remote clock.
// It is given the local send time and returns the remote receive and send times.
type Prober interface {
	Probe(ctx context.Context, t1 int64) (t2, t3 int64, err error)
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, t1 int64) (t2, t3 int64, err error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, t1 int64) (int64, int64, error) {
	return f(ctx, t1)
}

// SyncOnce runs a single exchange and folds the result into cs.
func (cs *ClockSync) SyncOnce(ctx context.Context, p Prober, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t1 := cs.LocalMicros()
	t2, t3, err := p.Probe(ctx, t1)
	if err != nil {
		return err
	}
	t4 := cs.LocalMicros()
	cs.ProcessSyncResponse(t1, t2, t3, t4)
	return nil
}

// Run probes every interval until ctx is cancelled. Failed probes are
// logged and retried on the next tick.
func (cs *ClockSync) Run(ctx context.Context, p Prober, interval time.Duration) error {
	if err := cs.SyncOnce(ctx, p, 2*interval); err != nil && ctx.Err() == nil {
		cs.log.Warn().Err(err).Msg("time sync failed")
	}

	ticker := cs.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			err := cs.SyncOnce(ctx, p, 2*interval)
			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
				cs.log.Warn().Msg("time sync timeout")
			case ctx.Err() == nil:
				cs.log.Warn().Err(err).Msg("time sync failed")
			}
			cs.CheckQuality()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
