// ABOUTME: Clock synchronization package
// ABOUTME: Offset and drift estimation against a remote timeline
// Package sync estimates the relationship between the local clock and a
// remote clock from NTP-style four-timestamp exchanges.
//
// A ClockSync exposes the remote timeline through Now and LocalTime, which
// makes it usable as the reference of a clock.PlayClock:
//
//	cs := sync.NewClockSync()
//	go cs.Run(ctx, prober, time.Second)
//	pc := clock.New(clock.Config{Reference: cs})
package sync
