// ABOUTME: Master clock package
// ABOUTME: Shared transport timeline for synchronized playback
// Package clock provides the master clock that playback stages schedule
// against.
//
// A PlayClock keeps a mapping from master (exec) time to media time. Start,
// Stop, Seek and SetRate take the master instant at which the change
// applies and forward it to every registered Listener:
//
//	pc := clock.New(clock.Config{})
//	pc.AddListener(engine)
//	pc.Start(pc.Micros() + 100_000)
package clock
