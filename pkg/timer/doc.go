// ABOUTME: Stream timing package
// ABOUTME: Converts decoder timestamps into a continuous microsecond timeline
// Package timer stamps decoded packets with [start, stop) microsecond ranges.
//
// SampleTimer serves audio, where a packet's duration follows from its
// sample count. FrameTimer serves discrete-frame media with a constant
// frame duration. Both defer re-synchronization after Seek until the next
// packet, preferring that packet's own timestamp over the seek target.
//
//	t, _ := timer.NewSampleTimer(timer.TimeBase{Num: 1, Den: 48000}, format)
//	var r [2]int64
//	t.PacketDecoded(pts, int64(len(samples)), &r)
package timer
