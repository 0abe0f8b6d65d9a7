// ABOUTME: StreamTimer protocol shared by frame and sample timers
// ABOUTME: Seek deferral and re-anchoring on the first packet after a seek
package timer

// Timer maps decoded packets onto a continuous microsecond timeline.
//
// Seek only records the target. The next packet re-anchors the timeline to
// its own timestamp when it has one, otherwise to the seek target.
type Timer interface {
	// Seek marks the timeline for re-synchronization at targetMicros
	Seek(targetMicros int64)

	// PacketDecoded stamps a decoded packet of units and advances
	PacketDecoded(pts int64, units int64, out *[2]int64)

	// PacketSkipped stamps a dropped packet using an estimated duration
	PacketSkipped(pts int64, approxUnits int64, out *[2]int64)

	// Position returns the start of the next packet's range
	Position() int64
}

// syncState holds the seek bookkeeping common to both timers
type syncState struct {
	conv       Converter
	needsSync  bool
	seekMicros int64
}

// anchor resolves the position the timeline restarts from
func (s *syncState) anchor(pts int64) int64 {
	s.needsSync = false
	if pts != NoPTS {
		return s.conv.PtsToMicros(pts)
	}
	return s.seekMicros
}

func (s *syncState) seek(targetMicros int64) {
	s.needsSync = true
	s.seekMicros = targetMicros
}
