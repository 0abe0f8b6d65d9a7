// ABOUTME: Clock synchronization with drift compensation
// ABOUTME: Tracks both offset AND drift so a remote timeline can drive the master clock
package sync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	// Samples whose round trip exceeds this are discarded.
	maxRTTMicros = 100_000
	// Round trips below this keep quality at Good.
	goodRTTMicros = 50_000
	// Residuals beyond this are treated as clock jumps.
	maxResidualMicros = 50_000
	// Quality drops to Lost when no sample lands for this long.
	lostAfter = 5 * time.Second
)

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// ClockSync manages clock synchronization with drift compensation.
// It satisfies clock.Reference, so a PlayClock can run on the remote timeline.
type ClockSync struct {
	mu             sync.RWMutex
	clock          clockwork.Clock
	log            zerolog.Logger
	offset         int64   // remote - local, microseconds
	drift          float64 // dimensionless, μs/μs
	rawOffset      int64
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // local micros when offset/drift were last updated
	sampleCount    int
	smoothingRate  float64
}

// Option configures a ClockSync.
type Option func(*ClockSync)

// WithClock sets the local time source. Defaults to the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(cs *ClockSync) { cs.clock = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cs *ClockSync) { cs.log = l.With().Str("component", "clocksync").Logger() }
}

// WithSmoothing sets the filter gain applied to each residual.
func WithSmoothing(rate float64) Option {
	return func(cs *ClockSync) {
		if rate > 0 && rate <= 1 {
			cs.smoothingRate = rate
		}
	}
}

// NewClockSync creates a new clock synchronizer
func NewClockSync(opts ...Option) *ClockSync {
	cs := &ClockSync{
		clock:         clockwork.NewRealClock(),
		log:           zerolog.Nop(),
		smoothingRate: 0.1,
		quality:       QualityLost,
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// ProcessSyncResponse folds one four-timestamp exchange into the estimate.
// t1 and t4 are local send/receive micros, t2 and t3 remote receive/send micros.
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measuredOffset := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.rawOffset = measuredOffset
	cs.lastSync = cs.clock.Now()

	if cs.sampleCount < 3 {
		cs.log.Debug().
			Int64("t1", t1).Int64("t2", t2).Int64("t3", t3).Int64("t4", t4).
			Int64("rtt", rtt).Int64("measured_offset", measuredOffset).
			Msg("raw sync timestamps")
	}

	if rtt > maxRTTMicros {
		cs.log.Debug().Int64("rtt", rtt).Msg("discarding sync sample: high rtt")
		return
	}

	// First sample: offset only.
	if cs.sampleCount == 0 {
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = QualityGood
		cs.log.Info().Int64("offset", cs.offset).Int64("rtt", rtt).Msg("initial sync")
		return
	}

	// Second sample: initial drift from the change in offset.
	if cs.sampleCount == 1 {
		dt := float64(t4 - cs.lastSyncMicros)
		if dt > 0 {
			cs.drift = float64(measuredOffset-cs.offset) / dt
		}
		cs.offset = measuredOffset
		cs.lastSyncMicros = t4
		cs.sampleCount++
		cs.quality = QualityGood
		cs.log.Info().Int64("offset", cs.offset).Float64("drift", cs.drift).Int64("rtt", rtt).Msg("drift initialized")
		return
	}

	dt := float64(t4 - cs.lastSyncMicros)
	if dt <= 0 {
		cs.log.Debug().Msg("discarding sync sample: non-monotonic time")
		return
	}

	predictedOffset := cs.offset + int64(cs.drift*dt)
	residual := measuredOffset - predictedOffset

	if residual > maxResidualMicros || residual < -maxResidualMicros {
		cs.log.Warn().Int64("residual", residual).Msg("discarding sync sample: possible clock jump")
		return
	}

	// Fixed-gain Kalman style update of both offset and drift.
	cs.offset = predictedOffset + int64(cs.smoothingRate*float64(residual))
	cs.drift += cs.smoothingRate * float64(residual) / dt

	cs.lastSyncMicros = t4
	cs.sampleCount++

	if rtt < goodRTTMicros {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}

	if cs.sampleCount < 10 {
		cs.log.Debug().
			Int("sample", cs.sampleCount).
			Int64("offset", cs.offset).
			Float64("drift", cs.drift).
			Int64("residual", residual).
			Int64("rtt", rtt).
			Msg("sync update")
	}
}

// calculateOffset computes RTT and clock offset (positive = remote ahead).
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// GetOffset returns the current offset
func (cs *ClockSync) GetOffset() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset
}

// GetDrift returns the current drift estimate.
func (cs *ClockSync) GetDrift() float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.drift
}

// GetStats returns sync statistics
func (cs *ClockSync) GetStats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// Synced reports whether at least one sample has been accepted.
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// CheckQuality updates quality based on time since last sync
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.clock.Since(cs.lastSync) > lostAfter {
		cs.quality = QualityLost
	}
	return cs.quality
}

// LocalMicros returns the raw local clock in microseconds.
// Only sync exchanges should use it; everything else reads Now.
func (cs *ClockSync) LocalMicros() int64 {
	return cs.clock.Now().UnixMicro()
}

// Now returns the current time on the remote timeline in microseconds.
func (cs *ClockSync) Now() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	local := cs.clock.Now().UnixMicro()
	if cs.sampleCount == 0 {
		return local
	}

	// remote = local + offset + drift * (local - lastSync)
	dt := local - cs.lastSyncMicros
	return local + cs.offset + int64(cs.drift*float64(dt))
}

// LocalTime converts a remote timestamp to local wall clock time.
func (cs *ClockSync) LocalTime(remoteMicros int64) time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return time.UnixMicro(remoteMicros)
	}

	// Inverse of the forward transform in Now:
	// local = (remote - offset + drift*lastSync) / (1 + drift)
	numerator := float64(remoteMicros) - float64(cs.offset) + cs.drift*float64(cs.lastSyncMicros)
	return time.UnixMicro(int64(numerator / (1.0 + cs.drift)))
}
