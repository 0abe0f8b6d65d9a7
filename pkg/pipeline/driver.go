// ABOUTME: Pipeline driver pulling packets from a source into a sink chain
// ABOUTME: Stamps packets on the media timeline and follows master clock seeks
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/decode"
	"github.com/decamp/drawjav-sub002/pkg/clock"
	"github.com/decamp/drawjav-sub002/pkg/timer"
)

// Config holds driver configuration
type Config struct {
	Source decode.Source

	// Sink is the head of the chain, usually a resample stage in front of
	// the playback engine's sink.
	Sink audio.Sink

	// Pool supplies frames (default: a private pool)
	Pool *audio.FramePool

	Logger zerolog.Logger
}

// Stats is a snapshot of driver progress
type Stats struct {
	Packets  int64
	Frames   int64
	Seeks    int64
	StreamID string
	// PositionMicros is the end of the last frame handed to the sink.
	PositionMicros int64
	DurationMicros int64
}

// Driver reads a Source and pushes timestamped frames down a sink chain.
// Run owns the source and the chain; Seek may be called from any goroutine
// and is applied by Run before the next packet.
type Driver struct {
	src    decode.Source
	sink   audio.Sink
	pool   *audio.FramePool
	format audio.Format
	timer  *timer.SampleTimer
	log    zerolog.Logger

	mu       sync.Mutex
	pending  bool
	target   int64
	cancel   context.CancelFunc
	streamID string
	stats    Stats
}

var _ clock.Listener = (*Driver)(nil)

// New creates a driver. The timeline starts at zero.
func New(cfg Config) (*Driver, error) {
	if cfg.Source == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("pipeline: %w: source and sink are required", audio.ErrConfiguration)
	}
	if cfg.Pool == nil {
		cfg.Pool = audio.NewFramePool(audio.PoolConfig{})
	}

	format := cfg.Source.Format()
	t, err := timer.NewSampleTimer(cfg.Source.TimeBase(), format)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	d := &Driver{
		src:      cfg.Source,
		sink:     cfg.Sink,
		pool:     cfg.Pool,
		format:   format,
		timer:    t,
		log:      cfg.Logger.With().Str("component", "pipeline").Logger(),
		streamID: uuid.NewString(),
	}
	d.stats.DurationMicros = cfg.Source.DurationMicros()
	return d, nil
}

// Run pumps packets until the source ends or ctx is cancelled. At the end
// of the stream the chain is closed, which drains it; the drain ends early
// when ctx is cancelled or a seek arrives.
func (d *Driver) Run(ctx context.Context) error {
	d.log.Info().
		Str("format", d.format.String()).
		Str("time_base", d.src.TimeBase().String()).
		Msg("pipeline started")

	var span [2]int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.applySeek(); err != nil {
			return err
		}

		pkt, err := d.src.ReadPacket()
		if errors.Is(err, io.EOF) {
			d.log.Info().Int64("position_us", d.timer.Position()).Msg("end of stream")
			closed, err := d.closeChain(ctx)
			if err != nil {
				return err
			}
			if closed {
				return nil
			}
			// A seek interrupted the drain; continue from its target.
			continue
		}
		if err != nil {
			return fmt.Errorf("pipeline: read packet: %w", err)
		}
		if pkt.Frames == 0 {
			continue
		}

		d.timer.PacketDecoded(pkt.PTS, int64(len(pkt.Samples)), &span)
		if err := d.push(ctx, pkt, span); err != nil {
			return err
		}
	}
}

// push hands one packet to the chain. A seek arriving while the sink blocks
// cancels the call and the packet is dropped.
func (d *Driver) push(ctx context.Context, pkt decode.Packet, span [2]int64) error {
	f := d.pool.Get(d.format, pkt.Frames)
	defer f.Release()
	copy(f.Samples, pkt.Samples)
	f.StartMicros, f.StopMicros = span[0], span[1]

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.pending {
		d.mu.Unlock()
		return nil
	}
	f.StreamID = d.streamID
	d.cancel = cancel
	d.mu.Unlock()

	err := d.sink.Consume(cctx, f)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel = nil
	if err != nil {
		if d.pending && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("pipeline: consume: %w", err)
	}
	d.stats.Packets++
	d.stats.Frames += int64(pkt.Frames)
	d.stats.PositionMicros = span[1]
	return nil
}

// closeChain drains the chain at end of stream. A seek arriving meanwhile
// cancels the drain and closeChain reports false.
func (d *Driver) closeChain(ctx context.Context) (bool, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.pending {
		d.mu.Unlock()
		return false, nil
	}
	d.cancel = cancel
	d.mu.Unlock()

	err := audio.CloseSink(cctx, d.sink)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel = nil
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case d.pending && errors.Is(err, context.Canceled):
		return false, nil
	}
	return false, fmt.Errorf("pipeline: close chain: %w", err)
}

func (d *Driver) applySeek() error {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return nil
	}
	target := d.target
	d.pending = false
	d.streamID = uuid.NewString()
	d.stats.Seeks++
	d.stats.PositionMicros = target
	d.mu.Unlock()

	if err := d.src.SeekMicros(target); err != nil {
		return fmt.Errorf("pipeline: seek source: %w", err)
	}
	d.timer.Seek(target)
	if err := d.sink.Clear(); err != nil {
		return fmt.Errorf("pipeline: clear chain: %w", err)
	}

	d.log.Debug().Int64("target_us", target).Msg("seek applied")
	return nil
}

// Seek schedules a reposition to targetMicros. The most recent target wins.
func (d *Driver) Seek(execMicros, targetMicros int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = true
	d.target = targetMicros
	if d.cancel != nil {
		d.cancel()
	}
}

// PlayStart implements clock.Listener. Transport is handled by the engine.
func (d *Driver) PlayStart(execMicros int64) {}

// PlayStop implements clock.Listener
func (d *Driver) PlayStop(execMicros int64) {}

// SetRate implements clock.Listener
func (d *Driver) SetRate(execMicros int64, rate float64) {}

// Stats returns a snapshot of driver progress
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.StreamID = d.streamID
	return s
}
