// ABOUTME: Main player application orchestration
// ABOUTME: Wires decoder, pipeline, playback engine, master clock and UI
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/internal/config"
	"github.com/decamp/drawjav-sub002/internal/ui"
	"github.com/decamp/drawjav-sub002/internal/version"
	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/decode"
	"github.com/decamp/drawjav-sub002/pkg/audio/output"
	"github.com/decamp/drawjav-sub002/pkg/audio/resample"
	"github.com/decamp/drawjav-sub002/pkg/clock"
	"github.com/decamp/drawjav-sub002/pkg/pipeline"
	"github.com/decamp/drawjav-sub002/pkg/playback"
	"github.com/decamp/drawjav-sub002/pkg/sync"
)

const statusInterval = 200 * time.Millisecond

// Config holds player configuration
type Config struct {
	config.Config

	// Path is a media file or a "tone:FREQ" pseudo path
	Path   string
	UseTUI bool

	// Device overrides the backend named by Config.Device
	Device output.Device
	// Reference overrides the master clock's time source
	Reference clock.Reference

	Logger zerolog.Logger
}

// Player represents the main player application
type Player struct {
	config Config
	log    zerolog.Logger
	format audio.Format

	source decode.Source
	clock  *clock.PlayClock
	engine *playback.Engine
	driver *pipeline.Driver

	ctrl    *ui.Control
	tuiProg *tea.Program

	mu       gosync.Mutex
	ended    bool
	rewind   chan struct{}
	feedErr  error
	feedDone chan struct{}

	closeOnce gosync.Once
}

// New opens the source and output device and builds the pipeline. The
// player starts paused at position zero.
func New(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}
	log := cfg.Logger.With().Str("component", "app").Logger()

	source, err := decode.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	// The device follows the source's channel layout; only the rate is
	// converted.
	format.Channels = source.Format().Channels

	device := cfg.Device
	if device == nil {
		device, err = output.New(cfg.Config.Device, cfg.Logger)
		if err != nil {
			source.Close()
			return nil, err
		}
	}

	p := &Player{
		config: cfg,
		log:    log,
		format: format,
		source: source,
		rewind: make(chan struct{}, 1),
	}
	p.clock = clock.New(clock.Config{Reference: cfg.Reference, Logger: cfg.Logger})

	p.engine, err = playback.New(playback.Config{
		Format:             format,
		Device:             device,
		Clock:              p.clock,
		BufferFrames:       cfg.FramesFor(cfg.BufferMs),
		DeviceBufferFrames: cfg.FramesFor(cfg.DeviceBufferMs),
		Logger:             cfg.Logger,
	})
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("failed to start playback engine: %w", err)
	}
	if err := p.engine.SetVolume(cfg.Volume); err != nil {
		p.abort()
		return nil, err
	}

	stage, err := resample.NewStage(resample.StageConfig{
		OutputRate: format.SampleRate,
		Options:    cfg.ResampleOptions(),
		Logger:     cfg.Logger,
	}, p.engine.Sink())
	if err != nil {
		p.abort()
		return nil, err
	}

	p.driver, err = pipeline.New(pipeline.Config{
		Source: source,
		Sink:   stage,
		Logger: cfg.Logger,
	})
	if err != nil {
		p.abort()
		return nil, err
	}

	p.clock.AddListener(p.engine)
	p.clock.AddListener(p.driver)

	log.Info().
		Str("product", version.Product).
		Str("version", version.Version).
		Str("path", cfg.Path).
		Stringer("source", source.Format()).
		Stringer("device", format).
		Msg("player ready")
	return p, nil
}

func (p *Player) abort() {
	p.engine.Close()
	p.source.Close()
}

// Run plays until the stream ends (headless), the user quits or ctx is
// cancelled.
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.feedDone = make(chan struct{})
	go func() {
		defer close(p.feedDone)
		p.feed(ctx)
	}()

	if p.config.UseTUI {
		p.ctrl = ui.NewControl()
		model := ui.NewModel(p.ctrl, time.Duration(p.config.SeekStepMs)*time.Millisecond)
		p.tuiProg = ui.Run(model)
		go func() {
			if _, err := p.tuiProg.Run(); err != nil {
				p.log.Error().Err(err).Msg("TUI failed")
			}
			select {
			case p.ctrl.Quit <- struct{}{}:
			default:
			}
		}()
		p.sendStatus(ui.StatusMsg{
			Title:      filepath.Base(p.config.Path),
			Format:     p.source.Format().String(),
			DurationUs: p.source.DurationMicros(),
		})
		go p.statusLoop(ctx)
	}

	p.Play()

	var err error
	if p.ctrl != nil {
		err = p.handleControls(ctx)
	} else {
		err = p.waitEnd(ctx)
	}

	// The feed goroutine may be parked in a drain; Close releases it.
	cancel()
	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
	return err
}

// feed runs the driver and parks at the end of the stream until a seek
// asks for more.
func (p *Player) feed(ctx context.Context) {
	for {
		err := p.driver.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.Error().Err(err).Msg("pipeline stopped")
			p.mu.Lock()
			p.feedErr = err
			p.mu.Unlock()
			p.sendStatus(ui.StatusMsg{Err: err.Error()})
		}

		p.mu.Lock()
		p.ended = true
		p.mu.Unlock()
		p.clock.Stop(p.clock.Micros())
		p.log.Info().Msg("playback ended")

		select {
		case <-p.rewind:
			p.mu.Lock()
			p.ended = false
			p.feedErr = nil
			p.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) waitEnd(ctx context.Context) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.engine.Err(); err != nil {
				return err
			}
			p.mu.Lock()
			ended, err := p.ended, p.feedErr
			p.mu.Unlock()
			if ended {
				return err
			}
		}
	}
}

// handleControls processes TUI commands
func (p *Player) handleControls(ctx context.Context) error {
	for {
		select {
		case cmd := <-p.ctrl.Commands:
			switch cmd.Kind {
			case ui.CommandToggle:
				p.Toggle()
			case ui.CommandSeek:
				p.SeekBy(cmd.Seek)
			case ui.CommandVolume:
				vol := float64(cmd.Volume) / 100
				if cmd.Muted {
					vol = 0
				}
				if err := p.engine.SetVolume(vol); err != nil {
					p.log.Warn().Err(err).Msg("volume change rejected")
				}
			}
		case <-p.ctrl.Quit:
			p.log.Info().Msg("received quit signal from TUI")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// statusLoop periodically updates TUI with playback statistics
func (p *Player) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sendStatus(p.Status())
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) sendStatus(msg ui.StatusMsg) {
	if p.tuiProg != nil {
		p.tuiProg.Send(msg)
	}
}

// Status reports transport and engine state for display
func (p *Player) Status() ui.StatusMsg {
	p.mu.Lock()
	ended := p.ended
	p.mu.Unlock()

	state := "paused"
	switch {
	case ended:
		state = "ended"
	case p.clock.Playing():
		state = "playing"
	}

	pos := max(p.clock.MediaMicros(), 0)
	if d := p.source.DurationMicros(); d > 0 {
		pos = min(pos, d)
	}

	stats := p.engine.Stats()
	vol := int(math.Round(stats.Volume * 100))
	msg := ui.StatusMsg{
		State:        state,
		PositionUs:   &pos,
		Volume:       &vol,
		BufferMs:     int(p.format.BytesToDuration(stats.Buffered).Milliseconds()),
		CapacityMs:   int(p.format.BytesToDuration(stats.Capacity).Milliseconds()),
		Underruns:    stats.Underruns,
		Written:      stats.Written,
		DeviceActive: stats.DeviceActive,
	}
	if cs, ok := p.config.Reference.(*sync.ClockSync); ok {
		_, msg.SyncRTT, msg.SyncQuality = cs.GetStats()
	}
	if err := p.engine.Err(); err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// exec returns the master instant transport changes are scheduled for
func (p *Player) exec() int64 {
	return p.clock.Micros() + p.config.StartDelay().Microseconds()
}

// Play starts playback after the configured start delay
func (p *Player) Play() {
	p.mu.Lock()
	ended := p.ended
	p.mu.Unlock()
	if ended {
		p.seekTo(0)
	}
	p.clock.Start(p.exec())
}

// Toggle pauses or resumes
func (p *Player) Toggle() {
	if p.clock.Playing() {
		p.clock.Stop(p.clock.Micros())
		return
	}
	p.Play()
}

// SeekBy jumps relative to the current position, clamped to the stream
func (p *Player) SeekBy(d time.Duration) {
	p.seekTo(p.clock.MediaMicros() + d.Microseconds())
}

func (p *Player) seekTo(target int64) {
	target = max(target, 0)
	if d := p.source.DurationMicros(); d > 0 {
		target = min(target, d)
	}
	p.clock.Seek(p.exec(), target)

	select {
	case p.rewind <- struct{}{}:
	default:
	}
}

// Err returns the first fatal error of the engine or pipeline
func (p *Player) Err() error {
	p.mu.Lock()
	feedErr := p.feedErr
	p.mu.Unlock()
	return errors.Join(p.engine.Err(), feedErr)
}

// Close stops playback and releases the device and source
func (p *Player) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.clock.RemoveListener(p.driver)
		p.clock.RemoveListener(p.engine)
		err = p.engine.Close()
		if p.feedDone != nil {
			<-p.feedDone
		}
		err = errors.Join(err, p.source.Close())
		p.log.Info().Msg("player stopped")
	})
	return err
}
