// ABOUTME: clocktest command exercising clock synchronization
// ABOUTME: Follows a simulated remote clock with offset, drift and network jitter
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/decamp/drawjav-sub002/internal/app"
	"github.com/decamp/drawjav-sub002/pkg/sync"
)

var clocktestFlags struct {
	offset   time.Duration
	jitter   time.Duration
	driftPPM float64
	rounds   int
	interval time.Duration
	play     string
	device   string
}

var clocktestCmd = &cobra.Command{
	Use:   "clocktest",
	Short: "Synchronize to a simulated remote clock and report convergence",
	Long: `clocktest runs timestamp exchanges against an in-process remote clock that
is offset and drifting from the local one. With --play, the player then runs
on the synchronized timeline while exchanges continue in the background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		playing := clocktestFlags.play != ""
		logger, closer, err := newLogger(cfg, !playing)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		remote := newSimRemote(clocktestFlags.offset, clocktestFlags.driftPPM, clocktestFlags.jitter)
		cs := sync.NewClockSync(sync.WithLogger(logger))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-6s %12s %10s %10s %-9s\n", "round", "offset(us)", "error(us)", "rtt(us)", "quality")
		for i := 1; i <= clocktestFlags.rounds; i++ {
			if err := cs.SyncOnce(ctx, remote, time.Second); err != nil {
				return fmt.Errorf("round %d: %w", i, err)
			}
			offset, rtt, quality := cs.GetStats()
			fmt.Fprintf(out, "%-6d %12d %10d %10d %-9s\n",
				i, offset, cs.Now()-remote.now(), rtt, quality)

			select {
			case <-time.After(clocktestFlags.interval):
			case <-ctx.Done():
				return nil
			}
		}
		fmt.Fprintf(out, "drift estimate: %.1f ppm (actual %.1f ppm)\n", cs.GetDrift()*1e6, clocktestFlags.driftPPM)

		if !playing {
			return nil
		}

		synced := followRemote(ctx, cs, remote, clocktestFlags.interval, logger)
		defer func() {
			stop()
			<-synced
		}()

		cfg.Device = clocktestFlags.device
		player, err := app.New(app.Config{
			Config:    cfg,
			Path:      clocktestFlags.play,
			UseTUI:    true,
			Reference: cs,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		return runPlayer(ctx, player)
	},
}

func init() {
	f := clocktestCmd.Flags()
	f.DurationVar(&clocktestFlags.offset, "offset", 250*time.Millisecond, "remote clock offset")
	f.DurationVar(&clocktestFlags.jitter, "jitter", 200*time.Microsecond, "maximum one-way network delay")
	f.Float64Var(&clocktestFlags.driftPPM, "drift-ppm", 50, "remote clock drift in parts per million")
	f.IntVar(&clocktestFlags.rounds, "rounds", 20, "number of exchanges to report")
	f.DurationVar(&clocktestFlags.interval, "interval", 100*time.Millisecond, "time between exchanges")
	f.StringVar(&clocktestFlags.play, "play", "", "play FILE on the synchronized clock afterwards")
	f.StringVar(&clocktestFlags.device, "device", "oto", "output device for --play")
}

// followRemote keeps cs synchronized to p until ctx ends. The returned
// channel closes once the exchange loop has exited.
func followRemote(ctx context.Context, cs *sync.ClockSync, p sync.Prober, interval time.Duration, logger zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := cs.Run(ctx, p, interval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("clock sync stopped")
		}
	}()
	return done
}

// simRemote is an in-process stand-in for a remote time server
type simRemote struct {
	start    time.Time
	offset   int64
	driftPPM float64
	jitter   time.Duration
}

func newSimRemote(offset time.Duration, driftPPM float64, jitter time.Duration) *simRemote {
	return &simRemote{
		start:    time.Now(),
		offset:   offset.Microseconds(),
		driftPPM: driftPPM,
		jitter:   jitter,
	}
}

func (r *simRemote) now() int64 {
	elapsed := time.Since(r.start).Microseconds()
	return r.start.UnixMicro() + elapsed + int64(float64(elapsed)*r.driftPPM/1e6) + r.offset
}

func (r *simRemote) delay(ctx context.Context) error {
	if r.jitter <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(time.Duration(rand.Int64N(int64(r.jitter)))):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Probe implements sync.Prober
func (r *simRemote) Probe(ctx context.Context, t1 int64) (int64, int64, error) {
	if err := r.delay(ctx); err != nil {
		return 0, 0, err
	}
	t2 := r.now()
	t3 := r.now()
	if err := r.delay(ctx); err != nil {
		return 0, 0, err
	}
	return t2, t3, nil
}
