// ABOUTME: play command
// ABOUTME: Plays a file or synthetic tone through the synchronized pipeline
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/decamp/drawjav-sub002/internal/app"
	"github.com/decamp/drawjav-sub002/internal/config"
)

var playFlags struct {
	device   string
	rate     int
	bufferMs int
	volume   float64
	noTUI    bool
}

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play an MP3, WAV or FLAC file, or tone:FREQ",
	Example: `  syncplay play song.mp3
  syncplay play --device null --no-tui tone:440`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyPlayFlags(cmd, &cfg)

		useTUI := !playFlags.noTUI
		logger, closer, err := newLogger(cfg, !useTUI)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		player, err := app.New(app.Config{
			Config: cfg,
			Path:   args[0],
			UseTUI: useTUI,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		return runPlayer(cmd.Context(), player)
	},
}

func init() {
	f := playCmd.Flags()
	f.StringVar(&playFlags.device, "device", "", "output device: oto, malgo or null")
	f.IntVar(&playFlags.rate, "rate", 0, "device sample rate")
	f.IntVar(&playFlags.bufferMs, "buffer-ms", 0, "playback buffer size in milliseconds")
	f.Float64Var(&playFlags.volume, "volume", 0, "initial linear volume (0-1)")
	f.BoolVar(&playFlags.noTUI, "no-tui", false, "disable TUI, stream logs instead")
}

func applyPlayFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device = playFlags.device
	}
	if flags.Changed("rate") {
		cfg.SampleRate = playFlags.rate
	}
	if flags.Changed("buffer-ms") {
		cfg.BufferMs = playFlags.bufferMs
	}
	if flags.Changed("volume") {
		cfg.Volume = playFlags.volume
	}
}

// runPlayer runs until the player finishes or a signal arrives
func runPlayer(parent context.Context, player *app.Player) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := player.Run(ctx)
	if ctx.Err() != nil && parent.Err() == nil {
		// Interrupted by a signal
		err = nil
	}
	if cerr := player.Close(); err == nil {
		err = cerr
	}
	return err
}
