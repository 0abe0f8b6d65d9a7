// ABOUTME: render command
// ABOUTME: Converts a source to a WAV file at the configured rate, without a device
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/decamp/drawjav-sub002/pkg/audio/decode"
	"github.com/decamp/drawjav-sub002/pkg/audio/encode"
	"github.com/decamp/drawjav-sub002/pkg/audio/resample"
	"github.com/decamp/drawjav-sub002/pkg/pipeline"
)

var renderFlags struct {
	output string
	rate   int
	bits   int
}

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Resample FILE (or tone:FREQ) into a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("rate") {
			cfg.SampleRate = renderFlags.rate
		}
		logger, closer, err := newLogger(cfg, true)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}

		src, err := decode.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		if src.DurationMicros() < 0 {
			return fmt.Errorf("%s has no end; render needs a finite source", args[0])
		}

		sink, err := encode.NewWAVSink(renderFlags.output, renderFlags.bits, logger)
		if err != nil {
			return err
		}
		stage, err := resample.NewStage(resample.StageConfig{
			OutputRate: cfg.SampleRate,
			Options:    cfg.ResampleOptions(),
			Logger:     logger,
		}, sink)
		if err != nil {
			sink.Close()
			return err
		}
		driver, err := pipeline.New(pipeline.Config{Source: src, Sink: stage, Logger: logger})
		if err != nil {
			sink.Close()
			return err
		}

		// Run closes the chain, and with it the file, at the end of the source.
		if err := driver.Run(cmd.Context()); err != nil {
			sink.Close()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d frames at %dHz to %s\n",
			sink.Frames(), cfg.SampleRate, renderFlags.output)
		return nil
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFlags.output, "output", "o", "out.wav", "output WAV file")
	f.IntVar(&renderFlags.rate, "rate", 0, "output sample rate (default from config)")
	f.IntVar(&renderFlags.bits, "bits", 16, "output bit depth: 16 or 24")
}
