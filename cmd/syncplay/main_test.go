// ABOUTME: Tests for the syncplay commands
// ABOUTME: Version output, flag handling, logger setup, clock sync and offline rendering
package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decamp/drawjav-sub002/internal/config"
	"github.com/decamp/drawjav-sub002/internal/version"
	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/decode"
	"github.com/decamp/drawjav-sub002/pkg/audio/encode"
	"github.com/decamp/drawjav-sub002/pkg/sync"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version.String()+"\n", out.String())
	assert.Equal(t, "syncplay 0.3.0 (drawjav)\n", out.String())
}

func TestPlayRequiresFile(t *testing.T) {
	rootCmd.SetArgs([]string{"play"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}

func TestApplyPlayFlags(t *testing.T) {
	require.NoError(t, playCmd.ParseFlags([]string{"--device", "null", "--buffer-ms", "400"}))
	t.Cleanup(func() {
		playCmd.Flags().Lookup("device").Changed = false
		playCmd.Flags().Lookup("buffer-ms").Changed = false
		playFlags.device, playFlags.bufferMs = "", 0
	})

	cfg := config.Default()
	applyPlayFlags(playCmd, &cfg)

	assert.Equal(t, "null", cfg.Device)
	assert.Equal(t, 400, cfg.BufferMs)
	assert.Equal(t, config.Default().SampleRate, cfg.SampleRate)
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = ""
	cfg.LogLevel = "loud"
	_, _, err := newLogger(cfg, false)
	assert.Error(t, err)

	cfg.LogLevel = "debug"
	_, closer, err := newLogger(cfg, false)
	require.NoError(t, err)
	assert.Nil(t, closer)
}

func TestSimRemoteConverges(t *testing.T) {
	remote := newSimRemote(300*time.Millisecond, 0, 0)
	cs := sync.NewClockSync()

	for i := 0; i < 5; i++ {
		require.NoError(t, cs.SyncOnce(context.Background(), remote, time.Second))
		time.Sleep(20 * time.Millisecond)
	}

	assert.InDelta(t, 0, float64(cs.Now()-remote.now()), 1000)
	assert.True(t, cs.Synced())
	assert.Equal(t, sync.QualityGood, cs.CheckQuality())
}

func TestFollowRemoteLogsUnexpectedStop(t *testing.T) {
	remote := newSimRemote(0, 0, 0)
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	select {
	case <-followRemote(ctx, sync.NewClockSync(), remote, 5*time.Millisecond, logger):
	case <-time.After(5 * time.Second):
		t.Fatal("sync loop did not stop")
	}

	assert.Contains(t, logs.String(), "clock sync stopped")
	assert.Contains(t, logs.String(), context.DeadlineExceeded.Error())
}

func TestFollowRemoteQuietOnCancel(t *testing.T) {
	remote := newSimRemote(0, 0, 0)
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	done := followRemote(ctx, sync.NewClockSync(), remote, 5*time.Millisecond, logger)
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync loop did not stop")
	}

	assert.Empty(t, logs.String())
}

func TestRenderResamples(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")

	sink, err := encode.NewWAVSink(in, 16, zerolog.Nop())
	require.NoError(t, err)
	frame := audio.NewFrame(audio.Format{Channels: 1, SampleRate: 44100, Encoding: audio.EncodingF32}, 4410)
	for i := range frame.Samples {
		frame.Samples[i] = 0.25
	}
	require.NoError(t, sink.Consume(context.Background(), frame))
	require.NoError(t, sink.Close())

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"render", "--log-file", "", "--rate", "48000", "-o", out, in})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), "48000Hz")

	src, err := decode.OpenWAV(out)
	require.NoError(t, err)
	assert.Equal(t, 48000, src.Format().SampleRate)
	// 100ms of input plus at most a filter tail
	frames := src.DurationMicros() * 48000 / 1_000_000
	assert.InDelta(t, 4800, frames, 100)
}

func TestRenderRejectsEndlessSource(t *testing.T) {
	rootCmd.SetArgs([]string{"render", "--log-file", "", "-o", filepath.Join(t.TempDir(), "x.wav"), "tone:440"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.Error(t, rootCmd.Execute())
}
