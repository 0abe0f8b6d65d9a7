// ABOUTME: Tests for player application orchestration
// ABOUTME: Tests player creation, transport commands, and headless playback
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/decamp/drawjav-sub002/internal/config"
	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/output"
)

// writeClip writes a mono 16-bit WAV of the given number of frames
func writeClip(t *testing.T, rate, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]int, frames)
	for i := range data {
		data[i] = (i % 100) * 100
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(path string, dev output.Device) Config {
	cfg := config.Default()
	cfg.Device = "null"
	cfg.StartDelayMs = 20
	cfg.BufferMs = 100
	cfg.DeviceBufferMs = 40
	return Config{Config: cfg, Path: path, Device: dev}
}

func TestNewPlayer(t *testing.T) {
	dev := output.NewMemory(nil)
	player, err := New(testConfig("tone:440", dev))
	if err != nil {
		t.Fatalf("expected player to be created: %v", err)
	}
	defer player.Close()

	if player.format.Channels != 2 {
		t.Errorf("expected device to follow tone channels, got %d", player.format.Channels)
	}

	if player.format.SampleRate != 48000 {
		t.Errorf("expected 48000Hz device, got %d", player.format.SampleRate)
	}

	status := player.Status()
	if status.State != "paused" {
		t.Errorf("expected initial state 'paused', got '%s'", status.State)
	}

	if *status.Volume != 100 {
		t.Errorf("expected volume 100, got %d", *status.Volume)
	}
}

func TestNewPlayerErrors(t *testing.T) {
	if _, err := New(testConfig(filepath.Join(t.TempDir(), "missing.wav"), output.NewMemory(nil))); err == nil {
		t.Error("expected error for missing file")
	}

	cfg := testConfig("tone:440", output.NewMemory(nil))
	cfg.Encoding = "s24"
	if _, err := New(cfg); !errors.Is(err, audio.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	dev := output.NewMemory(nil)
	dev.FailOpen(errors.New("no such card"))
	if _, err := New(testConfig("tone:440", dev)); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("expected device unavailable, got %v", err)
	}
}

func TestToggleAndSeek(t *testing.T) {
	path := writeClip(t, 8000, 8000)
	player, err := New(testConfig(path, output.NewMemory(nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer player.Close()

	player.Toggle()
	if !player.clock.Playing() {
		t.Error("expected clock to be playing after toggle")
	}

	player.Toggle()
	if player.clock.Playing() {
		t.Error("expected clock to be paused after second toggle")
	}

	// Seeking past the end clamps to the duration.
	player.SeekBy(10 * time.Second)
	if pos := player.clock.MediaMicros(); pos != 1_000_000 {
		t.Errorf("expected position clamped to 1s, got %d", pos)
	}

	player.SeekBy(-30 * time.Second)
	if pos := player.clock.MediaMicros(); pos != 0 {
		t.Errorf("expected position clamped to 0, got %d", pos)
	}
}

func TestHeadlessPlaysToEnd(t *testing.T) {
	const rate, frames = 44100, 8820 // 200ms
	dev := output.NewMemory(nil)
	player, err := New(testConfig(writeClip(t, rate, frames), dev))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := player.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := player.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	status := player.Status()
	if status.State != "ended" {
		t.Errorf("expected state 'ended', got '%s'", status.State)
	}

	// Mono s16 at 48kHz: 200ms is 9600 frames plus at most a filter tail.
	got := len(dev.Written()) / 2
	if got < 9400 || got > 9800 {
		t.Errorf("expected about 9600 frames written, got %d", got)
	}
}
