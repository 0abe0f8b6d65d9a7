// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, YAML overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncplay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	format, err := cfg.Format()
	require.NoError(t, err)
	assert.Equal(t, audio.Format{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingS16}, format)
	assert.Equal(t, 12000, cfg.FramesFor(cfg.BufferMs))
	assert.Empty(t, cfg.ResampleOptions())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := writeFile(t, `
device: "null"
sample_rate: 44100
encoding: f32
buffer_ms: 500
volume: 0.5
resampler:
  taps: 63
  cutoff: 0.9
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "null", cfg.Device)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, "f32", cfg.Encoding)
	assert.Equal(t, 500, cfg.BufferMs)
	assert.Equal(t, 0.5, cfg.Volume)
	// Unset keys keep their defaults.
	assert.Equal(t, 100, cfg.DeviceBufferMs)
	assert.Equal(t, 5000, cfg.SeekStepMs)
	assert.Len(t, cfg.ResampleOptions(), 2)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad encoding", "encoding: s24\n"},
		{"zero rate", "sample_rate: 0\n"},
		{"loud volume", "volume: 1.5\n"},
		{"negative delay", "start_delay_ms: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.ErrorIs(t, err, audio.ErrConfiguration)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeFile(t, "device: [unterminated\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
