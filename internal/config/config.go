// ABOUTME: Player configuration with defaults and YAML loading
// ABOUTME: Flags override file values, which override defaults
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/resample"
)

// Config holds player configuration
type Config struct {
	// Device is the output backend: oto, malgo or null
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`

	// BufferMs is the engine ring size; DeviceBufferMs the hardware side
	BufferMs       int `yaml:"buffer_ms"`
	DeviceBufferMs int `yaml:"device_buffer_ms"`

	// Volume is linear, 0 to 1
	Volume float64 `yaml:"volume"`

	// StartDelayMs schedules transport changes this far ahead so the
	// engine can prefill before the device starts
	StartDelayMs int `yaml:"start_delay_ms"`
	SeekStepMs   int `yaml:"seek_step_ms"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	Resampler Resampler `yaml:"resampler"`
}

// Resampler holds filter parameters. Zero values keep the resampler defaults.
type Resampler struct {
	Taps   int     `yaml:"taps"`
	Cutoff float64 `yaml:"cutoff"`
	Beta   float64 `yaml:"beta"`
	Gain   float64 `yaml:"gain"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Device:         "oto",
		SampleRate:     48000,
		Encoding:       "s16",
		BufferMs:       250,
		DeviceBufferMs: 100,
		Volume:         1.0,
		StartDelayMs:   100,
		SeekStepMs:     5000,
		LogFile:        "syncplay.log",
		LogLevel:       "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate %d", c.SampleRate))
	}
	if _, err := audio.ParseEncoding(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if c.BufferMs <= 0 {
		errs = append(errs, fmt.Errorf("buffer_ms %d", c.BufferMs))
	}
	if c.DeviceBufferMs <= 0 {
		errs = append(errs, fmt.Errorf("device_buffer_ms %d", c.DeviceBufferMs))
	}
	if math.IsNaN(c.Volume) || c.Volume < 0 || c.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume %v", c.Volume))
	}
	if c.StartDelayMs < 0 {
		errs = append(errs, fmt.Errorf("start_delay_ms %d", c.StartDelayMs))
	}
	if c.SeekStepMs <= 0 {
		errs = append(errs, fmt.Errorf("seek_step_ms %d", c.SeekStepMs))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", audio.ErrConfiguration, err)
	}
	return nil
}

// Format returns the device format
func (c Config) Format() (audio.Format, error) {
	enc, err := audio.ParseEncoding(c.Encoding)
	if err != nil {
		return audio.Format{}, err
	}
	return audio.Format{Channels: 2, SampleRate: c.SampleRate, Encoding: enc}, nil
}

// FramesFor converts a duration in milliseconds to frames at SampleRate
func (c Config) FramesFor(ms int) int {
	return int(int64(ms) * int64(c.SampleRate) / 1000)
}

// StartDelay returns StartDelayMs as a duration
func (c Config) StartDelay() time.Duration {
	return time.Duration(c.StartDelayMs) * time.Millisecond
}

// ResampleOptions returns the options for non-zero resampler fields
func (c Config) ResampleOptions() []resample.Option {
	var opts []resample.Option
	r := c.Resampler
	if r.Taps != 0 {
		opts = append(opts, resample.WithTaps(r.Taps))
	}
	if r.Cutoff != 0 {
		opts = append(opts, resample.WithCutoff(r.Cutoff))
	}
	if r.Beta != 0 {
		opts = append(opts, resample.WithBeta(r.Beta))
	}
	if r.Gain != 0 {
		opts = append(opts, resample.WithGain(r.Gain))
	}
	return opts
}
