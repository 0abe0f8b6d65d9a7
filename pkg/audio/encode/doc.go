// ABOUTME: Audio encoder package for writing pipeline output to files
// ABOUTME: Provides a WAV sink for offline rendering
// Package encode terminates a sink chain in a file instead of a device.
//
// Example:
//
//	sink, err := encode.NewWAVSink("out.wav", 16, logger)
//	stage, err := resample.NewStage(resample.StageConfig{OutputRate: 48000}, sink)
package encode
