// Package pipeline connects a decoded packet source to a chain of
// audio.Sink stages ending in the playback engine.
//
// A Driver registered as a clock.Listener follows seeks on the master
// clock: it repositions the source, re-synchronizes its stream timer and
// clears every stage before the next packet is pushed.
package pipeline
