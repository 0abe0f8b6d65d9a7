// ABOUTME: Packet sources that feed the playback pipeline
// ABOUTME: MP3, WAV and FLAC files plus a synthetic tone
// Package decode turns audio files into float packets.
//
// Every Source reports its own time base. File sources stamp packets with
// a frame index PTS; the tone source leaves PTS unset so the downstream
// timer synthesizes positions from sample counts.
//
// Example:
//
//	src, err := decode.Open("song.mp3")
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//	pkt, err := src.ReadPacket()
package decode
