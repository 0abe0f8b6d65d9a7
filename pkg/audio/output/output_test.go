// ABOUTME: Audio output tests
// ABOUTME: Covers the byte FIFO, software gain and the simulated device
package output

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

var stereo16 = audio.Format{Channels: 2, SampleRate: 48000, Encoding: audio.EncodingS16}

func TestBackendsImplementDevice(t *testing.T) {
	var _ Device = (*Oto)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*Memory)(nil)
}

func TestNewSelectsBackend(t *testing.T) {
	d, err := New("null", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, d)

	d, err = New("malgo", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Malgo{}, d)

	_, err = New("alsa-direct", zerolog.Nop())
	assert.ErrorIs(t, err, audio.ErrConfiguration)
}

func TestFIFOWrapsAround(t *testing.T) {
	f := newFIFO(8)

	assert.Equal(t, 6, f.Write([]byte{1, 2, 3, 4, 5, 6}))
	out := make([]byte, 4)
	assert.Equal(t, 4, f.Read(out))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	assert.Equal(t, 6, f.Write([]byte{7, 8, 9, 10, 11, 12, 13}), "only free space is taken")
	assert.Equal(t, 0, f.Free())

	out = make([]byte, 10)
	n := f.Read(out)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10, 11, 12}, out[:n])
	assert.Equal(t, 0, f.Len())

	f.Write([]byte{1, 2})
	f.Reset()
	assert.Equal(t, 8, f.Free())
}

func TestApplyGain(t *testing.T) {
	buf := make([]byte, 6)
	audio.EncodeSamples(buf, []float32{0.5, -0.25, 0.9}, audio.EncodingS16)

	applyGain(buf, audio.EncodingS16, 0.5, nil)
	got := make([]float32, 3)
	audio.DecodeSamples(got, buf, audio.EncodingS16)
	assert.InDelta(t, 0.25, got[0], 1e-4)
	assert.InDelta(t, -0.125, got[1], 1e-4)
	assert.InDelta(t, 0.45, got[2], 1e-4)

	applyGain(buf, audio.EncodingS16, 4, nil)
	audio.DecodeSamples(got, buf, audio.EncodingS16)
	assert.InDelta(t, 1.0, got[0], 1e-4, "amplified samples clip")
}

func TestDBToLinear(t *testing.T) {
	assert.InDelta(t, 1.0, dbToLinear(0), 1e-12)
	assert.InDelta(t, 0.5011872, dbToLinear(-6), 1e-6)
	assert.Equal(t, 0.0, dbToLinear(math.Inf(-1)))
}

func TestMemoryDrainsAtSampleRate(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := NewMemory(fc)
	// 100ms at 48kHz stereo s16
	require.NoError(t, m.Open(stereo16, 19200+3))
	assert.Equal(t, 19200, m.BufferSize(), "buffer rounds down to whole frames")

	n, err := m.Write(make([]byte, 30000))
	require.NoError(t, err)
	assert.Equal(t, 19200, n)
	assert.Equal(t, 0, m.Available())

	fc.Advance(time.Second)
	assert.Equal(t, 0, m.Available(), "stopped device does not drain")

	require.NoError(t, m.Start())
	fc.Advance(25 * time.Millisecond)
	assert.Equal(t, 4800, m.Available())
	assert.Equal(t, int64(4800), m.Played())

	require.NoError(t, m.Stop())
	fc.Advance(time.Second)
	assert.Equal(t, 14400, m.Queued())

	require.NoError(t, m.Flush())
	assert.Equal(t, 19200, m.Available())

	kinds := []EventKind{}
	for _, e := range m.Events() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventOpen, EventStart, EventStop, EventFlush}, kinds)
}

func TestMemoryCountsUnderruns(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := NewMemory(fc)
	require.NoError(t, m.Open(stereo16, 19200))
	_, err := m.Write(make([]byte, 1920))
	require.NoError(t, err)

	require.NoError(t, m.Start())
	fc.Advance(5 * time.Millisecond)
	assert.Equal(t, 0, m.Underruns())

	fc.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, m.Underruns())
	fc.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, m.Underruns(), "one dry spell is one underrun")

	_, err = m.Write(make([]byte, 1920))
	require.NoError(t, err)
	fc.Advance(50 * time.Millisecond)
	assert.Equal(t, 2, m.Underruns())
}

func TestMemoryFailureInjection(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock())
	m.FailOpen(errors.New("no card"))
	assert.ErrorIs(t, m.Open(stereo16, 1024), audio.ErrDeviceUnavailable)
	require.NoError(t, m.Open(stereo16, 1024))

	boom := errors.New("xrun")
	m.FailWrites(boom)
	_, err := m.Write(make([]byte, 64))
	assert.ErrorIs(t, err, boom)
}

func TestMemoryRecordsStartTime(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := NewMemory(fc)
	require.NoError(t, m.Open(stereo16, 1024))
	fc.Advance(50 * time.Millisecond)
	require.NoError(t, m.Start())

	starts := m.EventsOf(EventStart)
	require.Len(t, starts, 1)
	assert.Equal(t, fc.Now(), starts[0].At)
	assert.True(t, m.Running())
}

func TestApplyGainLongBuffer(t *testing.T) {
	in := make([]float32, 1000)
	for i := range in {
		in[i] = float32(i%200)/100 - 1
	}
	buf := make([]byte, len(in)*4)
	audio.EncodeSamples(buf, in, audio.EncodingF32)

	scratch := applyGain(buf, audio.EncodingF32, 1.5, nil)
	require.Len(t, scratch, len(in))

	got := make([]float32, len(in))
	audio.DecodeSamples(got, buf, audio.EncodingF32)
	for i, v := range in {
		want := min(max(v*1.5, -1), 1)
		require.InDelta(t, want, got[i], 1e-6, "sample %d", i)
	}
}
