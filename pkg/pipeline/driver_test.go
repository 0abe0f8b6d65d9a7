// ABOUTME: Tests for the pipeline driver
// ABOUTME: Timeline continuity, seeks from any goroutine and interruptible end-of-stream drains
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decamp/drawjav-sub002/pkg/audio"
	"github.com/decamp/drawjav-sub002/pkg/audio/decode"
)

type span struct {
	start, stop int64
	stream      string
	first       float32
}

// recorder is a sink that keeps frame metadata and counts calls
type recorder struct {
	mu      sync.Mutex
	frames  []span
	clears  int
	closed  int
	consume func(ctx context.Context, n int) error
	drain   func(ctx context.Context, n int) error
}

func (r *recorder) Consume(ctx context.Context, f *audio.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, span{f.StartMicros, f.StopMicros, f.StreamID, f.Samples[0]})
	n := len(r.frames)
	hook := r.consume
	r.mu.Unlock()
	if hook != nil {
		return hook(ctx, n)
	}
	return nil
}

func (r *recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recorder) CloseContext(ctx context.Context) error {
	r.mu.Lock()
	r.closed++
	n := r.closed
	hook := r.drain
	r.mu.Unlock()
	if hook != nil {
		return hook(ctx, n)
	}
	return nil
}

func (r *recorder) closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) snapshot() []span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]span(nil), r.frames...)
}

func rampSource(t *testing.T, frames, rate int) decode.Source {
	t.Helper()
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(i)
	}
	src, err := decode.NewPCMSource(1, rate, samples)
	require.NoError(t, err)
	return src
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Sink: &recorder{}})
	assert.ErrorIs(t, err, audio.ErrConfiguration)
}

func TestRunToEOF(t *testing.T) {
	rec := &recorder{}
	d, err := New(Config{Source: rampSource(t, 10_000, 10_000), Sink: rec})
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background()))

	frames := rec.snapshot()
	require.NotEmpty(t, frames)
	assert.Equal(t, int64(0), frames[0].start)
	for i := 1; i < len(frames); i++ {
		assert.Equal(t, frames[i-1].stop, frames[i].start, "frame %d", i)
		assert.Equal(t, frames[0].stream, frames[i].stream)
	}
	assert.Equal(t, int64(1_000_000), frames[len(frames)-1].stop)
	assert.Equal(t, 1, rec.closed)
	assert.Equal(t, 0, rec.clears)

	stats := d.Stats()
	assert.Equal(t, int64(10_000), stats.Frames)
	assert.Equal(t, int64(len(frames)), stats.Packets)
	assert.Equal(t, int64(1_000_000), stats.PositionMicros)
	assert.Equal(t, int64(1_000_000), stats.DurationMicros)
}

func TestSeekFromSink(t *testing.T) {
	rec := &recorder{}
	d, err := New(Config{Source: rampSource(t, 10_000, 10_000), Sink: rec})
	require.NoError(t, err)

	rec.consume = func(ctx context.Context, n int) error {
		if n == 2 {
			d.Seek(0, 500_000)
		}
		return nil
	}
	require.NoError(t, d.Run(context.Background()))

	frames := rec.snapshot()
	require.Greater(t, len(frames), 3)
	assert.Equal(t, 1, rec.clears)

	// The third frame starts at the seek target, from the source's own PTS.
	assert.Equal(t, int64(500_000), frames[2].start)
	assert.Equal(t, float32(5000), frames[2].first)
	assert.NotEqual(t, frames[1].stream, frames[2].stream)
	assert.Equal(t, int64(1), d.Stats().Seeks)
}

func TestSeekWithoutTimestamps(t *testing.T) {
	src, err := decode.NewTone(decode.ToneConfig{SampleRate: 8000, Channels: 1, DurationMicros: 2_000_000})
	require.NoError(t, err)

	rec := &recorder{}
	d, err := New(Config{Source: src, Sink: rec})
	require.NoError(t, err)
	d.Seek(0, 1_500_000)

	require.NoError(t, d.Run(context.Background()))
	frames := rec.snapshot()
	require.NotEmpty(t, frames)
	assert.Equal(t, int64(1_500_000), frames[0].start)
	assert.Equal(t, int64(2_000_000), frames[len(frames)-1].stop)
}

func TestSeekCancelsBlockedConsume(t *testing.T) {
	rec := &recorder{}
	d, err := New(Config{Source: rampSource(t, 10_000, 10_000), Sink: rec})
	require.NoError(t, err)

	blocked := make(chan struct{})
	rec.consume = func(ctx context.Context, n int) error {
		if n == 1 {
			close(blocked)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("sink never blocked")
	}
	d.Seek(0, 800_000)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	frames := rec.snapshot()
	require.Greater(t, len(frames), 1)
	assert.Equal(t, int64(800_000), frames[1].start)
	assert.Equal(t, 1, rec.clears)
	// The cancelled packet is not counted.
	assert.Equal(t, int64(2000), d.Stats().Frames)
}

func TestRunCancelled(t *testing.T) {
	src, err := decode.NewTone(decode.ToneConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	rec.consume = func(_ context.Context, n int) error {
		if n == 3 {
			cancel()
		}
		return nil
	}
	d, err := New(Config{Source: src, Sink: rec})
	require.NoError(t, err)

	err = d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rec.closed)
}

// blockFirstDrain makes the first end-of-stream drain wait for ctx and
// returns a channel closed once it is waiting.
func blockFirstDrain(rec *recorder) <-chan struct{} {
	blocked := make(chan struct{})
	rec.drain = func(ctx context.Context, n int) error {
		if n > 1 {
			return nil
		}
		close(blocked)
		<-ctx.Done()
		return fmt.Errorf("%w: %w", audio.ErrCancelledWait, ctx.Err())
	}
	return blocked
}

func TestSeekInterruptsDrain(t *testing.T) {
	rec := &recorder{}
	blocked := blockFirstDrain(rec)
	d, err := New(Config{Source: rampSource(t, 10_000, 10_000), Sink: rec})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("drain never started")
	}
	before := len(rec.snapshot())
	d.Seek(0, 500_000)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	frames := rec.snapshot()
	require.Greater(t, len(frames), before)
	assert.Equal(t, int64(500_000), frames[before].start)
	assert.Equal(t, float32(5000), frames[before].first)
	assert.Equal(t, int64(1_000_000), frames[len(frames)-1].stop)
	assert.Equal(t, 2, rec.closes())
	assert.Equal(t, 1, rec.clears)
}

func TestCancelInterruptsDrain(t *testing.T) {
	rec := &recorder{}
	blocked := blockFirstDrain(rec)
	d, err := New(Config{Source: rampSource(t, 1000, 10_000), Sink: rec})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("drain never started")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, 1, rec.closes())
}
