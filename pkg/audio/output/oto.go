// ABOUTME: Oto-based audio output implementation
// ABOUTME: A device-side FIFO feeds a persistent oto player; volume maps to Player.SetVolume
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// oto allows one context per process.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto output implementation using oto library
type Oto struct {
	log zerolog.Logger

	mu     sync.Mutex
	format audio.Format
	buffer *fifo
	player *oto.Player
	gainDB float64
}

// NewOto creates a new Oto output
func NewOto(logger zerolog.Logger) *Oto {
	return &Oto{log: logger.With().Str("component", "output").Str("backend", "oto").Logger()}
}

func otoSampleFormat(enc audio.Encoding) (oto.Format, error) {
	switch enc {
	case audio.EncodingF32:
		return oto.FormatFloat32LE, nil
	case audio.EncodingS16:
		return oto.FormatSignedInt16LE, nil
	case audio.EncodingU8:
		return oto.FormatUnsignedInt8, nil
	}
	return 0, fmt.Errorf("%w: oto cannot play %s", audio.ErrConfiguration, enc)
}

// Open initializes the shared oto context and a player reading from the FIFO.
func (o *Oto) Open(format audio.Format, bufferBytes int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	sf, err := otoSampleFormat(format.Encoding)
	if err != nil {
		return err
	}
	size := frameAlign(bufferBytes, format)
	if size <= 0 {
		return fmt.Errorf("%w: buffer of %d bytes holds no frames", audio.ErrConfiguration, bufferBytes)
	}

	otoMu.Lock()
	if otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       sf,
			BufferSize:   20 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoMu.Unlock()
			return fmt.Errorf("%w: oto context: %v", audio.ErrDeviceUnavailable, err)
		}
		<-ready
		otoCtx = ctx
		otoFormat = format
	} else if otoFormat != format {
		// oto cannot be reinitialized within a process.
		otoMu.Unlock()
		return fmt.Errorf("%w: oto already running as %s, cannot reopen as %s",
			audio.ErrDeviceUnavailable, otoFormat, format)
	}
	ctx := otoCtx
	otoMu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
	}
	o.format = format
	o.buffer = newFIFO(size)
	o.player = ctx.NewPlayer(&otoReader{buf: o.buffer})
	// Keep oto's own read-ahead small so Stop takes effect quickly.
	o.player.SetBufferSize(frameAlign(format.DurationToBytes(10*time.Millisecond), format))
	o.player.SetVolume(min(dbToLinear(o.gainDB), 1))

	o.log.Info().Stringer("format", format).Int("buffer_bytes", size).Msg("audio output initialized")
	return nil
}

// otoReader hands queued bytes to the oto mixer without ever blocking it.
type otoReader struct {
	buf *fifo
}

func (r *otoReader) Read(p []byte) (int, error) {
	return r.buf.Read(p), nil
}

func (o *Oto) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buffer == nil {
		return 0, fmt.Errorf("output not initialized")
	}
	if err := o.player.Err(); err != nil {
		return 0, err
	}
	return o.buffer.Write(p[:frameAlign(len(p), o.format)]), nil
}

func (o *Oto) Available() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buffer == nil {
		return 0
	}
	return o.buffer.Free()
}

func (o *Oto) BufferSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buffer == nil {
		return 0
	}
	return o.buffer.Cap()
}

func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return fmt.Errorf("output not initialized")
	}
	o.player.Play()
	return nil
}

func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return fmt.Errorf("output not initialized")
	}
	o.player.Pause()
	return nil
}

func (o *Oto) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.buffer != nil {
		o.buffer.Reset()
	}
	return nil
}

// SetGainDB maps gain to the player volume. Oto cannot amplify, so
// positive gains clip to unity.
func (o *Oto) SetGainDB(db float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gainDB = db
	if o.player != nil {
		o.player.SetVolume(min(dbToLinear(db), 1))
	}
	o.log.Debug().Float64("gain_db", db).Msg("gain set")
}

// Close pauses the player. The shared oto context stays alive for reuse.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Pause()
		o.player = nil
	}
	if o.buffer != nil {
		o.buffer.Reset()
		o.buffer = nil
	}
	return nil
}
