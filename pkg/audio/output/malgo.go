// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo; the device callback drains a byte FIFO
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/decamp/drawjav-sub002/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	log zerolog.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	buffer   *fifo
	running  bool

	// The callback never takes mu: device.Stop waits for it to return.
	stream  atomic.Pointer[malgoStream]
	gainMu  sync.Mutex
	gain    float64
	scratch []float32
}

type malgoStream struct {
	buf    *fifo
	format audio.Format
}

// NewMalgo creates a new Malgo output
func NewMalgo(logger zerolog.Logger) *Malgo {
	return &Malgo{
		log:  logger.With().Str("component", "output").Str("backend", "malgo").Logger(),
		gain: 1,
	}
}

func malgoSampleFormat(enc audio.Encoding) (malgo.FormatType, error) {
	switch enc {
	case audio.EncodingU8:
		return malgo.FormatU8, nil
	case audio.EncodingS16:
		return malgo.FormatS16, nil
	case audio.EncodingS32:
		return malgo.FormatS32, nil
	case audio.EncodingF32:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: malgo cannot play %s", audio.ErrConfiguration, enc)
}

// Open initializes the output device with specified format
func (m *Malgo) Open(format audio.Format, bufferBytes int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	sf, err := malgoSampleFormat(format.Encoding)
	if err != nil {
		return err
	}
	size := frameAlign(bufferBytes, format)
	if size <= 0 {
		return fmt.Errorf("%w: buffer of %d bytes holds no frames", audio.ErrConfiguration, bufferBytes)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.format == format {
		m.log.Debug().Msg("audio output already initialized with same format, reusing device")
		m.setBuffer(newFIFO(size))
		return nil
	}
	if m.device != nil {
		m.log.Info().Stringer("from", m.format).Stringer("to", format).Msg("format change, reinitializing device")
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("%w: malgo context: %v", audio.ErrDeviceUnavailable, err)
		}
		m.malgoCtx = ctx
	}

	m.format = format
	m.setBuffer(newFIFO(size))

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sf
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("%w: playback device: %v", audio.ErrDeviceUnavailable, err)
	}
	m.device = device

	m.log.Info().Stringer("format", format).Int("buffer_bytes", size).Msg("audio output initialized")
	return nil
}

// dataCallback fills the hardware buffer from the FIFO and pads with silence.
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	st := m.stream.Load()
	if st == nil {
		clear(pOutput)
		return
	}
	buf, format := st.buf, st.format

	want := min(int(frameCount)*format.FrameSize(), len(pOutput))
	n := buf.Read(pOutput[:want])
	silence(pOutput[n:], format.Encoding)

	m.gainMu.Lock()
	m.scratch = applyGain(pOutput[:n], format.Encoding, m.gain, m.scratch)
	m.gainMu.Unlock()
}

// silence writes the zero level for enc. Unsigned 8-bit is centred on 128.
func silence(p []byte, enc audio.Encoding) {
	if enc == audio.EncodingU8 {
		for i := range p {
			p[i] = 128
		}
		return
	}
	clear(p)
}

func (m *Malgo) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffer == nil {
		return 0, fmt.Errorf("output not initialized")
	}
	return m.buffer.Write(p[:frameAlign(len(p), m.format)]), nil
}

func (m *Malgo) Available() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffer == nil {
		return 0
	}
	return m.buffer.Free()
}

func (m *Malgo) BufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffer == nil {
		return 0
	}
	return m.buffer.Cap()
}

func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return fmt.Errorf("output not initialized")
	}
	if m.running {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.running = true
	return nil
}

func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return fmt.Errorf("output not initialized")
	}
	if !m.running {
		return nil
	}
	m.running = false
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

func (m *Malgo) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffer != nil {
		m.buffer.Reset()
	}
	return nil
}

func (m *Malgo) SetGainDB(db float64) {
	m.gainMu.Lock()
	m.gain = dbToLinear(db)
	m.gainMu.Unlock()
	m.log.Debug().Float64("gain_db", db).Msg("gain set")
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warn().Err(err).Msg("malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if m.running {
		if err := m.device.Stop(); err != nil {
			m.log.Warn().Err(err).Msg("device stop error")
		}
		m.running = false
	}
	m.device.Uninit()
	m.device = nil
	m.setBuffer(nil)
}

// setBuffer swaps the FIFO seen by writers and the callback (must hold m.mu)
func (m *Malgo) setBuffer(buf *fifo) {
	m.buffer = buf
	if buf == nil {
		m.stream.Store(nil)
		return
	}
	m.stream.Store(&malgoStream{buf: buf, format: m.format})
}
