// ABOUTME: Sample conversion helpers
// ABOUTME: Converts between float32 samples and packed integer/float encodings
package audio

import (
	"encoding/binary"
	"math"
)

// SampleToInt16 converts a float sample in [-1, 1] to int16 with clipping
func SampleToInt16(sample float32) int16 {
	v := float64(sample) * 32767.0
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// SampleFromInt16 converts an int16 sample to float in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleFromInt converts an integer sample of the given bit depth to float
func SampleFromInt(sample, bitDepth int) float32 {
	scale := float64(int64(1) << (bitDepth - 1))
	return float32(float64(sample) / scale)
}

// SampleTo24Bit converts a float sample to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample float32) [3]byte {
	v := int32(clamp(float64(sample)*Max24Bit, Min24Bit, Max24Bit))
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// SampleFrom24Bit converts 24-bit packed bytes (little-endian) to float
func SampleFrom24Bit(b [3]byte) float32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return float32(val) / (Max24Bit + 1)
}

// EncodeSamples packs src into dst using enc, little-endian. dst must hold
// len(src)*enc.BytesPerSample() bytes. Returns the number of bytes written.
func EncodeSamples(dst []byte, src []float32, enc Encoding) int {
	switch enc {
	case EncodingU8:
		for i, s := range src {
			dst[i] = uint8(clamp(float64(s)*127.0+128.0, 0, 255))
		}
	case EncodingS16:
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(SampleToInt16(s)))
		}
	case EncodingS32:
		for i, s := range src {
			v := int32(clamp(math.Round(float64(s)*math.MaxInt32), math.MinInt32, math.MaxInt32))
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(v))
		}
	case EncodingF32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
		}
	case EncodingF64:
		for i, s := range src {
			binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(float64(s)))
		}
	default:
		return 0
	}
	return len(src) * enc.BytesPerSample()
}

// DecodeSamples unpacks src encoded with enc into dst and returns the
// number of samples produced.
func DecodeSamples(dst []float32, src []byte, enc Encoding) int {
	bps := enc.BytesPerSample()
	if bps == 0 {
		return 0
	}
	n := min(len(src)/bps, len(dst))
	for i := 0; i < n; i++ {
		b := src[i*bps:]
		switch enc {
		case EncodingU8:
			dst[i] = (float32(b[0]) - 128.0) / 128.0
		case EncodingS16:
			dst[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
		case EncodingS32:
			dst[i] = float32(float64(int32(binary.LittleEndian.Uint32(b))) / (math.MaxInt32 + 1.0))
		case EncodingF32:
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case EncodingF64:
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
