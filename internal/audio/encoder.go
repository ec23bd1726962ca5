package audio

import (
	"encoding/binary"
	"math"
)

// EncodeFrame converts raw captured samples in [-1, 1] into the wire format
// required by the streaming provider: 16-bit signed little-endian PCM. Samples
// are clamped before scaling; negative samples scale by 32768 and non-negative
// samples by 32767, matching the asymmetric signed 16-bit range.
func EncodeFrame(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}

		var value int16
		if sample < 0 {
			value = int16(sample * 32768)
		} else {
			value = int16(sample * 32767)
		}

		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}

// DecodeF32LE converts little-endian 32-bit float PCM bytes into samples.
// Trailing bytes that do not form a full sample are ignored.
func DecodeF32LE(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
