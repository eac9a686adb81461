package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PCM is a mono, 16-bit signed little-endian sample buffer at a fixed
// sample rate -- the "single PCM/WAV stream, mono" output contract
// spec.md §4.7 requires.
type PCM struct {
	SampleRate int
	Samples    []int16
}

// DurationSeconds reports how long the buffer plays.
func (p PCM) DurationSeconds() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Silence returns a buffer of digital silence of the given duration.
func Silence(sampleRate int, seconds float64) PCM {
	n := int(seconds * float64(sampleRate))
	if n < 0 {
		n = 0
	}
	return PCM{SampleRate: sampleRate, Samples: make([]int16, n)}
}

// Concat appends buffers, which must share a sample rate.
func Concat(bufs ...PCM) (PCM, error) {
	if len(bufs) == 0 {
		return PCM{}, nil
	}
	rate := bufs[0].SampleRate
	total := 0
	for _, b := range bufs {
		if b.SampleRate != rate {
			return PCM{}, fmt.Errorf("audio: sample rate mismatch: %d vs %d", b.SampleRate, rate)
		}
		total += len(b.Samples)
	}
	out := make([]int16, 0, total)
	for _, b := range bufs {
		out = append(out, b.Samples...)
	}
	return PCM{SampleRate: rate, Samples: out}, nil
}

// DecodePCM16 parses raw little-endian 16-bit PCM bytes at a known
// sample rate, the shape a TTS adapter hands back in
// model.SynthesizedSegment.AudioBytes.
func DecodePCM16(sampleRate int, raw []byte) PCM {
	n := len(raw) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return PCM{SampleRate: sampleRate, Samples: samples}
}

// EncodeWAV writes a canonical 16-bit PCM mono WAV file.
func EncodeWAV(p PCM) []byte {
	dataSize := len(p.Samples) * 2
	byteRate := p.SampleRate * 2
	buf := &bytes.Buffer{}

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(p.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(2)) // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range p.Samples {
		binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}
