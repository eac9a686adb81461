package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceProducesZeroSamples(t *testing.T) {
	p := Silence(16000, 0.5)
	assert.Equal(t, 8000, len(p.Samples))
	for _, s := range p.Samples {
		assert.EqualValues(t, 0, s)
	}
}

func TestConcatRequiresMatchingSampleRate(t *testing.T) {
	a := PCM{SampleRate: 16000, Samples: []int16{1, 2}}
	b := PCM{SampleRate: 8000, Samples: []int16{3, 4}}
	_, err := Concat(a, b)
	assert.Error(t, err)
}

func TestConcatJoinsBuffers(t *testing.T) {
	a := PCM{SampleRate: 16000, Samples: []int16{1, 2}}
	b := PCM{SampleRate: 16000, Samples: []int16{3, 4}}
	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, 4}, out.Samples)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := PCM{SampleRate: 16000, Samples: []int16{100, -100, 32767, -32768, 0}}
	wav := EncodeWAV(p)

	// data chunk starts after the 44-byte canonical header.
	decoded := DecodePCM16(16000, wav[44:])
	assert.Equal(t, p.Samples, decoded.Samples)
}

func TestDurationSeconds(t *testing.T) {
	p := PCM{SampleRate: 8000, Samples: make([]int16, 4000)}
	assert.InDelta(t, 0.5, p.DurationSeconds(), 0.0001)
}
