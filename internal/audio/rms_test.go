package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRMSMovesTowardTarget(t *testing.T) {
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = 1000
	}
	p := PCM{SampleRate: 16000, Samples: samples}

	out := NormalizeRMS(p, TargetDBFS)
	got := rms(out.Samples)
	want := math.Pow(10, TargetDBFS/20) * 32768
	assert.InDelta(t, want, got, want*0.01)
}

func TestNormalizeRMSHandlesSilence(t *testing.T) {
	p := PCM{SampleRate: 16000, Samples: make([]int16, 100)}
	out := NormalizeRMS(p, TargetDBFS)
	assert.Equal(t, p.Samples, out.Samples)
}

func TestNormalizeRMSClipsRatherThanOverflows(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 32767
	}
	p := PCM{SampleRate: 16000, Samples: samples}
	out := NormalizeRMS(p, 0) // 0 dBFS target on already-max samples: gain is just above 1, so samples clip at 32767 rather than wrapping
	for _, s := range out.Samples {
		assert.LessOrEqual(t, s, int16(32767))
	}
}
