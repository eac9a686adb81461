package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redubline/api/internal/model"
)

type fakeTempo struct{ calls int }

func (f *fakeTempo) Adjust(ctx context.Context, p PCM, factor float64) (PCM, error) {
	f.calls++
	n := int(float64(len(p.Samples)) / factor)
	if n > len(p.Samples) {
		n = len(p.Samples)
	}
	return PCM{SampleRate: p.SampleRate, Samples: p.Samples[:n]}, nil
}

func pcmBytes(n int, sampleRate int) []byte {
	p := PCM{SampleRate: sampleRate, Samples: make([]int16, n)}
	for i := range p.Samples {
		p.Samples[i] = int16(i % 100)
	}
	return EncodeWAV(p)[44:]
}

func TestAssembleSpeedSyncCompressesWithTempoAdjuster(t *testing.T) {
	sampleRate := 16000
	segs := []model.SynthesizedSegment{
		{SegmentIndex: 0, DurationSeconds: 3.0, AudioBytes: pcmBytes(3*sampleRate, sampleRate)},
	}
	starts := []float64{0.0}
	ends := []float64{2.0}

	tempo := &fakeTempo{}
	a := NewAssembler(tempo)

	wavBytes, stretch, err := a.Assemble(context.Background(), segs, starts, ends, model.SyncModeSpeedSync, 2, sampleRate)
	require.NoError(t, err)
	assert.NotEmpty(t, wavBytes)
	assert.Equal(t, 1.0, stretch)
	assert.Equal(t, 1, tempo.calls)
}

func TestAssembleFailsWithoutTempoAdjusterWhenNeeded(t *testing.T) {
	sampleRate := 16000
	segs := []model.SynthesizedSegment{
		{SegmentIndex: 0, DurationSeconds: 3.0, AudioBytes: pcmBytes(3*sampleRate, sampleRate)},
	}
	a := NewAssembler(nil)

	_, _, err := a.Assemble(context.Background(), segs, []float64{0.0}, []float64{2.0}, model.SyncModeSpeedSync, 2, sampleRate)
	assert.Error(t, err)
}

func TestAssembleVideoStretchNeedsNoTempoAdjuster(t *testing.T) {
	sampleRate := 16000
	segs := []model.SynthesizedSegment{
		{SegmentIndex: 0, DurationSeconds: 1.0, AudioBytes: pcmBytes(1*sampleRate, sampleRate)},
		{SegmentIndex: 1, DurationSeconds: 1.0, AudioBytes: pcmBytes(1*sampleRate, sampleRate)},
	}
	a := NewAssembler(nil)

	wavBytes, stretch, err := a.Assemble(context.Background(), segs, nil, nil, model.SyncModeVideoStretch, 1, sampleRate)
	require.NoError(t, err)
	assert.NotEmpty(t, wavBytes)
	assert.Greater(t, stretch, 1.0)
}
