package audio

import (
	"context"
	"fmt"

	"github.com/redubline/api/internal/model"
)

// TempoAdjuster time-compresses PCM audio to fit a target duration
// without shifting pitch. Implemented externally (an ffmpeg atempo
// filter invocation) since no pack example carries a pure-Go
// time-stretch/phase-vocoder library and hand-rolling one would not be
// grounded in anything the corpus shows.
type TempoAdjuster interface {
	Adjust(ctx context.Context, p PCM, factor float64) (PCM, error)
}

// Assembler builds the final dub track for a job.
type Assembler struct {
	tempo TempoAdjuster
}

// NewAssembler builds an Assembler. tempo may be nil if speed_sync
// compression is never expected to be exercised (e.g. in tests); a nil
// tempo with a segment that actually needs compression is an error.
func NewAssembler(tempo TempoAdjuster) *Assembler {
	return &Assembler{tempo: tempo}
}

// Assemble decodes each synthesized segment, resolves the timeline for
// the job's sync mode, applies tempo compression where speed_sync
// requires it, pads gaps with silence, concatenates, RMS-normalizes,
// and encodes the result as WAV.
func (a *Assembler) Assemble(ctx context.Context, segments []model.SynthesizedSegment, originalStarts, originalEnds []float64, mode model.SyncMode, originalVideoDuration int, sampleRate int) ([]byte, float64, error) {
	decoded := make([]PCM, len(segments))
	for i, seg := range segments {
		decoded[i] = DecodePCM16(sampleRate, seg.AudioBytes)
	}

	timeline := BuildTimeline(segments, originalStarts, originalEnds, mode, float64(originalVideoDuration))

	var bufs []PCM
	cursor := 0.0
	for i, p := range timeline.Placements {
		if gap := p.StartSeconds - cursor; gap > 0 {
			bufs = append(bufs, Silence(sampleRate, gap))
		}

		segPCM := decoded[i]
		if p.SpeedFactor > 1.0 {
			if a.tempo == nil {
				return nil, 0, fmt.Errorf("audio: segment %d needs %.2fx compression but no tempo adjuster is configured", p.SegmentIndex, p.SpeedFactor)
			}
			adjusted, err := a.tempo.Adjust(ctx, segPCM, p.SpeedFactor)
			if err != nil {
				return nil, 0, fmt.Errorf("audio: tempo adjust segment %d: %w", p.SegmentIndex, err)
			}
			segPCM = adjusted
		}
		bufs = append(bufs, segPCM)
		cursor = p.StartSeconds + segPCM.DurationSeconds()

		if p.SilenceAfter > 0 {
			bufs = append(bufs, Silence(sampleRate, p.SilenceAfter))
			cursor += p.SilenceAfter
		}
	}

	assembled, err := Concat(bufs...)
	if err != nil {
		return nil, 0, err
	}

	normalized := NormalizeRMS(assembled, TargetDBFS)
	return EncodeWAV(normalized), timeline.StretchFactor, nil
}
