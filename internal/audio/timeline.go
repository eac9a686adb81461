// Package audio turns synthesized speech segments plus their original
// transcript timestamps into a single mono PCM/WAV track aligned to
// the source video's timeline, per spec.md §4.7. Grounded on
// original_source's sync-mode handling and, for the RMS-normalize
// step, celalettindemir-make-singer-backend's master_worker.go
// mastering pipeline.
package audio

import "github.com/redubline/api/internal/model"

// MinGapSeconds and MaxGapSeconds bound the silence floor inserted
// between segments in every sync mode, preventing word collisions.
const (
	MinGapSeconds = 0.200
	MaxGapSeconds = 0.400
)

// Placement is one segment's resolved position and speed adjustment on
// the output timeline.
type Placement struct {
	SegmentIndex     int
	StartSeconds     float64
	SourceDuration   float64 // the synthesized segment's native duration
	WindowSeconds    float64 // time available before the next placement
	SpeedFactor      float64 // >1.0 compresses (speed_sync only); 1.0 elsewhere
	SilenceAfter     float64 // trailing silence to pad the window, if any
}

// Timeline is the full resolved layout for one job's dub track.
type Timeline struct {
	Mode            model.SyncMode
	Placements      []Placement
	TotalDuration   float64
	StretchFactor   float64 // video_stretch only; 1.0 otherwise
}

// BuildTimeline resolves segment placement according to the job's sync
// mode. segments must be sorted by SegmentIndex and aligned 1:1 with
// originalStarts/originalEnds (the transcript's timing).
func BuildTimeline(segments []model.SynthesizedSegment, originalStarts, originalEnds []float64, mode model.SyncMode, originalVideoDuration float64) Timeline {
	switch mode {
	case model.SyncModeVideoStretch:
		return buildVideoStretchTimeline(segments, originalVideoDuration)
	case model.SyncModeNatural:
		return buildNaturalTimeline(segments, originalStarts, originalEnds)
	default:
		return buildSpeedSyncTimeline(segments, originalStarts, originalEnds)
	}
}

func gapFor(silenceHint float64) float64 {
	if silenceHint < MinGapSeconds {
		return MinGapSeconds
	}
	if silenceHint > MaxGapSeconds {
		return MaxGapSeconds
	}
	return silenceHint
}

// buildNaturalTimeline places each segment at its original start.
// Overflow (a segment longer than its window) pushes every later
// segment's effective start back by the overflow amount -- drift is
// documented, expected behavior in this mode, not a bug to correct.
func buildNaturalTimeline(segments []model.SynthesizedSegment, starts, ends []float64) Timeline {
	var placements []Placement
	drift := 0.0
	cursor := 0.0

	for i, seg := range segments {
		nominalStart := starts[i]
		actualStart := nominalStart + drift
		if actualStart < cursor {
			actualStart = cursor
		}

		window := windowFor(i, starts, ends)
		p := Placement{
			SegmentIndex:   seg.SegmentIndex,
			StartSeconds:   actualStart,
			SourceDuration: seg.DurationSeconds,
			WindowSeconds:  window,
			SpeedFactor:    1.0,
		}
		if seg.DurationSeconds > window {
			overflow := seg.DurationSeconds - window
			drift += overflow
		} else {
			p.SilenceAfter = gapFor(window - seg.DurationSeconds)
		}
		cursor = actualStart + seg.DurationSeconds
		placements = append(placements, p)
	}

	total := 0.0
	if len(placements) > 0 {
		last := placements[len(placements)-1]
		total = last.StartSeconds + last.SourceDuration
	}
	return Timeline{Mode: model.SyncModeNatural, Placements: placements, TotalDuration: total, StretchFactor: 1.0}
}

// buildSpeedSyncTimeline places each segment at its original start and
// compresses any segment longer than its window so total duration
// always matches the video, with no drift.
func buildSpeedSyncTimeline(segments []model.SynthesizedSegment, starts, ends []float64) Timeline {
	var placements []Placement

	for i, seg := range segments {
		window := windowFor(i, starts, ends)
		p := Placement{
			SegmentIndex:   seg.SegmentIndex,
			StartSeconds:   starts[i],
			SourceDuration: seg.DurationSeconds,
			WindowSeconds:  window,
			SpeedFactor:    1.0,
		}
		if seg.DurationSeconds > window && window > 0 {
			p.SpeedFactor = seg.DurationSeconds / window
		} else if seg.DurationSeconds < window {
			p.SilenceAfter = gapFor(window - seg.DurationSeconds)
		}
		placements = append(placements, p)
	}

	total := 0.0
	if len(ends) > 0 {
		total = ends[len(ends)-1]
	}
	return Timeline{Mode: model.SyncModeSpeedSync, Placements: placements, TotalDuration: total, StretchFactor: 1.0}
}

// buildVideoStretchTimeline lays segments end to end with only the
// silence floor between them, then reports the stretch factor the mux
// stage must apply to the video stream to match.
func buildVideoStretchTimeline(segments []model.SynthesizedSegment, originalVideoDuration float64) Timeline {
	var placements []Placement
	cursor := 0.0

	for _, seg := range segments {
		p := Placement{
			SegmentIndex:   seg.SegmentIndex,
			StartSeconds:   cursor,
			SourceDuration: seg.DurationSeconds,
			WindowSeconds:  seg.DurationSeconds,
			SpeedFactor:    1.0,
			SilenceAfter:   MinGapSeconds,
		}
		cursor += seg.DurationSeconds + p.SilenceAfter
		placements = append(placements, p)
	}

	total := cursor
	stretch := 1.0
	if originalVideoDuration > 0 {
		stretch = total / originalVideoDuration
	}
	return Timeline{Mode: model.SyncModeVideoStretch, Placements: placements, TotalDuration: total, StretchFactor: stretch}
}

func windowFor(i int, starts, ends []float64) float64 {
	if i+1 < len(starts) {
		return starts[i+1] - starts[i]
	}
	return ends[i] - starts[i]
}
