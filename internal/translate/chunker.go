package translate

import (
	"strings"

	"github.com/redubline/api/internal/model"
)

// Chunk walks the transcript's segments in order, accumulating them
// into a TranslationChunk until the projected joined length reaches
// model.ChunkTargetChars, or the next segment would push it past
// model.ChunkMaxChars, in which case the chunk is emitted first. A
// single segment longer than ChunkMaxChars stands alone.
func Chunk(segments []model.Segment) []model.TranslationChunk {
	var chunks []model.TranslationChunk
	var cur model.TranslationChunk
	curLen := 0

	flush := func() {
		if len(cur.SegmentTexts) == 0 {
			return
		}
		cur.Index = len(chunks)
		cur.SourceText = strings.Join(cur.SegmentTexts, " ")
		chunks = append(chunks, cur)
		cur = model.TranslationChunk{}
		curLen = 0
	}

	for i, seg := range segments {
		segLen := len(seg.Text)

		if segLen > model.ChunkMaxChars {
			flush()
			chunks = append(chunks, model.TranslationChunk{
				Index:          len(chunks),
				SourceText:     seg.Text,
				SegmentTexts:   []string{seg.Text},
				SegmentIndices: []int{i},
				StartSeconds:   seg.StartSeconds,
				EndSeconds:     seg.EndSeconds,
			})
			continue
		}

		if len(cur.SegmentTexts) > 0 && curLen+segLen > model.ChunkMaxChars {
			flush()
		}

		if len(cur.SegmentTexts) == 0 {
			cur.StartSeconds = seg.StartSeconds
		}
		cur.SegmentTexts = append(cur.SegmentTexts, seg.Text)
		cur.SegmentIndices = append(cur.SegmentIndices, i)
		cur.EndSeconds = seg.EndSeconds
		curLen += segLen

		if curLen >= model.ChunkTargetChars {
			flush()
		}
	}
	flush()
	return chunks
}
