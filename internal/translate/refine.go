package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/model"
)

// Evaluator is the minimal surface refine needs from the quality
// package, kept as a local interface so translate never imports
// quality directly.
type Evaluator interface {
	Evaluate(ctx context.Context, original, translated, sourceLang, targetLang string) (model.QualityReport, error)
}

// Refine runs the verify-enabled refine loop from spec.md §4.4: evaluate,
// and if the score is below model.RefineAcceptScore, ask the same
// engine chain for a corrected translation informed by the evaluator's
// issues, up to model.MaxRefineRounds times. The job's sync mode and
// language pair are never altered by this loop -- they are carried
// through unchanged on every retry.
func (t *Translator) Refine(ctx context.Context, chunk model.TranslationChunk, sourceLang, targetLang string, chain []model.EngineSpec, eval Evaluator) (model.TranslationChunk, model.QualityReport, error) {
	original := chunk.SourceText
	translated := strings.Join(chunk.TranslatedTexts, " ")

	report, err := eval.Evaluate(ctx, original, translated, sourceLang, targetLang)
	if err != nil {
		return chunk, model.QualityReport{Unavailable: true}, nil
	}

	for round := 0; report.OverallScore < model.RefineAcceptScore && round < model.MaxRefineRounds; round++ {
		if err := ctx.Err(); err != nil {
			return chunk, report, classify.Cancelled("translate.Refine")
		}

		refined, err := t.refineOnce(ctx, chunk, sourceLang, targetLang, chain, report.Issues)
		if err != nil {
			// Keep the previous attempt; the score check after the
			// loop decides whether the final state needs review.
			break
		}
		chunk.TranslatedTexts = refined
		chunk.RefineRounds++
		translated = strings.Join(refined, " ")

		report, err = eval.Evaluate(ctx, original, translated, sourceLang, targetLang)
		if err != nil {
			report = model.QualityReport{Unavailable: true}
			break
		}
	}

	if report.OverallScore < model.RefineAcceptScore {
		chunk.NeedsReview = true
	}
	return chunk, report, nil
}

func (t *Translator) refineOnce(ctx context.Context, chunk model.TranslationChunk, sourceLang, targetLang string, chain []model.EngineSpec, issues []string) ([]string, error) {
	system, user := buildRefinePrompt(chunk, sourceLang, targetLang, issues)

	var lastErr error
	for _, engine := range chain {
		client, ok := t.clients[engine.ID]
		if !ok {
			continue
		}
		raw, err := client.ChatCompletion(ctx, system, user)
		if err != nil {
			lastErr = err
			if classify.AdvancesFallback(classify.KindOf(err)) {
				continue
			}
			return nil, err
		}
		texts, parseErr := parseTranslationArray(raw, len(chunk.SegmentTexts))
		if parseErr != nil {
			lastErr = parseErr
			continue
		}
		return texts, nil
	}
	return nil, fmt.Errorf("translate: refine exhausted engines: %w", lastErr)
}

func buildRefinePrompt(chunk model.TranslationChunk, sourceLang, targetLang string, issues []string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are revising a %s to %s dubbing translation that scored below acceptance.\n", sourceLang, targetLang))
	sb.WriteString("Fix the listed issues while preserving meaning, tone, and any names/numbers/dates from the original.\n")
	sb.WriteString("Respond with a JSON array of corrected strings, one per input segment, in the same order. No prose, no markdown fence.\n")
	system = sb.String()

	payload, _ := json.Marshal(struct {
		Original []string `json:"original"`
		Previous []string `json:"previousTranslation"`
		Issues   []string `json:"issues"`
	}{
		Original: chunk.SegmentTexts,
		Previous: chunk.TranslatedTexts,
		Issues:   issues,
	})
	user = fmt.Sprintf("Revision request (JSON): %s", string(payload))
	return system, user
}
