// Package quality scores a translation pair against a structured
// rubric and produces a QualityReport, per spec.md §4.5. Grounded on
// original_source/src/core/quality.py's QualityValidator.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/jsonrepair"
	"github.com/redubline/api/internal/model"
)

// ChatClient is the minimal LLM surface the evaluator needs, matching
// translate.ChatClient's shape so both packages can share the same
// concrete client.LLMClient implementation without importing each other.
type ChatClient interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// Evaluator scores translations across an ordered provider chain,
// falling back to the next provider on quota errors and degrading to
// an "unavailable" report if every provider fails.
type Evaluator struct {
	providers []namedClient
}

type namedClient struct {
	id     string
	client ChatClient
}

// NewEvaluator builds an Evaluator over an ordered provider chain.
func NewEvaluator(chain []model.EngineSpec, clients map[string]ChatClient) *Evaluator {
	e := &Evaluator{}
	for _, spec := range chain {
		if c, ok := clients[spec.ID]; ok {
			e.providers = append(e.providers, namedClient{id: spec.ID, client: c})
		}
	}
	return e
}

// Evaluate runs the dual-call (median-of-three-on-large-delta)
// evaluation against the first viable provider in the chain. If a
// provider returns a quota error, the next provider is tried from
// scratch. If every provider fails, verify degrades soft: a report
// with Unavailable set is returned with a nil error, so a caller never
// needs special-case handling to keep the job alive.
func (e *Evaluator) Evaluate(ctx context.Context, original, translated, sourceLang, targetLang string) (model.QualityReport, error) {
	if len(e.providers) == 0 {
		return model.QualityReport{Unavailable: true}, nil
	}

	sampledOriginal, sampledTranslated, sampled := sampleIfLong(original, translated)

	for _, p := range e.providers {
		if err := ctx.Err(); err != nil {
			return model.QualityReport{}, classify.Cancelled("quality.Evaluate")
		}

		report, err := e.evaluateWithProvider(ctx, p, sampledOriginal, sampledTranslated, sourceLang, targetLang)
		if err != nil {
			if classify.KindOf(err) == classify.KindCancelled {
				return model.QualityReport{}, err
			}
			if classify.KindOf(err) == classify.KindQuotaRemote {
				continue
			}
			continue
		}
		report.Sampled = sampled
		applyTermPreservation(&report, original, translated, targetLang)
		return report, nil
	}

	return model.QualityReport{Unavailable: true}, nil
}

func applyTermPreservation(report *model.QualityReport, original, translated, targetLang string) {
	tp := CheckPreservation(original, translated, targetLang)
	report.TermPreservation = tp
	if tp.Score < model.TermPreservationRejectFloor {
		report.Recommendation = model.RecommendationReject
	}
}

// evaluateWithProvider performs the dual-call-then-maybe-median
// sequence against a single provider.
func (e *Evaluator) evaluateWithProvider(ctx context.Context, p namedClient, original, translated, sourceLang, targetLang string) (model.QualityReport, error) {
	first, err := e.callOnce(ctx, p, original, translated, sourceLang, targetLang)
	if err != nil {
		return model.QualityReport{}, err
	}
	second, err := e.callOnce(ctx, p, original, translated, sourceLang, targetLang)
	if err != nil {
		return model.QualityReport{}, err
	}

	if abs(first.OverallScore-second.OverallScore) >= model.DualEvalDeltaThreshold {
		third, err := e.callOnce(ctx, p, original, translated, sourceLang, targetLang)
		if err != nil {
			return mergeAverage(first, second), nil
		}
		return mergeMedian(first, second, third), nil
	}
	return mergeAverage(first, second), nil
}

func (e *Evaluator) callOnce(ctx context.Context, p namedClient, original, translated, sourceLang, targetLang string) (model.QualityReport, error) {
	system, user := buildEvalPrompt(original, translated, sourceLang, targetLang)
	raw, err := p.client.ChatCompletion(ctx, system, user)
	if err != nil {
		return model.QualityReport{}, err
	}

	report, err := parseReport(raw)
	if err != nil {
		repaired, ok := jsonrepair.Repair(raw)
		if !ok {
			return degradedReport(err), nil
		}
		report, err = parseReport(repaired)
		if err != nil {
			// One repair prompt round-trip asking the same provider to
			// fix its own output, per spec.md §4.5.
			fixSystem := "Your previous response was not valid JSON. Re-emit only the corrected JSON object, nothing else."
			fixed, fixErr := p.client.ChatCompletion(ctx, fixSystem, raw)
			if fixErr != nil {
				return degradedReport(err), nil
			}
			report, err = parseReport(fixed)
			if err != nil {
				return degradedReport(err), nil
			}
		}
	}
	return report, nil
}

func degradedReport(cause error) model.QualityReport {
	return model.QualityReport{
		OverallScore:   0,
		Recommendation: model.RecommendationReject,
		Issues:         []string{fmt.Sprintf("evaluator response unparseable: %v", cause)},
	}
}

type evalResponse struct {
	OverallScore int      `json:"overallScore"`
	Accuracy     int      `json:"accuracy"`
	Naturalness  int      `json:"naturalness"`
	DubbingFit   int      `json:"dubbingFit"`
	Consistency  int      `json:"consistency"`
	Issues       []string `json:"issues"`
}

func parseReport(raw string) (model.QualityReport, error) {
	var r evalResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return model.QualityReport{}, err
	}
	recommendation := model.RecommendationApproved
	switch {
	case r.OverallScore < model.ReviewThresholdScore:
		recommendation = model.RecommendationReject
	case r.OverallScore < model.RefineAcceptScore:
		recommendation = model.RecommendationReviewNeeded
	}
	return model.QualityReport{
		OverallScore: r.OverallScore,
		Breakdown: model.ScoreBreakdown{
			Accuracy:    r.Accuracy,
			Naturalness: r.Naturalness,
			DubbingFit:  r.DubbingFit,
			Consistency: r.Consistency,
		},
		Issues:         r.Issues,
		Recommendation: recommendation,
	}, nil
}

func mergeAverage(a, b model.QualityReport) model.QualityReport {
	out := a
	out.OverallScore = (a.OverallScore + b.OverallScore) / 2
	out.Breakdown = averageBreakdown(a.Breakdown, b.Breakdown)
	out.Issues = mergeIssues(a.Issues, b.Issues)
	out.Recommendation = recommendationFor(out.OverallScore)
	return out
}

func mergeMedian(a, b, c model.QualityReport) model.QualityReport {
	scores := []int{a.OverallScore, b.OverallScore, c.OverallScore}
	sort.Ints(scores)
	out := a
	out.OverallScore = scores[1]
	out.Issues = mergeIssues(mergeIssues(a.Issues, b.Issues), c.Issues)
	out.Recommendation = recommendationFor(out.OverallScore)
	return out
}

func recommendationFor(score int) model.Recommendation {
	switch {
	case score < model.ReviewThresholdScore:
		return model.RecommendationReject
	case score < model.RefineAcceptScore:
		return model.RecommendationReviewNeeded
	default:
		return model.RecommendationApproved
	}
}

func averageBreakdown(a, b model.ScoreBreakdown) model.ScoreBreakdown {
	return model.ScoreBreakdown{
		Accuracy:    (a.Accuracy + b.Accuracy) / 2,
		Naturalness: (a.Naturalness + b.Naturalness) / 2,
		DubbingFit:  (a.DubbingFit + b.DubbingFit) / 2,
		Consistency: (a.Consistency + b.Consistency) / 2,
	}
}

func mergeIssues(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

const longTextThreshold = 10000
const sampleWindowChars = 3333

// sampleIfLong implements spec.md §4.5's long-text sampling: when the
// combined text exceeds 10,000 chars, evaluate three ~3,333-char
// windows (head, middle, tail) instead of the full text.
func sampleIfLong(original, translated string) (string, string, bool) {
	if len(original)+len(translated) <= longTextThreshold {
		return original, translated, false
	}
	return sampleWindows(original), sampleWindows(translated), true
}

func sampleWindows(s string) string {
	if len(s) <= sampleWindowChars*3 {
		return s
	}
	head := s[:sampleWindowChars]
	mid := len(s) / 2
	middle := s[mid-sampleWindowChars/2 : mid+sampleWindowChars/2]
	tail := s[len(s)-sampleWindowChars:]
	return strings.Join([]string{head, "[...]", middle, "[...]", tail}, "\n")
}

func buildEvalPrompt(original, translated, sourceLang, targetLang string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are evaluating a %s to %s dubbing translation.\n", sourceLang, targetLang))
	sb.WriteString("Score accuracy, naturalness, dubbingFit, and consistency each 0-100, and an overallScore 0-100.\n")
	sb.WriteString("Respond with a single JSON object: {\"overallScore\":N,\"accuracy\":N,\"naturalness\":N,\"dubbingFit\":N,\"consistency\":N,\"issues\":[\"...\"]}\n")
	system = sb.String()

	payload, _ := json.Marshal(struct {
		Original   string `json:"original"`
		Translated string `json:"translated"`
	}{Original: original, Translated: translated})
	user = string(payload)
	return system, user
}
