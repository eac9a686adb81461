package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/jsonrepair"
	"github.com/redubline/api/internal/model"
)

// ChatClient is the minimal surface the translator needs from an LLM
// backend, matching the shape of client.LLMClient's ChatCompletion
// method (system prompt, user prompt, returns raw text).
type ChatClient interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// defaultBackoffSchedule implements spec §7's transient-remote policy:
// exponential backoff of 2s/4s/8s, three attempts, then advance to the
// next engine in the chain.
var defaultBackoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Translator drives a chunk through an ordered engine chain, retrying
// transient failures with backoff and advancing immediately on quota
// or malformed-response errors, per spec.md §4.4 and §7.
type Translator struct {
	clients map[string]ChatClient
	backoff []time.Duration
}

// NewTranslator builds a Translator over a fixed set of named chat
// clients, keyed by dispatcher engine ID.
func NewTranslator(clients map[string]ChatClient) *Translator {
	return &Translator{clients: clients, backoff: defaultBackoffSchedule}
}

// TranslateChunk attempts chunk translation across chain in order,
// returning the first success. It never silently substitutes the
// job's sync mode or language pair -- those are inputs, not decisions
// this function makes.
func (t *Translator) TranslateChunk(ctx context.Context, chunk model.TranslationChunk, sourceLang, targetLang string, chain []model.EngineSpec) (model.TranslationChunk, error) {
	if len(chain) == 0 {
		return chunk, classify.New(classify.KindInputExhaustion, "translate.TranslateChunk", fmt.Errorf("no configured translation engine"))
	}

	var lastErr error
	for _, engine := range chain {
		if err := ctx.Err(); err != nil {
			return chunk, classify.Cancelled("translate.TranslateChunk")
		}

		client, ok := t.clients[engine.ID]
		if !ok {
			continue
		}

		out, err := t.translateViaEngine(ctx, client, chunk, sourceLang, targetLang)
		if err == nil {
			chunk.TranslatedTexts = out
			return chunk, nil
		}
		lastErr = err

		kind := classify.KindOf(err)
		if kind == classify.KindCancelled {
			return chunk, err
		}
		if !classify.AdvancesFallback(kind) {
			return chunk, err
		}
		// quota/malformed advance immediately; transient already
		// exhausted its own backoff inside translateViaEngine.
	}
	return chunk, fmt.Errorf("translate: all engines exhausted: %w", lastErr)
}

func (t *Translator) translateViaEngine(ctx context.Context, client ChatClient, chunk model.TranslationChunk, sourceLang, targetLang string) ([]string, error) {
	system, user := buildPrompt(chunk, sourceLang, targetLang)

	var lastErr error
	for attempt := 0; attempt < len(t.backoff)+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, classify.Cancelled("translate.translateViaEngine")
		}

		raw, err := client.ChatCompletion(ctx, system, user)
		if err != nil {
			lastErr = err
			kind := classify.KindOf(err)
			if kind != classify.KindTransientRemote || attempt >= len(t.backoff) {
				return nil, err
			}
			select {
			case <-time.After(t.backoff[attempt]):
			case <-ctx.Done():
				return nil, classify.Cancelled("translate.translateViaEngine")
			}
			continue
		}

		texts, parseErr := parseTranslationArray(raw, len(chunk.SegmentTexts))
		if parseErr != nil {
			return nil, classify.New(classify.KindMalformedResponse, "translate.translateViaEngine", parseErr)
		}

		if isTruncated(texts, chunk.SourceText) {
			retryRaw, retryErr := client.ChatCompletion(ctx, system, user)
			if retryErr == nil {
				if retryTexts, err2 := parseTranslationArray(retryRaw, len(chunk.SegmentTexts)); err2 == nil {
					if translatedLen(retryTexts) > translatedLen(texts) {
						texts = retryTexts
					}
				}
			}
		}
		return texts, nil
	}
	return nil, lastErr
}

// isTruncated flags a translation that came back suspiciously short --
// under 40% of the source chunk's length -- the same heuristic a
// dropped word or an early stop token would produce.
func isTruncated(texts []string, source string) bool {
	return float64(translatedLen(texts)) < float64(len(source))*0.4
}

func translatedLen(texts []string) int {
	return len(strings.Join(texts, ""))
}

func parseTranslationArray(raw string, want int) ([]string, error) {
	var texts []string
	if err := json.Unmarshal([]byte(raw), &texts); err != nil {
		repaired, ok := jsonrepair.Repair(raw)
		if !ok {
			return nil, fmt.Errorf("translate: unparseable response: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &texts); err != nil {
			return nil, fmt.Errorf("translate: unparseable response after repair: %w", err)
		}
	}
	if want > 0 && len(texts) != want {
		return nil, fmt.Errorf("translate: expected %d translated segments, got %d", want, len(texts))
	}
	return texts, nil
}

func buildPrompt(chunk model.TranslationChunk, sourceLang, targetLang string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a professional dubbing translator converting %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Translate each input segment into a natural, dub-ready line in the target language.\n")
	sb.WriteString("Respond with a JSON array of strings, one per input segment, in the same order. No prose, no markdown fence.\n")
	if note := RegisterNote(targetLang); note != "" {
		sb.WriteString(note + "\n")
	}
	for _, ex := range Examples(sourceLang, targetLang) {
		sb.WriteString(fmt.Sprintf("Example input: %q -> Example output: %q\n", ex.Source, ex.Target))
	}
	system = sb.String()

	segments := make([]string, len(chunk.SegmentTexts))
	for i, s := range chunk.SegmentTexts {
		segments[i] = Wrap(Sanitize(s))
	}
	payload, _ := json.Marshal(segments)
	user = fmt.Sprintf("Input segments (JSON array): %s", string(payload))
	return system, user
}
