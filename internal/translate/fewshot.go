package translate

import "fmt"

// Example is one few-shot source/target translation pair.
type Example struct {
	Source string
	Target string
}

// fewShotExamples mirrors original_source/src/core/translate.py's
// FEW_SHOT_EXAMPLES table: a small set of illustrative pairs per
// (source, target) language combination, covering register shifts a
// literal translation would miss (Korean honorifics, Japanese
// politeness levels, Russian case/gender agreement).
var fewShotExamples = map[string][]Example{
	"en-ko": {
		{Source: "Thank you so much for coming.", Target: "정말 와주셔서 감사합니다."},
		{Source: "I can't believe this is happening.", Target: "이런 일이 일어나다니 믿을 수가 없어요."},
	},
	"en-ja": {
		{Source: "I'm sorry, I didn't mean to interrupt.", Target: "すみません、邪魔するつもりはありませんでした。"},
		{Source: "Let's get started right away.", Target: "早速始めましょう。"},
	},
	"en-ru": {
		{Source: "She gave the book to her brother.", Target: "Она отдала книгу своему брату."},
		{Source: "This is the best decision we've made.", Target: "Это лучшее решение, которое мы приняли."},
	},
}

// RegisterNote returns a short rubric hint for languages whose dubbed
// register needs explicit steering beyond literal translation.
func RegisterNote(targetLang string) string {
	switch targetLang {
	case "ko":
		return "Use polite/formal 존댓말 register consistent with narration unless dialogue clearly signals informality."
	case "ru":
		return "Preserve grammatical case and gender agreement; do not default to masculine when speaker gender is evident from context."
	case "ja":
		return "Match politeness level (敬語 vs plain form) to the speaker's apparent social register in context."
	default:
		return ""
	}
}

// Examples returns the few-shot pairs for a language pair, or nil if none are defined.
func Examples(sourceLang, targetLang string) []Example {
	return fewShotExamples[fmt.Sprintf("%s-%s", sourceLang, targetLang)]
}
