package quality

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/redubline/api/internal/model"
)

var (
	numberPattern = regexp.MustCompile(`\d[\d.,]*`)
	datePattern   = regexp.MustCompile(`\b\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`)
	asciiRunPattern = regexp.MustCompile(`[A-Za-z]{2,}`)
)

// ExtractTerms pulls the salient, must-survive tokens from source text:
// numbers, dates, capitalized non-initial words (proper nouns), and --
// when the target language is non-Latin-scripted -- ASCII runs of two
// or more letters (brand names, acronyms), per spec.md §4.5.
func ExtractTerms(source, targetLang string) []string {
	seen := map[string]bool{}
	var terms []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		terms = append(terms, s)
	}

	for _, m := range datePattern.FindAllString(source, -1) {
		add(m)
	}
	for _, m := range numberPattern.FindAllString(source, -1) {
		add(m)
	}

	words := strings.Fields(source)
	for i, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if trimmed == "" {
			continue
		}
		if i > 0 && isCapitalized(trimmed) {
			add(trimmed)
		}
	}

	if isNonLatin(targetLang) {
		for _, m := range asciiRunPattern.FindAllString(source, -1) {
			add(m)
		}
	}

	return terms
}

func isCapitalized(word string) bool {
	r := []rune(word)
	if len(r) == 0 {
		return false
	}
	return unicode.IsUpper(r[0]) && !isAllUpper(word)
}

func isAllUpper(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

var nonLatinTargets = map[string]bool{
	"ko": true, "ja": true, "zh": true, "ru": true, "ar": true, "th": true, "he": true,
}

func isNonLatin(targetLang string) bool {
	return nonLatinTargets[targetLang]
}

// CheckPreservation computes the fraction of extracted source terms
// that survive (case-insensitively, for Latin terms) into translated
// text, and lists the ones that don't.
func CheckPreservation(source, translated, targetLang string) model.TermPreservation {
	terms := ExtractTerms(source, targetLang)
	if len(terms) == 0 {
		return model.TermPreservation{Score: 1.0}
	}

	lowerTranslated := strings.ToLower(translated)
	var missing []string
	matched := 0
	for _, term := range terms {
		if strings.Contains(lowerTranslated, strings.ToLower(term)) || strings.Contains(translated, term) {
			matched++
			continue
		}
		missing = append(missing, term)
	}

	return model.TermPreservation{
		Score:   float64(matched) / float64(len(terms)),
		Missing: missing,
	}
}
