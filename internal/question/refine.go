package question

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/skypro1111/live-question-service/internal/pattern"
)

const (
	minRefinedRunes     = 3
	minRefinedWordRunes = 2

	tokenMarks = "、,，.。!！?？"
)

// Refine produces the canonical form of a trimmed candidate. Filler tokens are
// dropped and trailing punctuation and politeness suffixes stripped. A
// question mark is appended when the candidate was asked outright or still
// reads as a question. If the result collapses, the trimmed candidate is
// returned unchanged.
func Refine(text string) string {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)

	var kept []string
	for _, token := range strings.Fields(lowered) {
		bare := strings.Trim(token, tokenMarks)
		if pattern.Fillers[bare] {
			continue
		}
		// Repeated soft fillers collapse into the last occurrence
		if pattern.SoftFillers[bare] && len(kept) > 0 && strings.Trim(kept[len(kept)-1], tokenMarks) == bare {
			kept[len(kept)-1] = token
			continue
		}
		kept = append(kept, token)
	}

	refined := stripSuffixes(strings.Join(kept, " "))
	if refined != "" && (askedOutright(trimmed) || pattern.ContainsStarter(pattern.Normalize(refined)) || pattern.IsQuestionLike(refined)) {
		refined += questionMark(refined)
	}
	refined = capitalize(refined)

	if collapsed(refined) {
		return trimmed
	}
	return refined
}

// stripSuffixes removes trailing marks and politeness suffixes until neither remains
func stripSuffixes(text string) string {
	for {
		before := text
		text = strings.TrimSpace(pattern.TrimTrailingMarks(text))
		for _, suffix := range pattern.PolitenessSuffixes {
			text = strings.TrimSuffix(text, suffix)
		}
		if text == before {
			return text
		}
	}
}

// askedOutright reports whether text already ended with a question mark
func askedOutright(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(text))
	return r == '?' || r == '？'
}

func questionMark(text string) string {
	if pattern.IsLatin(text) {
		return "?"
	}
	return "？"
}

func capitalize(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError || !unicode.Is(unicode.Latin, r) || !unicode.IsLower(r) {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}

// collapsed reports whether refinement left too little meaningful text
func collapsed(text string) bool {
	if utf8.RuneCountInString(text) < minRefinedRunes {
		return true
	}
	words := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			words++
		}
	}
	return words < minRefinedWordRunes
}
