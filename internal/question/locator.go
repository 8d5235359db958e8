package question

import (
	"context"
	"strings"

	"github.com/skypro1111/live-question-service/internal/pattern"
)

// PatternLocator locates the span starting at the first question-like
// sentence and running to the end of the transcript, dropping leading small
// talk.
type PatternLocator struct{}

// Locate implements Locator
func (PatternLocator) Locate(ctx context.Context, text string) (*Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset := 0
	for _, sentence := range splitSentences(text) {
		idx := strings.Index(text[offset:], sentence)
		if idx < 0 {
			continue
		}
		start := offset + idx
		offset = start + len(sentence)

		if pattern.IsQuestionLike(sentence) || pattern.HasQuestionEnding(sentence) {
			return &Span{Text: strings.TrimSpace(text[start:])}, nil
		}
	}
	return nil, nil
}
