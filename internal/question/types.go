package question

import (
	"context"
	"time"
)

// TranscriptionResult is the text recognized for one audio chunk
type TranscriptionResult struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	ChunkID    string    `json:"chunk_id,omitempty"`
	Language   string    `json:"language,omitempty"`
}

// Question is a detected question with its canonical form
type Question struct {
	ID          string    `json:"id"`
	RawText     string    `json:"raw_text"`
	RefinedText string    `json:"refined_text"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float64   `json:"confidence"`
	SourceID    string    `json:"source_id"` // transcription result id
}

// Span is the part of a transcript a Locator believes holds the question.
// Zero Timestamp or Confidence inherit the transcript's values.
type Span struct {
	Text       string
	Timestamp  time.Time
	Confidence float64
}

// Locator finds the best single question span in a transcript. A nil span
// means no question was located.
type Locator interface {
	Locate(ctx context.Context, text string) (*Span, error)
}

// Validator accepts or rejects a trimmed candidate
type Validator interface {
	Valid(text string) bool
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(text string) bool

// Valid calls f(text)
func (f ValidatorFunc) Valid(text string) bool {
	return f(text)
}

// Observer is notified of extraction outcomes
type Observer interface {
	QuestionsExtracted(questions []Question)
	RefinementFallback()
}
