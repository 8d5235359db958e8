package question

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/skypro1111/live-question-service/internal/pattern"
)

const (
	minTextRunes      = 3
	minCandidateRunes = 2
	maxLeadingFillers = 3
)

var sentenceBreak = regexp.MustCompile(`[。．!！\r\n]+|\.(\s+|$)`)

// Extractor turns transcripts into question records. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	locator   Locator
	validator Validator
	observer  Observer
	logger    *slog.Logger
	newID     func() string
	refine    func(string) string
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLocator sets the span locator
func WithLocator(l Locator) Option {
	return func(e *Extractor) {
		e.locator = l
	}
}

// WithValidator sets the external candidate validator
func WithValidator(v Validator) Option {
	return func(e *Extractor) {
		e.validator = v
	}
}

// WithObserver registers an extraction observer
func WithObserver(o Observer) Option {
	return func(e *Extractor) {
		e.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithIDGenerator overrides question id generation
func WithIDGenerator(newID func() string) Option {
	return func(e *Extractor) {
		e.newID = newID
	}
}

// NewExtractor creates an extractor
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		logger: slog.Default(),
		newID:  uuid.NewString,
		refine: Refine,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractQuestions returns the questions found in result, in source order.
// It never fails: lookup errors mean "no span" and a candidate whose
// refinement panics keeps its trimmed text.
func (e *Extractor) ExtractQuestions(ctx context.Context, result TranscriptionResult) []Question {
	text := strings.TrimSpace(result.Text)
	if utf8.RuneCountInString(text) < minTextRunes {
		return nil
	}

	source := text
	timestamp, confidence := result.Timestamp, result.Confidence
	if span := e.locate(ctx, text, result.ID); span != nil {
		source = span.Text
		if !span.Timestamp.IsZero() {
			timestamp = span.Timestamp
		}
		if span.Confidence != 0 {
			confidence = span.Confidence
		}
	}

	var questions []Question
	for _, candidate := range SplitCandidates(source) {
		trimmed := TrimCandidate(candidate)
		if utf8.RuneCountInString(trimmed) < minCandidateRunes {
			continue
		}
		if !e.valid(trimmed) {
			e.logger.Debug("Candidate rejected",
				slog.String("transcription_id", result.ID),
				slog.String("candidate", trimmed))
			continue
		}

		questions = append(questions, Question{
			ID:          e.newID(),
			RawText:     candidate,
			RefinedText: e.safeRefine(trimmed, result.ID),
			Timestamp:   timestamp,
			Confidence:  confidence,
			SourceID:    result.ID,
		})
	}

	if e.observer != nil {
		e.observer.QuestionsExtracted(questions)
	}
	if len(questions) > 0 {
		e.logger.Info("Questions extracted",
			slog.String("transcription_id", result.ID),
			slog.String("chunk_id", result.ChunkID),
			slog.Int("count", len(questions)))
	}
	return questions
}

func (e *Extractor) locate(ctx context.Context, text, id string) *Span {
	if e.locator == nil {
		return nil
	}

	span, err := e.locator.Locate(ctx, text)
	if err != nil {
		e.logger.Warn("Question span lookup failed",
			slog.String("transcription_id", id),
			slog.String("error", err.Error()))
		return nil
	}
	if span == nil || strings.TrimSpace(span.Text) == "" {
		return nil
	}
	return span
}

// valid accepts a candidate if either the external validator or the local
// heuristic does.
func (e *Extractor) valid(text string) bool {
	if e.validator != nil && e.validator.Valid(text) {
		return true
	}
	return looksLikeQuestion(text)
}

// safeRefine refines text, falling back to text itself if refinement panics
func (e *Extractor) safeRefine(text, id string) (refined string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Refinement failed, keeping trimmed text",
				slog.String("transcription_id", id),
				slog.String("error", fmt.Sprint(r)))
			if e.observer != nil {
				e.observer.RefinementFallback()
			}
			refined = text
		}
	}()
	return e.refine(text)
}

// SplitCandidates breaks text into question-like parts in source order
func SplitCandidates(text string) []string {
	var candidates []string
	for _, part := range splitSentences(text) {
		for _, piece := range splitConnectors(part) {
			piece = strings.TrimSpace(strings.TrimLeft(piece, "、,， "))
			if utf8.RuneCountInString(piece) < minCandidateRunes {
				continue
			}
			if looksLikeQuestion(piece) {
				candidates = append(candidates, piece)
			}
		}
	}
	return candidates
}

// splitSentences breaks on terminators and line breaks, then after each
// question mark so trailing remarks never ride along with a question.
func splitSentences(text string) []string {
	var out []string
	for _, part := range sentenceBreak.Split(text, -1) {
		out = append(out, splitAfterQuestionMarks(part)...)
	}
	return out
}

func splitAfterQuestionMarks(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r != '?' && r != '？' {
			continue
		}
		end := i + utf8.RuneLen(r)
		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			out = append(out, piece)
		}
		start = end
	}
	if piece := strings.TrimSpace(text[start:]); piece != "" {
		out = append(out, piece)
	}
	return out
}

// splitConnectors cuts text at every connector that does not open an
// alternative such as それとも.
func splitConnectors(text string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); {
		if connector := connectorAt(text[i:]); connector != "" {
			parts = append(parts, text[start:i])
			i += len(connector)
			start = i
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return append(parts, text[start:])
}

func connectorAt(text string) string {
	if pattern.AlternativeAt(text) {
		return ""
	}
	for _, connector := range pattern.Connectors {
		if strings.HasPrefix(text, connector) {
			return connector
		}
	}
	return ""
}

// TrimCandidate removes a leading preface clause, unless the opening phrase
// is the question's own topic, and up to three leading filler tokens.
func TrimCandidate(candidate string) string {
	text := strings.TrimSpace(candidate)
	if !pattern.TopicRetained(text) {
		text = pattern.TrimPreface(text)
	}
	return pattern.StripLeadingFillers(text, maxLeadingFillers)
}

func looksLikeQuestion(text string) bool {
	return pattern.IsQuestionLike(text) || pattern.HasQuestionEnding(text)
}
