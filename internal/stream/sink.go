package stream

import (
	"log/slog"
	"sync"

	"github.com/skypro1111/live-question-service/internal/question"
)

// SignalKind names an early question signal
type SignalKind string

const (
	SignalQuestionLikely SignalKind = "question_likely"
	SignalRecentActivity SignalKind = "recent_activity"
)

// Sink receives the outputs of a session
type Sink interface {
	QuestionsReady(sessionID string, result question.TranscriptionResult, questions []question.Question)
	EarlySignal(sessionID string, kind SignalKind)
}

// LogSink logs session outputs
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) QuestionsReady(sessionID string, result question.TranscriptionResult, questions []question.Question) {
	for _, q := range questions {
		s.logger.Info("Question detected",
			slog.String("session_id", sessionID),
			slog.String("chunk_id", result.ChunkID),
			slog.String("question_id", q.ID),
			slog.String("text", q.RefinedText),
			slog.Float64("confidence", q.Confidence),
		)
	}
}

func (s *LogSink) EarlySignal(sessionID string, kind SignalKind) {
	s.logger.Debug("Early question signal",
		slog.String("session_id", sessionID),
		slog.String("signal", string(kind)),
	)
}

// RecentQuestions is a sink that keeps the most recent questions in memory
// and forwards everything to an optional next sink.
type RecentQuestions struct {
	next     Sink
	capacity int
	items    []question.Question
	mu       sync.RWMutex
}

// NewRecentQuestions creates a bounded in-memory sink
func NewRecentQuestions(capacity int, next Sink) *RecentQuestions {
	if capacity <= 0 {
		capacity = 100
	}
	return &RecentQuestions{next: next, capacity: capacity}
}

func (r *RecentQuestions) QuestionsReady(sessionID string, result question.TranscriptionResult, questions []question.Question) {
	r.mu.Lock()
	r.items = append(r.items, questions...)
	if overflow := len(r.items) - r.capacity; overflow > 0 {
		r.items = append(r.items[:0], r.items[overflow:]...)
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.QuestionsReady(sessionID, result, questions)
	}
}

func (r *RecentQuestions) EarlySignal(sessionID string, kind SignalKind) {
	if r.next != nil {
		r.next.EarlySignal(sessionID, kind)
	}
}

// Questions returns the retained questions, oldest first
func (r *RecentQuestions) Questions() []question.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]question.Question, len(r.items))
	copy(out, r.items)
	return out
}
