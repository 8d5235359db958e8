package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/question"
)

func TestNewMetricsRegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	// A second registration on the same registry must collide
	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}

func TestSegmenterObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.DecisionMade(audio.Decision{}, audio.State{})
	m.DecisionMade(audio.Decision{ShouldChunk: true, Reason: audio.ReasonSilence}, audio.State{})
	m.DecisionMade(audio.Decision{ShouldChunk: true, Reason: audio.ReasonSilence}, audio.State{})
	m.DecisionMade(audio.Decision{ShouldChunk: true, Reason: audio.ReasonMaxSize}, audio.State{})

	if got := testutil.ToFloat64(m.FramesProcessed); got != 4 {
		t.Errorf("Expected 4 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues(string(audio.ReasonSilence))); got != 2 {
		t.Errorf("Expected 2 silence decisions, got %v", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues(string(audio.ReasonMaxSize))); got != 1 {
		t.Errorf("Expected 1 max size decision, got %v", got)
	}

	m.ChunkFinalized(&audio.Chunk{DurationMs: 1600, EstimatedWordCount: 3}, audio.State{AdaptiveMultiplier: 1.1})
	if got := testutil.ToFloat64(m.ChunksFinalized); got != 1 {
		t.Errorf("Expected 1 chunk, got %v", got)
	}
	if got := testutil.ToFloat64(m.AdaptiveMultiplier); got != 1.1 {
		t.Errorf("Expected multiplier gauge 1.1, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ChunkDuration); got != 1 {
		t.Errorf("Expected chunk duration histogram to be collected, got %d", got)
	}
}

func TestExtractionObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.QuestionsExtracted([]question.Question{{ID: "a"}, {ID: "b"}})
	m.QuestionsExtracted(nil)
	m.RefinementFallback()

	if got := testutil.ToFloat64(m.QuestionsTotal); got != 2 {
		t.Errorf("Expected 2 questions, got %v", got)
	}
	if got := testutil.ToFloat64(m.RefinementFallbacks); got != 1 {
		t.Errorf("Expected 1 fallback, got %v", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	m.RecordSessionDestroyed(12)
	m.SetActiveSessions(1)
	m.RecordEarlySignal("question")
	m.RecordTranscriptionRequest()
	m.RecordTranscriptionRetry()
	m.RecordTranscriptionSuccess(0.4)
	m.RecordHTTPRequest("GET", "/health", "200", 0.001)
	m.RecordHTTPError("POST", "/questions/extract", "invalid_json")

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"sessions created", m.SessionsCreated, 2},
		{"sessions destroyed", m.SessionsDestroyed, 1},
		{"active sessions", m.ActiveSessions, 1},
		{"early signals", m.EarlySignals.WithLabelValues("question"), 1},
		{"transcription requests", m.TranscriptionRequests, 1},
		{"transcription retries", m.TranscriptionRetries, 1},
		{"transcription successes", m.TranscriptionSuccesses, 1},
		{"transcription failures", m.TranscriptionFailures, 0},
		{"http requests", m.HTTPRequests.WithLabelValues("GET", "/health", "200"), 1},
		{"http errors", m.HTTPErrors.WithLabelValues("POST", "/questions/extract", "invalid_json"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
