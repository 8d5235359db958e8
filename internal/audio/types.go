package audio

import "time"

// Frame is an immutable run of mono samples in [-1, 1] at the segmenter's
// sample rate, contiguous in time with the previous frame.
type Frame struct {
	Samples []float32
}

// Reason explains why a chunking decision was made
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonSilence  Reason = "silence"
	ReasonDuration Reason = "duration"
	ReasonContent  Reason = "content"
	ReasonMaxSize  Reason = "max_size"
)

// Decision is the advisory outcome of appending a frame. It never clears the
// buffer by itself; callers materialize a chunk with FinalizeChunk.
type Decision struct {
	ShouldChunk      bool    `json:"should_chunk"`
	Reason           Reason  `json:"reason,omitempty"`
	Confidence       float64 `json:"confidence"`
	SuggestedDelayMs float64 `json:"suggested_delay_ms"`
}

// ContentAnalysis is a snapshot of the trailing analysis window
type ContentAnalysis struct {
	RMSLevel           float64 `json:"rms_level"`
	SilenceDurationMs  float64 `json:"silence_duration_ms"`
	SpeechDensity      float64 `json:"speech_density"`
	EnergyVariance     float64 `json:"energy_variance"`
	HasQuestionMarkers bool    `json:"has_question_markers"`
}

// Chunk represents a finalized span of audio ready for transcription
type Chunk struct {
	ID                 string    `json:"id"`
	Samples            []float32 `json:"-"`
	SampleRate         int       `json:"sample_rate"`
	Timestamp          time.Time `json:"timestamp"`
	DurationMs         float64   `json:"duration_ms"`
	EstimatedWordCount int       `json:"estimated_word_count"`
}

// State is a read-only view of the segmenter
type State struct {
	BufferedFrameCount       int     `json:"buffered_frame_count"`
	BufferedDurationMs       float64 `json:"buffered_duration_ms"`
	InSilence                bool    `json:"in_silence"`
	CurrentSilenceDurationMs float64 `json:"current_silence_duration_ms"`
	AdaptiveMultiplier       float64 `json:"adaptive_multiplier"`
	HistoryLength            int     `json:"history_length"`
}

// Observer is notified synchronously after the segmenter mutates its state.
// Implementations must not call back into the segmenter.
type Observer interface {
	DecisionMade(decision Decision, state State)
	ChunkFinalized(chunk *Chunk, state State)
}
