package audio

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/live-question-service/internal/vad"
)

const (
	MinMultiplier = 0.7
	MaxMultiplier = 1.3

	multiplierStep         = 0.1
	multiplierWindow       = 5
	denseSpeechDensity     = 0.7
	sparseSpeechDensity    = 0.3
	msPerWord              = 600.0
	minSuggestedDelayMs    = 50.0
	maxSuggestedDelayMs    = 500.0
	bufferedGateRatio       = 0.7
	frameMarkerGateRatio   = 0.6
	durationFallbackFactor = 1.2
	historyPatternWindow   = 3
)

// Confidence values attached to each trigger
const (
	confidenceMaxSize  = 1.0
	confidenceSilence  = 0.95
	confidenceMarkers  = 0.9
	confidenceDuration = 0.7
)

// Segmenter decides when buffered audio forms a chunk. It is single-writer:
// callers must serialize Append, FinalizeChunk, Reset and UpdateConfig.
type Segmenter struct {
	config     Config
	buffer     *Buffer
	history    *History
	vad        *vad.Processor
	multiplier float64

	// Silence run, measured on the stream sample clock
	inSilence      bool
	silenceStartMs float64
	streamMs       float64

	lastChunkAt time.Time

	// Statistics
	chunksCreated   uint64
	totalDurationMs float64

	observer Observer
	now      func() time.Time
	newID    func() string
}

// SegmenterStats represents segmenter statistics
type SegmenterStats struct {
	ChunksCreated      uint64             `json:"chunks_created"`
	TotalDurationMs    float64            `json:"total_duration_ms"`
	AvgChunkDurationMs float64            `json:"avg_chunk_duration_ms"`
	VAD                vad.ProcessorStats `json:"vad"`
}

// Option configures a Segmenter
type Option func(*Segmenter)

// WithObserver registers an observer notified after every state mutation
func WithObserver(o Observer) Option {
	return func(s *Segmenter) {
		s.observer = o
	}
}

// WithClock overrides the clock used for chunk timestamps and the
// elapsed-time fallback. The clock must be monotonic.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) {
		s.now = now
	}
}

// WithIDGenerator overrides chunk id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Segmenter) {
		s.newID = newID
	}
}

// NewSegmenter creates a segmenter with the given configuration
func NewSegmenter(config Config, opts ...Option) *Segmenter {
	s := &Segmenter{
		config:     config,
		buffer:     NewBuffer(),
		history:    NewHistory(historyCapacity),
		vad:        vad.NewProcessor(config.SilenceThresholdRMS),
		multiplier: 1.0,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastChunkAt = s.now()
	return s
}

// Append buffers a frame and returns an advisory chunking decision.
// Empty frames leave the state untouched and never trigger a chunk.
func (s *Segmenter) Append(frame Frame) Decision {
	if len(frame.Samples) == 0 {
		return s.noChunk()
	}

	frameMs := s.durationMs(len(frame.Samples))
	s.buffer.Append(frame.Samples)
	s.streamMs += frameMs

	silent := !s.vad.Process(frame.Samples).HasVoice

	decision, ok := s.fastPath(frame, silent)
	if ok {
		s.trackSilence(silent, frameMs)
	} else {
		decision = s.fullAnalysis(silent, frameMs)
	}

	if s.observer != nil {
		s.observer.DecisionMade(decision, s.State())
	}
	return decision
}

// fastPath runs the cheap checks that avoid analyzing the trailing window
func (s *Segmenter) fastPath(frame Frame, silent bool) (Decision, bool) {
	buffered := s.bufferedMs()
	minMs := float64(s.config.MinChunkDurationMs)

	if buffered >= float64(s.config.MaxChunkDurationMs)*s.multiplier {
		return chunkDecision(ReasonMaxSize, confidenceMaxSize), true
	}

	if silent && s.inSilence &&
		s.streamMs-s.silenceStartMs >= float64(s.config.SilenceDurationMs)*s.multiplier &&
		buffered >= bufferedGateRatio*minMs {
		return chunkDecision(ReasonSilence, confidenceSilence), true
	}

	if buffered >= frameMarkerGateRatio*minMs {
		energies := vad.SubFrameEnergies(frame.Samples, vad.SubFrameSize(s.config.SampleRate))
		if vad.HasQuestionMarkers(energies, s.config.SilenceThresholdRMS) {
			return chunkDecision(ReasonContent, confidenceMarkers), true
		}
	}

	return Decision{}, false
}

// fullAnalysis analyzes the trailing window, records it and evaluates the
// remaining triggers in order.
func (s *Segmenter) fullAnalysis(silent bool, frameMs float64) Decision {
	window := s.buffer.Tail(s.samplesFor(s.config.AnalysisWindowMs))
	stats := vad.AnalyzeWindow(window, s.config.SampleRate, s.config.SilenceThresholdRMS)

	s.trackSilence(silent, frameMs)

	analysis := ContentAnalysis{
		RMSLevel:           stats.RMS,
		SilenceDurationMs:  s.silenceRunMs(),
		SpeechDensity:      stats.SpeechDensity,
		EnergyVariance:     stats.EnergyVariance,
		HasQuestionMarkers: stats.HasQuestionMarkers,
	}
	s.history.Push(analysis)

	buffered := s.bufferedMs()
	maxMs := float64(s.config.MaxChunkDurationMs) * s.multiplier

	if s.inSilence && analysis.SilenceDurationMs >= float64(s.config.SilenceDurationMs)*s.multiplier {
		return chunkDecision(ReasonSilence, confidenceSilence)
	}

	if analysis.HasQuestionMarkers && buffered >= bufferedGateRatio*float64(s.config.MinChunkDurationMs) {
		return chunkDecision(ReasonContent, confidenceMarkers)
	}

	if buffered >= maxMs {
		return chunkDecision(ReasonMaxSize, confidenceMaxSize)
	}

	if score := s.contentScore(analysis); score >= s.config.ContentConfidenceThreshold {
		return chunkDecision(ReasonContent, score)
	}

	elapsed := float64(s.now().Sub(s.lastChunkAt)) / float64(time.Millisecond)
	if elapsed >= durationFallbackFactor*maxMs {
		return chunkDecision(ReasonDuration, confidenceDuration)
	}

	return s.noChunk()
}

// contentScore combines the analysis cues into a [0, 1] score
func (s *Segmenter) contentScore(a ContentAnalysis) float64 {
	score := 0.0
	if a.HasQuestionMarkers {
		score += 0.5
	}
	if a.SpeechDensity < 0.3 {
		score += 0.3
	}
	if a.EnergyVariance < 0.1 {
		score += 0.25
	}
	if a.SilenceDurationMs > 0.4*float64(s.config.SilenceDurationMs) {
		score += 0.35
	}
	score += 0.25 * s.historicalScore()
	if a.HasQuestionMarkers && a.SilenceDurationMs > 0 {
		score += 0.2
	}
	return clamp(score, 0, 1)
}

// historicalScore looks for a trailing-off pattern across the last analyses
func (s *Segmenter) historicalScore() float64 {
	recent := s.history.Last(historyPatternWindow)
	if len(recent) < historyPatternWindow {
		return 0
	}

	silenceRising, densityFalling, markers := true, true, false
	for i, a := range recent {
		if a.HasQuestionMarkers {
			markers = true
		}
		if i == 0 {
			continue
		}
		if a.SilenceDurationMs < recent[i-1].SilenceDurationMs {
			silenceRising = false
		}
		if a.SpeechDensity > recent[i-1].SpeechDensity {
			densityFalling = false
		}
	}

	score := 0.0
	if silenceRising {
		score += 0.3
	}
	if densityFalling {
		score += 0.2
	}
	if markers {
		score += 0.5
	}
	return clamp(score, 0, 1)
}

// trackSilence updates the silence run from the current frame
func (s *Segmenter) trackSilence(silent bool, frameMs float64) {
	switch {
	case silent && !s.inSilence:
		s.inSilence = true
		s.silenceStartMs = s.streamMs - frameMs
	case !silent:
		s.inSilence = false
		s.silenceStartMs = 0
	}
}

func (s *Segmenter) silenceRunMs() float64 {
	if !s.inSilence {
		return 0
	}
	return s.streamMs - s.silenceStartMs
}

func (s *Segmenter) noChunk() Decision {
	delay := float64(s.config.MinChunkDurationMs) - s.bufferedMs()
	return Decision{
		SuggestedDelayMs: clamp(delay, minSuggestedDelayMs, maxSuggestedDelayMs),
	}
}

func chunkDecision(reason Reason, confidence float64) Decision {
	return Decision{
		ShouldChunk: true,
		Reason:      reason,
		Confidence:  confidence,
	}
}

// FinalizeChunk materializes the buffered frames into a chunk and clears the
// buffer and silence state. It returns nil when nothing is buffered.
func (s *Segmenter) FinalizeChunk() *Chunk {
	if s.buffer.Len() == 0 {
		return nil
	}

	samples := s.buffer.Drain()
	durationMs := s.durationMs(len(samples))
	chunk := &Chunk{
		ID:                 s.newID(),
		Samples:            samples,
		SampleRate:         s.config.SampleRate,
		Timestamp:          s.now(),
		DurationMs:         durationMs,
		EstimatedWordCount: int(math.Round(durationMs / msPerWord)),
	}

	s.updateMultiplier()
	s.inSilence = false
	s.silenceStartMs = 0
	s.lastChunkAt = chunk.Timestamp

	s.chunksCreated++
	s.totalDurationMs += durationMs

	if s.observer != nil {
		s.observer.ChunkFinalized(chunk, s.State())
	}
	return chunk
}

// updateMultiplier adapts thresholds to the recent speech density
func (s *Segmenter) updateMultiplier() {
	recent := s.history.Last(multiplierWindow)
	if len(recent) < multiplierWindow {
		return
	}

	density := 0.0
	for _, a := range recent {
		density += a.SpeechDensity
	}
	density /= float64(len(recent))

	m := s.multiplier
	switch {
	case density > denseSpeechDensity:
		m -= multiplierStep
	case density < sparseSpeechDensity:
		m += multiplierStep
	}
	s.multiplier = clamp(math.Round(m*10)/10, MinMultiplier, MaxMultiplier)
}

// State returns a snapshot of the segmenter
func (s *Segmenter) State() State {
	return State{
		BufferedFrameCount:       s.buffer.Len(),
		BufferedDurationMs:       s.bufferedMs(),
		InSilence:                s.inSilence,
		CurrentSilenceDurationMs: s.silenceRunMs(),
		AdaptiveMultiplier:       s.multiplier,
		HistoryLength:            s.history.Len(),
	}
}

// Reset clears the buffer, silence state and history, and restores the
// multiplier to 1.0. Configuration and statistics are kept.
func (s *Segmenter) Reset() {
	s.buffer.Reset()
	s.history.Reset()
	s.vad.Reset()
	s.multiplier = 1.0
	s.inSilence = false
	s.silenceStartMs = 0
	s.streamMs = 0
	s.lastChunkAt = s.now()
}

// Config returns the current configuration
func (s *Segmenter) Config() Config {
	return s.config
}

// UpdateConfig merges a partial configuration, leaving buffered audio,
// history and the multiplier untouched.
func (s *Segmenter) UpdateConfig(update ConfigUpdate) Config {
	s.config = s.config.Merge(update)
	s.vad.UpdateThreshold(s.config.SilenceThresholdRMS)
	return s.config
}

// Stats returns segmenter statistics
func (s *Segmenter) Stats() SegmenterStats {
	avg := 0.0
	if s.chunksCreated > 0 {
		avg = s.totalDurationMs / float64(s.chunksCreated)
	}
	return SegmenterStats{
		ChunksCreated:      s.chunksCreated,
		TotalDurationMs:    s.totalDurationMs,
		AvgChunkDurationMs: avg,
		VAD:                s.vad.GetStats(),
	}
}

func (s *Segmenter) bufferedMs() float64 {
	return s.durationMs(s.buffer.Samples())
}

func (s *Segmenter) durationMs(samples int) float64 {
	if s.config.SampleRate <= 0 {
		return 0
	}
	return float64(samples) * 1000 / float64(s.config.SampleRate)
}

func (s *Segmenter) samplesFor(ms int) int {
	return ms * s.config.SampleRate / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
