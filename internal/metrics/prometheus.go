package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/question"
)

// Metrics contains all Prometheus metrics for the live question service
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Segmenter metrics
	FramesProcessed    prometheus.Counter
	Decisions          *prometheus.CounterVec
	ChunksFinalized    prometheus.Counter
	ChunkDuration      prometheus.Histogram
	ChunkWords         prometheus.Histogram
	AdaptiveMultiplier prometheus.Gauge

	// Detection and extraction metrics
	EarlySignals        *prometheus.CounterVec
	QuestionsTotal      prometheus.Counter
	RefinementFallbacks prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lqs_active_sessions",
			Help: "Current number of active audio sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lqs_session_duration_seconds",
			Help:    "Duration of audio sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// Segmenter metrics
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_frames_processed_total",
			Help: "Total number of audio frames appended to segmenters",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lqs_chunk_decisions_total",
			Help: "Total number of positive chunking decisions by reason",
		}, []string{"reason"}),
		ChunksFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_chunks_finalized_total",
			Help: "Total number of audio chunks finalized",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lqs_chunk_duration_seconds",
			Help:    "Duration of finalized audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		ChunkWords: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lqs_chunk_estimated_words",
			Help:    "Estimated word count of finalized chunks",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		AdaptiveMultiplier: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lqs_adaptive_multiplier",
			Help: "Adaptive threshold multiplier of the most recently finalized chunk",
		}),

		// Detection and extraction metrics
		EarlySignals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lqs_early_signals_total",
			Help: "Total number of early question signals by kind",
		}, []string{"signal"}),
		QuestionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_questions_extracted_total",
			Help: "Total number of questions extracted from transcripts",
		}),
		RefinementFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_refinement_fallbacks_total",
			Help: "Total number of candidates that kept their unrefined text",
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lqs_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "lqs_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lqs_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lqs_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lqs_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// DecisionMade implements audio.Observer
func (m *Metrics) DecisionMade(decision audio.Decision, _ audio.State) {
	m.FramesProcessed.Inc()
	if decision.ShouldChunk {
		m.Decisions.WithLabelValues(string(decision.Reason)).Inc()
	}
}

// ChunkFinalized implements audio.Observer
func (m *Metrics) ChunkFinalized(chunk *audio.Chunk, state audio.State) {
	m.ChunksFinalized.Inc()
	m.ChunkDuration.Observe(chunk.DurationMs / 1000)
	m.ChunkWords.Observe(float64(chunk.EstimatedWordCount))
	m.AdaptiveMultiplier.Set(state.AdaptiveMultiplier)
}

// QuestionsExtracted implements question.Observer
func (m *Metrics) QuestionsExtracted(questions []question.Question) {
	m.QuestionsTotal.Add(float64(len(questions)))
}

// RefinementFallback implements question.Observer
func (m *Metrics) RefinementFallback() {
	m.RefinementFallbacks.Inc()
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed increments the sessions destroyed counter and records duration
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordEarlySignal counts an early signal of the given kind
func (m *Metrics) RecordEarlySignal(signal string) {
	m.EarlySignals.WithLabelValues(signal).Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
