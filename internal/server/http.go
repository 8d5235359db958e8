package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/config"
	"github.com/skypro1111/live-question-service/internal/metrics"
	"github.com/skypro1111/live-question-service/internal/question"
	"github.com/skypro1111/live-question-service/internal/stream"
	"github.com/skypro1111/live-question-service/internal/transcription"
)

const (
	maxAudioBodyBytes = 4 << 20
	maxJSONBodyBytes  = 1 << 20
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server *http.Server
	logger *slog.Logger
	deps   Dependencies

	startTime time.Time
}

// Dependencies are the components exposed through the API. Transcription and
// Questions are optional.
type Dependencies struct {
	Config        *config.Config
	Sessions      *stream.Manager
	Extractor     *question.Extractor
	Transcription *transcription.Client
	Questions     *stream.RecentQuestions
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
}

// fragmentRequest is the body of POST /sessions/{id}/fragments
type fragmentRequest struct {
	Text string `json:"text"`
}

// audioResponse is returned by POST /sessions/{id}/audio
type audioResponse struct {
	Frames    int              `json:"frames"`
	Chunks    int              `json:"chunks"`
	Decisions []audio.Decision `json:"decisions,omitempty"`
	State     audio.State      `json:"state"`
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, deps Dependencies) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		deps:      deps,
		startTime: time.Now(),
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed API handler
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	h.setupRoutes(mux)
	return mux
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoints
	mux.HandleFunc("GET /config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("PATCH /config", h.withMetrics("/config", h.handleConfigUpdate))

	// Session endpoints
	mux.HandleFunc("GET /sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("POST /sessions", h.withMetrics("/sessions", h.handleCreateSession))
	mux.HandleFunc("GET /sessions/{id}", h.withMetrics("/sessions/{id}", h.handleSessionDetail))
	mux.HandleFunc("DELETE /sessions/{id}", h.withMetrics("/sessions/{id}", h.handleRemoveSession))
	mux.HandleFunc("POST /sessions/{id}/audio", h.withMetrics("/sessions/{id}/audio", h.handleAudio))
	mux.HandleFunc("POST /sessions/{id}/fragments", h.withMetrics("/sessions/{id}/fragments", h.handleFragment))

	// Question endpoints
	mux.HandleFunc("POST /questions/extract", h.withMetrics("/questions/extract", h.handleExtract))
	mux.HandleFunc("GET /questions", h.withMetrics("/questions", h.handleQuestions))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("GET /{$}", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		if h.deps.Metrics == nil {
			return
		}

		duration := time.Since(startTime).Seconds()
		h.deps.Metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.deps.Metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]any{
		"session_manager": map[string]any{
			"status":          "running",
			"active_sessions": h.deps.Sessions.ActiveSessionCount(),
		},
	}

	if h.deps.Transcription != nil {
		stats := h.deps.Transcription.Stats()
		components["transcription"] = map[string]any{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	} else {
		components["transcription"] = map[string]any{"status": "disabled"}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "live-question-service",
			"version": "1.0.0",
		},
		"components": components,
	})
}

// handleConfig implements GET /config
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.deps.Config

	// API key is intentionally omitted
	writeJSON(w, http.StatusOK, map[string]any{
		"segmenter": h.deps.Sessions.SegmenterConfig(),
		"detector": map[string]any{
			"check_interval_ms":    cfg.Detector.CheckIntervalMs,
			"buffer_size":          cfg.Detector.BufferSize,
			"recent_fragments":     cfg.Detector.RecentFragments,
			"activity_debounce_ms": cfg.Detector.ActivityDebounceMs,
		},
		"extractor": map[string]any{
			"locator": cfg.Extractor.Locator,
		},
		"transcription": map[string]any{
			"enabled":        cfg.Transcription.Enabled,
			"endpoint":       cfg.Transcription.Endpoint,
			"language":       cfg.Transcription.Language,
			"timeout":        cfg.Transcription.Timeout,
			"max_retries":    cfg.Transcription.MaxRetries,
			"max_concurrent": cfg.Transcription.MaxConcurrent,
		},
		"session": map[string]any{
			"timeout":          cfg.Session.Timeout,
			"cleanup_interval": cfg.Session.CleanupInterval,
			"max_sessions":     cfg.Session.MaxSessions,
			"max_inflight":     cfg.Session.MaxInflight,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
	})
}

// handleConfigUpdate implements PATCH /config with a partial segmenter update
func (h *HTTPServer) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var update audio.ConfigUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if update.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no configuration fields provided")
		return
	}

	// Validate the merged result before applying it anywhere
	candidate := h.deps.Sessions.SegmenterConfig().Merge(update)
	section := config.SegmenterConfig{
		SampleRate:                 candidate.SampleRate,
		FrameDurationMs:            h.deps.Config.Segmenter.FrameDurationMs,
		MinChunkDurationMs:         candidate.MinChunkDurationMs,
		MaxChunkDurationMs:         candidate.MaxChunkDurationMs,
		SilenceThresholdRMS:        candidate.SilenceThresholdRMS,
		SilenceDurationMs:          candidate.SilenceDurationMs,
		AnalysisWindowMs:           candidate.AnalysisWindowMs,
		ContentConfidenceThreshold: candidate.ContentConfidenceThreshold,
	}
	if err := section.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	merged := h.deps.Sessions.UpdateSegmenterConfig(update)
	writeJSON(w, http.StatusOK, merged)
}

// handleSessions implements GET /sessions
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.deps.Sessions.AllSessions()
	infos := make([]stream.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	})
}

// handleCreateSession implements POST /sessions?id=...
func (h *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.deps.Sessions.CreateSession(r.URL.Query().Get("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, stream.ErrTooManySessions) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session.Info())
}

// handleSessionDetail implements GET /sessions/{id}
func (h *HTTPServer) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Info())
}

// handleRemoveSession implements DELETE /sessions/{id}
func (h *HTTPServer) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Sessions.RemoveSession(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAudio implements POST /sessions/{id}/audio. The body is mono 16-bit
// little-endian PCM at the current segmenter sample rate, split into frames.
func (h *HTTPServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	frameSamples := h.deps.Sessions.SegmenterConfig().SampleRate * h.deps.Config.Segmenter.FrameDurationMs / 1000
	frames, err := audio.FramesFromPCM16(raw, frameSamples)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := audioResponse{Frames: len(frames)}
	for _, frame := range frames {
		decision := session.AddFrame(frame)
		if decision.ShouldChunk {
			response.Chunks++
			response.Decisions = append(response.Decisions, decision)
		}
	}
	response.State = session.Info().State

	writeJSON(w, http.StatusOK, response)
}

// handleFragment implements POST /sessions/{id}/fragments
func (h *HTTPServer) handleFragment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req fragmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, session.AddFragment(req.Text))
}

// handleExtract implements POST /questions/extract
func (h *HTTPServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var result question.TranscriptionResult
	if err := decodeJSON(r, &result); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	questions := h.deps.Extractor.ExtractQuestions(r.Context(), result)
	if questions == nil {
		questions = []question.Question{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transcription_id": result.ID,
		"questions":        questions,
	})
}

// handleQuestions implements GET /questions
func (h *HTTPServer) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var questions []question.Question
	if h.deps.Questions != nil {
		questions = h.deps.Questions.Questions()
	}
	if questions == nil {
		questions = []question.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_questions": len(questions),
		"questions":       questions,
	})
}

// session resolves the {id} path value, writing 404 when absent
func (h *HTTPServer) session(w http.ResponseWriter, r *http.Request) (*stream.Session, bool) {
	session, exists := h.deps.Sessions.GetSession(r.PathValue("id"))
	if !exists {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Live Question Service",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"GET /":                         "API documentation",
			"GET /health":                   "Service health check",
			"GET /config":                   "Get service configuration",
			"PATCH /config":                 "Update segmenter thresholds",
			"GET /sessions":                 "List all active sessions",
			"POST /sessions":                "Create a session (optional ?id=)",
			"GET /sessions/{id}":            "Get detailed session information",
			"DELETE /sessions/{id}":         "Flush and remove a session",
			"POST /sessions/{id}/audio":     "Append 16-bit PCM audio",
			"POST /sessions/{id}/fragments": "Feed a partial transcript fragment",
			"POST /questions/extract":       "Extract questions from a transcript",
			"GET /questions":                "Recently detected questions",
			"GET /metrics":                  "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
