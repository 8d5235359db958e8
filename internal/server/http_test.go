package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/config"
	"github.com/skypro1111/live-question-service/internal/metrics"
	"github.com/skypro1111/live-question-service/internal/question"
	"github.com/skypro1111/live-question-service/internal/stream"
)

type testEnv struct {
	handler  http.Handler
	sessions *stream.Manager
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	extractor := question.NewExtractor(question.WithLogger(logger), question.WithObserver(m))
	recent := stream.NewRecentQuestions(10, nil)
	sessions := stream.NewManager(logger, stream.Config{
		Segmenter:   cfg.Segmenter.ToAudioConfig(),
		Detector:    cfg.Detector.ToDetectorConfig(),
		MaxSessions: 2,
		MaxInflight: 1,
	}, stream.WithExtractor(extractor), stream.WithSink(recent), stream.WithRecorder(m))
	t.Cleanup(func() { sessions.Stop(context.Background()) })

	srv := NewHTTPServer(cfg.HTTP, logger, Dependencies{
		Config:    &cfg,
		Sessions:  sessions,
		Extractor: extractor,
		Questions: recent,
		Metrics:   m,
		Gatherer:  reg,
	})

	return &testEnv{handler: srv.Handler(), sessions: sessions, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("Unexpected health body: %v", body)
	}

	if got := testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Errorf("Expected request to be recorded, got %v", got)
	}
}

func TestRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"root", http.MethodGet, "/", "", http.StatusOK},
		{"unknown path", http.MethodGet, "/unknown", "", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/health", "", http.StatusMethodNotAllowed},
		{"config", http.MethodGet, "/config", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"missing session", http.MethodGet, "/sessions/nope", "", http.StatusNotFound},
		{"remove missing session", http.MethodDelete, "/sessions/nope", "", http.StatusNotFound},
		{"empty config patch", http.MethodPatch, "/config", "{}", http.StatusBadRequest},
		{"unknown config field", http.MethodPatch, "/config", `{"bogus": 1}`, http.StatusBadRequest},
		{"invalid config patch", http.MethodPatch, "/config", `{"max_chunk_duration_ms": 100}`, http.StatusUnprocessableEntity},
		{"malformed extract body", http.MethodPost, "/questions/extract", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, strings.NewReader(tt.body))
			if rec.Code != tt.want {
				t.Errorf("%s %s: expected %d, got %d (%s)", tt.method, tt.path, tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConfigPatch(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.CreateSession("live")

	rec := env.do(t, http.MethodPatch, "/config", strings.NewReader(`{"silence_duration_ms": 600}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var merged audio.Config
	decodeBody(t, rec, &merged)
	if merged.SilenceDurationMs != 600 || merged.MaxChunkDurationMs != 8000 {
		t.Errorf("Unexpected merged config: %+v", merged)
	}
	if got := env.sessions.SegmenterConfig().SilenceDurationMs; got != 600 {
		t.Errorf("Expected manager config to be updated, got %d", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sessions?id=room-1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// 50 frames of 20ms tone at 16kHz
	var pcm bytes.Buffer
	for i := 0; i < 50*320; i++ {
		v := int16(3000)
		if i%2 == 1 {
			v = -3000
		}
		binary.Write(&pcm, binary.LittleEndian, v)
	}

	rec = env.do(t, http.MethodPost, "/sessions/room-1/audio", &pcm)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var audioResp audioResponse
	decodeBody(t, rec, &audioResp)
	if audioResp.Frames != 50 || audioResp.Chunks != 0 {
		t.Errorf("Unexpected audio response: %+v", audioResp)
	}
	if audioResp.State.BufferedFrameCount != 50 {
		t.Errorf("Expected 50 buffered frames, got %+v", audioResp.State)
	}

	rec = env.do(t, http.MethodPost, "/sessions/room-1/audio", bytes.NewReader([]byte{1, 2, 3}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for odd-length PCM, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/sessions/room-1", nil)
	var info stream.SessionInfo
	decodeBody(t, rec, &info)
	if info.ID != "room-1" || info.FramesAppended != 50 {
		t.Errorf("Unexpected session info: %+v", info)
	}

	rec = env.do(t, http.MethodGet, "/sessions", nil)
	var list struct {
		TotalSessions int `json:"total_sessions"`
	}
	decodeBody(t, rec, &list)
	if list.TotalSessions != 1 {
		t.Errorf("Expected 1 session, got %d", list.TotalSessions)
	}

	rec = env.do(t, http.MethodDelete, "/sessions/room-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if env.sessions.ActiveSessionCount() != 0 {
		t.Errorf("Expected session to be removed")
	}
}

func TestSessionLimit(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"a", "b"} {
		if rec := env.do(t, http.MethodPost, "/sessions?id="+id, nil); rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201 for %s, got %d", id, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodPost, "/sessions?id=c", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 past the session limit, got %d", rec.Code)
	}
}

func TestFragment(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.CreateSession("room-1")

	rec := env.do(t, http.MethodPost, "/sessions/room-1/fragments", strings.NewReader(`{"text": "how does it work"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var signals stream.FragmentSignals
	decodeBody(t, rec, &signals)
	if !signals.QuestionLikely || !signals.RecentActivity {
		t.Errorf("Expected both signals, got %+v", signals)
	}
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t)

	body := `{"id": "t-1", "text": "Um, so, what is the deadline?", "confidence": 0.8}`
	rec := env.do(t, http.MethodPost, "/questions/extract", strings.NewReader(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TranscriptionID string              `json:"transcription_id"`
		Questions       []question.Question `json:"questions"`
	}
	decodeBody(t, rec, &resp)
	if resp.TranscriptionID != "t-1" || len(resp.Questions) != 1 {
		t.Fatalf("Unexpected response: %+v", resp)
	}
	if resp.Questions[0].RefinedText != "What is the deadline?" {
		t.Errorf("Unexpected refined text %q", resp.Questions[0].RefinedText)
	}
	if resp.Questions[0].Timestamp.IsZero() {
		t.Error("Expected a timestamp to be assigned")
	}

	if got := testutil.ToFloat64(env.metrics.QuestionsTotal); got != 1 {
		t.Errorf("Expected extraction to be observed, got %v", got)
	}

	rec = env.do(t, http.MethodPost, "/questions/extract", strings.NewReader(`{"text": "The build passed."}`))
	decodeBody(t, rec, &resp)
	if resp.Questions == nil || len(resp.Questions) != 0 {
		t.Errorf("Expected an empty question list, got %+v", resp.Questions)
	}
}

func TestQuestionsListing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/questions", nil)
	var resp struct {
		TotalQuestions int                 `json:"total_questions"`
		Questions      []question.Question `json:"questions"`
	}
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.TotalQuestions != 0 {
		t.Errorf("Expected empty listing, got %d %+v", rec.Code, resp)
	}
	if resp.Questions == nil {
		t.Errorf("Expected an empty questions array, got %s", rec.Body.String())
	}
}
