// Command mocktranscriber serves a development transcription endpoint that
// accepts the service's multipart uploads and answers with canned text.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/transcription"
)

var cannedTexts = []string{
	"はい、えーっと、どのような経験がありますか？",
	"ありがとうございます。それから、なぜ転職したのですか？",
	"今日はいい天気ですね。",
	"Um, so, what is the deadline?",
	"The build passed on the second try.",
}

type handler struct {
	logger *slog.Logger
	delay  time.Duration
	next   atomic.Uint64
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		http.Error(w, "Invalid WAV file: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("Transcription request received",
		slog.String("chunk_id", r.FormValue("chunk_id")),
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(data)),
		slog.Int("sample_rate", int(info.SampleRate)),
		slog.Float64("duration_seconds", info.Duration),
		slog.String("language", r.FormValue("language")),
	)

	// Simulate processing time
	time.Sleep(h.delay)

	text := cannedTexts[(h.next.Add(1)-1)%uint64(len(cannedTexts))]
	response := transcription.Response{
		ChunkID:    r.FormValue("chunk_id"),
		Text:       text,
		Confidence: 0.95,
		Language:   r.FormValue("language"),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to write response", slog.String("error", err.Error()))
		return
	}

	h.logger.Info("Transcription response sent", slog.String("text", text))
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	mux := http.NewServeMux()
	mux.Handle("/transcribe", &handler{logger: logger, delay: *delay})

	logger.Info("Mock transcription server starting",
		slog.String("address", *addr),
		slog.String("endpoint", "/transcribe"),
	)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
