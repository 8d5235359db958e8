package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/config"
	"github.com/skypro1111/live-question-service/internal/metrics"
	"github.com/skypro1111/live-question-service/internal/question"
	"github.com/skypro1111/live-question-service/internal/server"
	"github.com/skypro1111/live-question-service/internal/stream"
	"github.com/skypro1111/live-question-service/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-question-service"
	serviceVersion    = "1.0.0"
	recentQuestions   = 200
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	replayPath := flag.String("replay", "", "Replay a mono 16-bit WAV file through one session and exit")
	realtime := flag.Bool("realtime", false, "Pace replayed frames at their natural rate")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Segmenter.SampleRate),
		slog.Int("frame_duration_ms", cfg.Segmenter.FrameDurationMs),
		slog.Int("min_chunk_duration_ms", cfg.Segmenter.MinChunkDurationMs),
		slog.Int("max_chunk_duration_ms", cfg.Segmenter.MaxChunkDurationMs),
		slog.Float64("silence_threshold_rms", cfg.Segmenter.SilenceThresholdRMS),
		slog.String("extractor_locator", cfg.Extractor.Locator),
		slog.Bool("transcription_enabled", cfg.Transcription.Enabled),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	// Initialize question extractor
	extractorOpts := []question.Option{
		question.WithLogger(logger),
		question.WithObserver(appMetrics),
	}
	if cfg.Extractor.Locator == "pattern" {
		extractorOpts = append(extractorOpts, question.WithLocator(question.PatternLocator{}))
	}
	extractor := question.NewExtractor(extractorOpts...)

	// Initialize transcription client (if enabled)
	var transcriber *transcription.Client
	if cfg.Transcription.Enabled {
		transcriber, err = transcription.NewClient(transcription.Config{
			Endpoint:      cfg.Transcription.Endpoint,
			APIKey:        cfg.Transcription.APIKey,
			Language:      cfg.Transcription.Language,
			Timeout:       cfg.Transcription.GetTimeoutDuration(),
			MaxRetries:    cfg.Transcription.MaxRetries,
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
		}, transcription.WithLogger(logger), transcription.WithRecorder(appMetrics))
		if err != nil {
			logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Transcription client initialized",
			slog.String("endpoint", cfg.Transcription.Endpoint),
		)
	}

	// Initialize session manager
	questions := stream.NewRecentQuestions(recentQuestions, stream.NewLogSink(logger))
	managerOpts := []stream.Option{
		stream.WithExtractor(extractor),
		stream.WithSink(questions),
		stream.WithRecorder(appMetrics),
		stream.WithSegmenterObserver(appMetrics),
	}
	if transcriber != nil {
		managerOpts = append(managerOpts, stream.WithTranscriber(transcriber))
	}
	sessions := stream.NewManager(logger, stream.Config{
		Segmenter:            cfg.Segmenter.ToAudioConfig(),
		Detector:             cfg.Detector.ToDetectorConfig(),
		Timeout:              cfg.Session.GetTimeoutDuration(),
		CleanupInterval:      cfg.Session.GetCleanupInterval(),
		MaxSessions:          cfg.Session.MaxSessions,
		MaxInflight:          cfg.Session.MaxInflight,
		TranscriptionTimeout: cfg.Transcription.GetTimeoutDuration(),
	}, managerOpts...)
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Session.GetTimeoutDuration()),
		slog.Int("max_sessions", cfg.Session.MaxSessions),
	)

	if *replayPath != "" {
		err := replay(logger, sessions, *replayPath, cfg.Segmenter, *realtime)
		shutdown(logger, sessions, transcriber)
		if err != nil {
			logger.Error("Replay failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, server.Dependencies{
			Config:        cfg,
			Sessions:      sessions,
			Extractor:     extractor,
			Transcription: transcriber,
			Questions:     questions,
			Metrics:       appMetrics,
			Gatherer:      registry,
		})
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
		shutdownCancel()
	}

	shutdown(logger, sessions, transcriber)
	logger.Info("Service stopped")
}

// shutdown flushes all sessions and drains the transcription client
func shutdown(logger *slog.Logger, sessions *stream.Manager, transcriber *transcription.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions.Stop(ctx)

	if transcriber == nil {
		return
	}
	if err := transcriber.Close(ctx); err != nil {
		logger.Warn("Error closing transcription client", slog.String("error", err.Error()))
	}

	stats := transcriber.Stats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("successful_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)
}

// replay feeds a WAV file through a dedicated session frame by frame
func replay(logger *slog.Logger, sessions *stream.Manager, path string, seg config.SegmenterConfig, realtime bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read replay file: %w", err)
	}

	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("failed to decode replay file: %w", err)
	}
	if sampleRate != seg.SampleRate {
		return fmt.Errorf("replay file sample rate %d does not match configured %d", sampleRate, seg.SampleRate)
	}

	session, err := sessions.CreateSession("replay")
	if err != nil {
		return err
	}

	frames := audio.SplitFrames(samples, seg.FrameSamples())
	frameDuration := time.Duration(seg.FrameDurationMs) * time.Millisecond

	logger.Info("Replaying audio",
		slog.String("path", path),
		slog.Int("frames", len(frames)),
		slog.Duration("duration", time.Duration(len(frames))*frameDuration),
	)

	chunks := 0
	for _, frame := range frames {
		if decision := session.AddFrame(frame); decision.ShouldChunk {
			chunks++
			logger.Info("Chunk decision",
				slog.String("reason", string(decision.Reason)),
				slog.Float64("confidence", decision.Confidence),
			)
		}
		if realtime {
			time.Sleep(frameDuration)
		}
	}

	info := session.Info()
	logger.Info("Replay finished",
		slog.Int("chunk_decisions", chunks),
		slog.Uint64("frames", info.FramesAppended),
		slog.Float64("adaptive_multiplier", info.State.AdaptiveMultiplier),
	)
	return nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
