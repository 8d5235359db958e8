package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skypro1111/live-question-service/internal/audio"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:     "invalid http port",
			mutate:   func(c *Config) { c.HTTP.Port = 70000 },
			errorMsg: "http port must be between 1 and 65535",
		},
		{
			name:   "http disabled skips port check",
			mutate: func(c *Config) { c.HTTP.Enabled = false; c.HTTP.Port = 0 },
		},
		{
			name:     "sample rate out of range",
			mutate:   func(c *Config) { c.Segmenter.SampleRate = 4000 },
			errorMsg: "sample_rate must be between 8000 and 48000",
		},
		{
			name: "max not above min",
			mutate: func(c *Config) {
				c.Segmenter.MinChunkDurationMs = 3000
				c.Segmenter.MaxChunkDurationMs = 2000
			},
			errorMsg: "must be greater than min_chunk_duration_ms",
		},
		{
			name:     "silence threshold out of range",
			mutate:   func(c *Config) { c.Segmenter.SilenceThresholdRMS = 1.5 },
			errorMsg: "silence_threshold_rms must be between 0 and 1",
		},
		{
			name:     "confidence threshold out of range",
			mutate:   func(c *Config) { c.Segmenter.ContentConfidenceThreshold = -0.1 },
			errorMsg: "content_confidence_threshold must be between 0 and 1",
		},
		{
			name:     "detector buffer too small",
			mutate:   func(c *Config) { c.Detector.BufferSize = 4 },
			errorMsg: "buffer_size must be at least 16",
		},
		{
			name:     "unknown locator",
			mutate:   func(c *Config) { c.Extractor.Locator = "llm" },
			errorMsg: "locator must be 'pattern' or 'none'",
		},
		{
			name:     "transcription enabled without endpoint",
			mutate:   func(c *Config) { c.Transcription.Enabled = true },
			errorMsg: "endpoint cannot be empty",
		},
		{
			name:     "session without inflight slots",
			mutate:   func(c *Config) { c.Session.MaxInflight = 0 },
			errorMsg: "max_inflight must be at least 1",
		},
		{
			name:     "unknown log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(&config)
			err := config.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing '%s', got none", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name       string
		configYAML string
		errorMsg   string
		check      func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
http:
  port: 9090
  address: "127.0.0.1"
  enabled: true
segmenter:
  sample_rate: 16000
  frame_duration_ms: 20
  min_chunk_duration_ms: 1200
  max_chunk_duration_ms: 6000
  silence_threshold_rms: 0.02
  silence_duration_ms: 700
  analysis_window_ms: 1000
  content_confidence_threshold: 0.75
transcription:
  enabled: true
  endpoint: "https://api.example.com/transcribe"
  api_key: "test-key"
  timeout: 30
  max_retries: 3
  max_concurrent: 4
logging:
  level: "debug"
  format: "text"
  output: "stderr"
`,
			check: func(t *testing.T, c *Config) {
				if c.HTTP.Port != 9090 {
					t.Errorf("Expected port 9090, got %d", c.HTTP.Port)
				}
				if c.Segmenter.MinChunkDurationMs != 1200 {
					t.Errorf("Expected min chunk 1200, got %d", c.Segmenter.MinChunkDurationMs)
				}
				if c.Transcription.MaxConcurrent != 4 {
					t.Errorf("Expected max_concurrent 4, got %d", c.Transcription.MaxConcurrent)
				}
			},
		},
		{
			name: "partial file keeps defaults",
			configYAML: `
logging:
  level: "warn"
`,
			check: func(t *testing.T, c *Config) {
				want := Default()
				want.Logging.Level = "warn"
				if diff := cmp.Diff(want, *c); diff != "" {
					t.Errorf("Config mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
segmenter:
  sample_rate: invalid_number
`,
			errorMsg: "failed to parse",
		},
		{
			name: "validation failure",
			configYAML: `
http:
  enabled: true
  address: ""
`,
			errorMsg: "http address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			tt.check(t, config)
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestConversions(t *testing.T) {
	config := Default()

	if diff := cmp.Diff(audio.DefaultConfig(), config.Segmenter.ToAudioConfig()); diff != "" {
		t.Errorf("Default segmenter config mismatch (-want +got):\n%s", diff)
	}

	if got := config.Segmenter.FrameSamples(); got != 320 {
		t.Errorf("Expected 320 samples per 20ms frame at 16kHz, got %d", got)
	}

	det := config.Detector.ToDetectorConfig()
	if det.CheckInterval != 200*time.Millisecond {
		t.Errorf("Expected 200ms check interval, got %v", det.CheckInterval)
	}
	if det.ActivityDebounce != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s debounce, got %v", det.ActivityDebounce)
	}
}

func TestDurationHelpers(t *testing.T) {
	transcription := TranscriptionConfig{Timeout: 30}
	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}

	session := SessionConfig{Timeout: 60, CleanupInterval: 10}
	if session.GetTimeoutDuration() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", session.GetTimeoutDuration())
	}
	if session.GetCleanupInterval() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", session.GetCleanupInterval())
	}
}
