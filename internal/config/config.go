package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/predetect"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Detector      DetectorConfig      `yaml:"detector"`
	Extractor     ExtractorConfig     `yaml:"extractor"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Session       SessionConfig       `yaml:"session"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// SegmenterConfig contains chunk segmentation thresholds
type SegmenterConfig struct {
	SampleRate                 int     `yaml:"sample_rate"`
	FrameDurationMs            int     `yaml:"frame_duration_ms"`
	MinChunkDurationMs         int     `yaml:"min_chunk_duration_ms"`
	MaxChunkDurationMs         int     `yaml:"max_chunk_duration_ms"`
	SilenceThresholdRMS        float64 `yaml:"silence_threshold_rms"`
	SilenceDurationMs          int     `yaml:"silence_duration_ms"`
	AnalysisWindowMs           int     `yaml:"analysis_window_ms"`
	ContentConfidenceThreshold float64 `yaml:"content_confidence_threshold"`
}

// DetectorConfig contains streaming pre-detector limits
type DetectorConfig struct {
	CheckIntervalMs    int `yaml:"check_interval_ms"`
	BufferSize         int `yaml:"buffer_size"`          // runes
	RecentFragments    int `yaml:"recent_fragments"`
	ActivityDebounceMs int `yaml:"activity_debounce_ms"`
}

// ExtractorConfig contains question extraction settings
type ExtractorConfig struct {
	Locator string `yaml:"locator"` // "pattern" or "none"
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	Timeout         int `yaml:"timeout"`          // seconds
	CleanupInterval int `yaml:"cleanup_interval"` // seconds
	MaxSessions     int `yaml:"max_sessions"`
	MaxInflight     int `yaml:"max_inflight"` // transcriptions per session
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with every section populated
func Default() Config {
	seg := audio.DefaultConfig()
	det := predetect.DefaultConfig()

	return Config{
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Segmenter: SegmenterConfig{
			SampleRate:                 seg.SampleRate,
			FrameDurationMs:            20,
			MinChunkDurationMs:         seg.MinChunkDurationMs,
			MaxChunkDurationMs:         seg.MaxChunkDurationMs,
			SilenceThresholdRMS:        seg.SilenceThresholdRMS,
			SilenceDurationMs:          seg.SilenceDurationMs,
			AnalysisWindowMs:           seg.AnalysisWindowMs,
			ContentConfidenceThreshold: seg.ContentConfidenceThreshold,
		},
		Detector: DetectorConfig{
			CheckIntervalMs:    int(det.CheckInterval / time.Millisecond),
			BufferSize:         det.BufferSize,
			RecentFragments:    det.RecentFragments,
			ActivityDebounceMs: int(det.ActivityDebounce / time.Millisecond),
		},
		Extractor: ExtractorConfig{
			Locator: "pattern",
		},
		Transcription: TranscriptionConfig{
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 10,
		},
		Session: SessionConfig{
			Timeout:         60,
			CleanupInterval: 10,
			MaxSessions:     100,
			MaxInflight:     2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file. Fields missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}

	if err := c.Extractor.Validate(); err != nil {
		return fmt.Errorf("extractor config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates segmenter configuration
func (s *SegmenterConfig) Validate() error {
	if s.SampleRate < 8000 || s.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", s.SampleRate)
	}

	if s.FrameDurationMs < 10 || s.FrameDurationMs > 100 {
		return fmt.Errorf("frame_duration_ms must be between 10 and 100, got %d", s.FrameDurationMs)
	}

	if s.MinChunkDurationMs <= 0 {
		return fmt.Errorf("min_chunk_duration_ms must be positive, got %d", s.MinChunkDurationMs)
	}

	if s.MaxChunkDurationMs <= s.MinChunkDurationMs {
		return fmt.Errorf("max_chunk_duration_ms (%d) must be greater than min_chunk_duration_ms (%d)",
			s.MaxChunkDurationMs, s.MinChunkDurationMs)
	}

	if s.SilenceThresholdRMS <= 0 || s.SilenceThresholdRMS >= 1 {
		return fmt.Errorf("silence_threshold_rms must be between 0 and 1 (exclusive), got %f", s.SilenceThresholdRMS)
	}

	if s.SilenceDurationMs <= 0 {
		return fmt.Errorf("silence_duration_ms must be positive, got %d", s.SilenceDurationMs)
	}

	if s.AnalysisWindowMs < 100 {
		return fmt.Errorf("analysis_window_ms must be at least 100, got %d", s.AnalysisWindowMs)
	}

	if s.ContentConfidenceThreshold < 0 || s.ContentConfidenceThreshold > 1 {
		return fmt.Errorf("content_confidence_threshold must be between 0 and 1, got %f", s.ContentConfidenceThreshold)
	}

	return nil
}

// Validate validates detector configuration
func (d *DetectorConfig) Validate() error {
	if d.CheckIntervalMs < 0 {
		return fmt.Errorf("check_interval_ms cannot be negative, got %d", d.CheckIntervalMs)
	}

	if d.BufferSize < 16 {
		return fmt.Errorf("buffer_size must be at least 16 runes, got %d", d.BufferSize)
	}

	if d.RecentFragments < 1 {
		return fmt.Errorf("recent_fragments must be at least 1, got %d", d.RecentFragments)
	}

	if d.ActivityDebounceMs < 0 {
		return fmt.Errorf("activity_debounce_ms cannot be negative, got %d", d.ActivityDebounceMs)
	}

	return nil
}

// Validate validates extractor configuration
func (e *ExtractorConfig) Validate() error {
	validLocators := map[string]bool{"pattern": true, "none": true}
	if !validLocators[e.Locator] {
		return fmt.Errorf("locator must be 'pattern' or 'none', got '%s'", e.Locator)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", s.CleanupInterval)
	}

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}

	if s.MaxInflight < 1 {
		return fmt.Errorf("max_inflight must be at least 1, got %d", s.MaxInflight)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path
	return nil
}

// ToAudioConfig converts the segmenter section to the segmenter's own type
func (s *SegmenterConfig) ToAudioConfig() audio.Config {
	return audio.Config{
		SampleRate:                 s.SampleRate,
		MinChunkDurationMs:         s.MinChunkDurationMs,
		MaxChunkDurationMs:         s.MaxChunkDurationMs,
		SilenceThresholdRMS:        s.SilenceThresholdRMS,
		SilenceDurationMs:          s.SilenceDurationMs,
		AnalysisWindowMs:           s.AnalysisWindowMs,
		ContentConfidenceThreshold: s.ContentConfidenceThreshold,
	}
}

// FrameSamples returns the number of samples in one frame
func (s *SegmenterConfig) FrameSamples() int {
	return s.SampleRate * s.FrameDurationMs / 1000
}

// ToDetectorConfig converts the detector section to the detector's own type
func (d *DetectorConfig) ToDetectorConfig() predetect.Config {
	return predetect.Config{
		CheckInterval:    time.Duration(d.CheckIntervalMs) * time.Millisecond,
		BufferSize:       d.BufferSize,
		RecentFragments:  d.RecentFragments,
		ActivityDebounce: time.Duration(d.ActivityDebounceMs) * time.Millisecond,
	}
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetCleanupInterval returns the session sweep interval as a time.Duration
func (s *SessionConfig) GetCleanupInterval() time.Duration {
	return time.Duration(s.CleanupInterval) * time.Second
}
