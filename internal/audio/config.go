package audio

// Config holds the segmenter thresholds. Values are not validated here;
// range checks belong to the caller (see internal/config).
type Config struct {
	SampleRate                 int     `json:"sample_rate"`
	MinChunkDurationMs         int     `json:"min_chunk_duration_ms"`
	MaxChunkDurationMs         int     `json:"max_chunk_duration_ms"`
	SilenceThresholdRMS        float64 `json:"silence_threshold_rms"`
	SilenceDurationMs          int     `json:"silence_duration_ms"`
	AnalysisWindowMs           int     `json:"analysis_window_ms"`
	ContentConfidenceThreshold float64 `json:"content_confidence_threshold"`
}

// ConfigUpdate is a partial configuration; nil fields are left untouched
type ConfigUpdate struct {
	SampleRate                 *int     `json:"sample_rate,omitempty"`
	MinChunkDurationMs         *int     `json:"min_chunk_duration_ms,omitempty"`
	MaxChunkDurationMs         *int     `json:"max_chunk_duration_ms,omitempty"`
	SilenceThresholdRMS        *float64 `json:"silence_threshold_rms,omitempty"`
	SilenceDurationMs          *int     `json:"silence_duration_ms,omitempty"`
	AnalysisWindowMs           *int     `json:"analysis_window_ms,omitempty"`
	ContentConfidenceThreshold *float64 `json:"content_confidence_threshold,omitempty"`
}

// DefaultConfig returns thresholds tuned for 16kHz conversational speech
func DefaultConfig() Config {
	return Config{
		SampleRate:                 16000,
		MinChunkDurationMs:         1500,
		MaxChunkDurationMs:         8000,
		SilenceThresholdRMS:        0.01,
		SilenceDurationMs:          800,
		AnalysisWindowMs:           1000,
		ContentConfidenceThreshold: 0.7,
	}
}

// Merge returns c with every non-nil field of u applied
func (c Config) Merge(u ConfigUpdate) Config {
	if u.SampleRate != nil {
		c.SampleRate = *u.SampleRate
	}
	if u.MinChunkDurationMs != nil {
		c.MinChunkDurationMs = *u.MinChunkDurationMs
	}
	if u.MaxChunkDurationMs != nil {
		c.MaxChunkDurationMs = *u.MaxChunkDurationMs
	}
	if u.SilenceThresholdRMS != nil {
		c.SilenceThresholdRMS = *u.SilenceThresholdRMS
	}
	if u.SilenceDurationMs != nil {
		c.SilenceDurationMs = *u.SilenceDurationMs
	}
	if u.AnalysisWindowMs != nil {
		c.AnalysisWindowMs = *u.AnalysisWindowMs
	}
	if u.ContentConfidenceThreshold != nil {
		c.ContentConfidenceThreshold = *u.ContentConfidenceThreshold
	}
	return c
}

// IsEmpty reports whether the update carries no fields
func (u ConfigUpdate) IsEmpty() bool {
	return u == ConfigUpdate{}
}
