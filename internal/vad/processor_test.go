package vad

import (
	"testing"
	"time"
)

func TestProcessorClassification(t *testing.T) {
	processor := NewProcessor(0.01)

	tests := []struct {
		name        string
		samples     []float32
		expectVoice bool
	}{
		{name: "silence", samples: make([]float32, 320), expectVoice: false},
		{name: "empty", samples: nil, expectVoice: false},
		{name: "low energy", samples: constantSamples(320, 0.001), expectVoice: false},
		{name: "speech level", samples: constantSamples(320, 0.2), expectVoice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := processor.Process(tt.samples)
			if result.HasVoice != tt.expectVoice {
				t.Errorf("Expected hasVoice=%v, got %v (rms=%f)", tt.expectVoice, result.HasVoice, result.RMS)
			}
			if result.Confidence < 0 || result.Confidence > 1 {
				t.Errorf("Invalid confidence: %f", result.Confidence)
			}
		})
	}
}

func TestProcessorStats(t *testing.T) {
	processor := NewProcessor(0.05)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	processor.now = func() time.Time { return fixed }

	voice := constantSamples(160, 0.3)
	silence := make([]float32, 160)

	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			processor.Process(voice)
		} else {
			processor.Process(silence)
		}
	}

	stats := processor.GetStats()
	if stats.TotalFrames != 10 {
		t.Errorf("Expected 10 frames, got %d", stats.TotalFrames)
	}
	if stats.VoiceFrames != 5 {
		t.Errorf("Expected 5 voice frames, got %d", stats.VoiceFrames)
	}
	if stats.VoicePercentage != 50 {
		t.Errorf("Expected 50%% voice, got %f", stats.VoicePercentage)
	}
	if !stats.LastProcessed.Equal(fixed) {
		t.Errorf("Expected last processed %v, got %v", fixed, stats.LastProcessed)
	}

	processor.Reset()
	stats = processor.GetStats()
	if stats.TotalFrames != 0 || stats.VoiceFrames != 0 {
		t.Errorf("Expected stats to be cleared after reset, got %+v", stats)
	}
}

func TestProcessorUpdateThreshold(t *testing.T) {
	processor := NewProcessor(0.01)
	samples := constantSamples(160, 0.1)

	if !processor.Process(samples).HasVoice {
		t.Fatal("Expected voice below initial threshold")
	}

	processor.UpdateThreshold(0.5)
	if processor.Threshold() != 0.5 {
		t.Errorf("Expected threshold 0.5, got %f", processor.Threshold())
	}
	if processor.Process(samples).HasVoice {
		t.Error("Expected silence after raising threshold")
	}
}
