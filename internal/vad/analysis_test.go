package vad

import (
	"math"
	"testing"
)

func constantSamples(n int, amplitude float32) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: make([]float32, 160), want: 0},
		{name: "constant", samples: constantSamples(160, 0.5), want: 0.5},
		{name: "alternating", samples: []float32{0.25, -0.25, 0.25, -0.25}, want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RMS() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSubFrameEnergies(t *testing.T) {
	samples := constantSamples(10, 0.9) // partial, dropped
	samples = append(samples, constantSamples(30, 0.1)...)
	samples = append(samples, constantSamples(30, 0.3)...)

	energies := SubFrameEnergies(samples, 30)
	if len(energies) != 2 {
		t.Fatalf("Expected 2 sub-frames, got %d", len(energies))
	}
	if math.Abs(energies[0]-0.1) > 1e-6 || math.Abs(energies[1]-0.3) > 1e-6 {
		t.Errorf("Unexpected energies: %v", energies)
	}

	if got := SubFrameEnergies(samples[:10], 30); got != nil {
		t.Errorf("Expected nil energies for short window, got %v", got)
	}
}

func TestSubFrameSize(t *testing.T) {
	if got := SubFrameSize(16000); got != 480 {
		t.Errorf("Expected 480 samples at 16kHz, got %d", got)
	}
	if got := SubFrameSize(10); got != 1 {
		t.Errorf("Expected minimum sub-frame size 1, got %d", got)
	}
}

func TestSpeechDensity(t *testing.T) {
	energies := []float64{0, 0.005, 0.02, 0.5}
	if got := SpeechDensity(energies, 0.01); got != 0.5 {
		t.Errorf("Expected density 0.5, got %f", got)
	}
	if got := SpeechDensity(nil, 0.01); got != 0 {
		t.Errorf("Expected density 0 for empty profile, got %f", got)
	}
}

func TestEnergyVariance(t *testing.T) {
	if got := EnergyVariance([]float64{0.4, 0.4, 0.4}); got != 0 {
		t.Errorf("Expected zero variance for steady energy, got %g", got)
	}
	if got := EnergyVariance([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}); got != 0 {
		t.Errorf("Expected zero variance for steady energy, got %g", got)
	}
	if got := EnergyVariance([]float64{0.3, 0.3000001, 0.3}); math.Abs(got) > 1e-9 {
		t.Errorf("Expected near-zero variance for almost steady energy, got %g", got)
	}
	if got := EnergyVariance([]float64{0, 0, 0}); got != 0 {
		t.Errorf("Expected zero variance for silence, got %f", got)
	}

	// mean 0.5, variance 0.25, normalized 1.0
	got := EnergyVariance([]float64{0, 1})
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected normalized variance 1.0, got %f", got)
	}
}

func TestHasQuestionMarkers(t *testing.T) {
	tests := []struct {
		name     string
		energies []float64
		floor    float64
		want     bool
	}{
		{name: "too few sub-frames", energies: []float64{0.1, 0.5}, want: false},
		{name: "flat", energies: []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, want: false},
		{name: "rising tail", energies: []float64{1, 1, 1, 1, 1, 1, 1.1, 1.2}, want: true},
		{name: "final spike", energies: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 3}, want: true},
		{name: "choppy rhythm", energies: []float64{1, 2, 1, 2, 1, 2, 1, 1}, want: true},
		{name: "below floor", energies: []float64{0.001, 0.002, 0.004}, floor: 0.01, want: false},
		{name: "silence", energies: []float64{0, 0, 0, 0}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasQuestionMarkers(tt.energies, tt.floor); got != tt.want {
				t.Errorf("HasQuestionMarkers(%v) = %v, want %v", tt.energies, got, tt.want)
			}
		})
	}
}

func TestAnalyzeWindow(t *testing.T) {
	if stats := AnalyzeWindow(nil, 16000, 0.01); stats != (WindowStats{}) {
		t.Errorf("Expected zero stats for empty window, got %+v", stats)
	}

	stats := AnalyzeWindow(constantSamples(1000, 0.5), 1000, 0.01)
	if stats.SubFrames != 33 {
		t.Errorf("Expected 33 sub-frames, got %d", stats.SubFrames)
	}
	if stats.SpeechDensity != 1 {
		t.Errorf("Expected full speech density, got %f", stats.SpeechDensity)
	}
	if stats.HasQuestionMarkers {
		t.Error("Steady tone should not carry question markers")
	}
	if math.Abs(stats.RMS-0.5) > 1e-6 {
		t.Errorf("Expected RMS 0.5, got %f", stats.RMS)
	}
}
