package vad

import (
	"sync"
	"time"
)

// Processor classifies audio frames as voice or silence by comparing their RMS
// level against a threshold, and keeps running statistics.
type Processor struct {
	threshold float64

	// Statistics
	totalFrames   uint64
	voiceFrames   uint64
	lastRMS       float64
	lastProcessed time.Time

	now func() time.Time

	mu sync.RWMutex
}

// Result represents the classification of a single frame
type Result struct {
	RMS        float64   `json:"rms"`
	HasVoice   bool      `json:"has_voice"`
	Confidence float64   `json:"confidence"` // Distance from threshold, scaled to 0-1
	FrameIndex uint64    `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProcessorStats represents VAD processor statistics
type ProcessorStats struct {
	TotalFrames     uint64    `json:"total_frames"`
	VoiceFrames     uint64    `json:"voice_frames"`
	VoicePercentage float64   `json:"voice_percentage"`
	LastRMS         float64   `json:"last_rms"`
	LastProcessed   time.Time `json:"last_processed"`
	Threshold       float64   `json:"threshold"`
}

// NewProcessor creates a processor using threshold as the silence RMS boundary
func NewProcessor(threshold float64) *Processor {
	return &Processor{
		threshold: threshold,
		now:       time.Now,
	}
}

// Process classifies a frame. Empty frames are reported as silence.
func (p *Processor) Process(samples []float32) Result {
	rms := RMS(samples)

	p.mu.Lock()
	defer p.mu.Unlock()

	hasVoice := len(samples) > 0 && rms >= p.threshold

	p.totalFrames++
	if hasVoice {
		p.voiceFrames++
	}
	p.lastRMS = rms
	p.lastProcessed = p.now()

	return Result{
		RMS:        rms,
		HasVoice:   hasVoice,
		Confidence: confidence(rms, p.threshold),
		FrameIndex: p.totalFrames - 1,
		Timestamp:  p.lastProcessed,
	}
}

// confidence grows with the distance between rms and threshold
func confidence(rms, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	c := (rms - threshold) / threshold
	if c < 0 {
		c = -c
	}
	if c > 1 {
		c = 1
	}
	return c
}

// GetStats returns current processor statistics
func (p *Processor) GetStats() ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	voicePercentage := float64(0)
	if p.totalFrames > 0 {
		voicePercentage = float64(p.voiceFrames) / float64(p.totalFrames) * 100
	}

	return ProcessorStats{
		TotalFrames:     p.totalFrames,
		VoiceFrames:     p.voiceFrames,
		VoicePercentage: voicePercentage,
		LastRMS:         p.lastRMS,
		LastProcessed:   p.lastProcessed,
		Threshold:       p.threshold,
	}
}

// UpdateThreshold updates the voice detection threshold
func (p *Processor) UpdateThreshold(threshold float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.threshold = threshold
}

// Threshold returns the current voice detection threshold
func (p *Processor) Threshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// Reset resets the processor statistics
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalFrames = 0
	p.voiceFrames = 0
	p.lastRMS = 0
	p.lastProcessed = time.Time{}
}
