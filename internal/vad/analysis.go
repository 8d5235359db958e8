package vad

import "math"

// SubFrameMs is the sub-frame length used for energy profiling.
const SubFrameMs = 30

// Thresholds for prosodic question cues.
const (
	risingRatio      = 0.5
	spikeFactor      = 1.3
	choppyDeltaRatio = 0.2
	choppyRatio      = 0.4
	minSubFrames     = 3
)

// WindowStats summarizes the energy profile of a sample window
type WindowStats struct {
	RMS                float64 `json:"rms"`
	SpeechDensity      float64 `json:"speech_density"`
	EnergyVariance     float64 `json:"energy_variance"`
	HasQuestionMarkers bool    `json:"has_question_markers"`
	SubFrames          int     `json:"sub_frames"`
}

// RMS returns the root-mean-square amplitude of samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// SubFrameSize returns the number of samples in one sub-frame at sampleRate
func SubFrameSize(sampleRate int) int {
	size := sampleRate * SubFrameMs / 1000
	if size < 1 {
		size = 1
	}
	return size
}

// SubFrameEnergies splits samples into consecutive sub-frames of size samples
// and returns the RMS of each. Sub-frames are aligned to the end of samples so
// the newest audio is always covered; a leading partial sub-frame is dropped.
func SubFrameEnergies(samples []float32, size int) []float64 {
	if size <= 0 || len(samples) < size {
		return nil
	}

	energies := make([]float64, 0, len(samples)/size)
	for start := len(samples) % size; start+size <= len(samples); start += size {
		energies = append(energies, RMS(samples[start:start+size]))
	}
	return energies
}

// SpeechDensity returns the fraction of sub-frames whose energy is at or above threshold
func SpeechDensity(energies []float64, threshold float64) float64 {
	if len(energies) == 0 {
		return 0
	}

	voiced := 0
	for _, e := range energies {
		if e >= threshold {
			voiced++
		}
	}
	return float64(voiced) / float64(len(energies))
}

// EnergyVariance returns the variance of the sub-frame energies normalized by
// the squared mean, so steady speech and steady silence both score near zero.
func EnergyVariance(energies []float64) float64 {
	if len(energies) < 2 {
		return 0
	}

	m := mean(energies)
	if m <= 0 || steady(energies) {
		return 0
	}

	var variance float64
	for _, e := range energies {
		d := e - m
		variance += d * d
	}
	variance /= float64(len(energies))

	return variance / (m * m)
}

// HasQuestionMarkers reports whether an energy profile carries prosodic cues
// typical of a spoken question: rising energy over the last quarter, a spike
// in the final sub-frame, or a choppy rhythm. Profiles with fewer than three
// sub-frames or a mean energy below floor never qualify.
func HasQuestionMarkers(energies []float64, floor float64) bool {
	n := len(energies)
	if n < minSubFrames {
		return false
	}

	m := mean(energies)
	if m <= 0 || m < floor {
		return false
	}

	// Rising intonation
	tail := n / 4
	if tail < 2 {
		tail = 2
	}
	rising := 0
	for i := n - tail; i < n; i++ {
		if energies[i] > energies[i-1] {
			rising++
		}
	}
	if float64(rising) >= risingRatio*float64(tail) {
		return true
	}

	// Energy spike at the end of the window
	if energies[n-1] > spikeFactor*m {
		return true
	}

	// Choppy rhythm
	choppy := 0
	for i := 1; i < n; i++ {
		if math.Abs(energies[i]-energies[i-1]) > choppyDeltaRatio*m {
			choppy++
		}
	}
	return float64(choppy) >= choppyRatio*float64(n-1)
}

// AnalyzeWindow computes the energy profile of samples at sampleRate using
// threshold as the voice/silence boundary.
func AnalyzeWindow(samples []float32, sampleRate int, threshold float64) WindowStats {
	if len(samples) == 0 || sampleRate <= 0 {
		return WindowStats{}
	}

	energies := SubFrameEnergies(samples, SubFrameSize(sampleRate))
	return WindowStats{
		RMS:                RMS(samples),
		SpeechDensity:      SpeechDensity(energies, threshold),
		EnergyVariance:     EnergyVariance(energies),
		HasQuestionMarkers: HasQuestionMarkers(energies, threshold),
		SubFrames:          len(energies),
	}
}

// steady reports whether every energy equals the first
func steady(energies []float64) bool {
	for _, e := range energies[1:] {
		if e != energies[0] {
			return false
		}
	}
	return true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
