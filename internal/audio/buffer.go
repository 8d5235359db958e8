package audio

import (
	"fmt"
)

const (
	// historyCapacity bounds the analysis history ring
	historyCapacity = 10

	pcm16Scale = 32768.0
)

// Buffer accumulates frames in arrival order until a chunk is finalized
type Buffer struct {
	frames  [][]float32
	samples int
}

// NewBuffer creates an empty frame buffer
func NewBuffer() *Buffer {
	return &Buffer{
		frames: make([][]float32, 0, 64),
	}
}

// Append stores a copy of samples as one frame
func (b *Buffer) Append(samples []float32) {
	frame := make([]float32, len(samples))
	copy(frame, samples)
	b.frames = append(b.frames, frame)
	b.samples += len(frame)
}

// Len returns the number of buffered frames
func (b *Buffer) Len() int {
	return len(b.frames)
}

// Samples returns the number of buffered samples
func (b *Buffer) Samples() int {
	return b.samples
}

// Tail returns the last n buffered samples in order, or all of them when
// fewer than n are buffered.
func (b *Buffer) Tail(n int) []float32 {
	if n > b.samples {
		n = b.samples
	}
	if n <= 0 {
		return nil
	}

	out := make([]float32, n)
	pos := n
	for i := len(b.frames) - 1; i >= 0 && pos > 0; i-- {
		frame := b.frames[i]
		if len(frame) > pos {
			frame = frame[len(frame)-pos:]
		}
		pos -= len(frame)
		copy(out[pos:], frame)
	}
	return out
}

// Drain returns every buffered sample concatenated in arrival order and
// empties the buffer.
func (b *Buffer) Drain() []float32 {
	out := make([]float32, 0, b.samples)
	for _, frame := range b.frames {
		out = append(out, frame...)
	}
	b.Reset()
	return out
}

// Reset drops all buffered frames
func (b *Buffer) Reset() {
	b.frames = b.frames[:0]
	b.samples = 0
}

// History is a bounded FIFO of recent content analyses
type History struct {
	entries  []ContentAnalysis
	capacity int
}

// NewHistory creates a history holding at most capacity entries
func NewHistory(capacity int) *History {
	return &History{
		entries:  make([]ContentAnalysis, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an analysis, evicting the oldest entry when full
func (h *History) Push(a ContentAnalysis) {
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, a)
}

// Len returns the number of stored analyses
func (h *History) Len() int {
	return len(h.entries)
}

// Last returns up to n most recent analyses, oldest first
func (h *History) Last(n int) []ContentAnalysis {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]ContentAnalysis, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Reset clears the history
func (h *History) Reset() {
	h.entries = h.entries[:0]
}

// PCM16ToFloat converts little-endian PCM-16 bytes to samples in [-1, 1]
func PCM16ToFloat(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(raw))
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		samples[i] = float32(float64(v) / pcm16Scale)
	}
	return samples, nil
}

// FloatToPCM16 converts samples in [-1, 1] to PCM-16, clipping out-of-range values
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * pcm16Scale
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// FramesFromPCM16 splits little-endian PCM-16 bytes into frames of
// frameSamples samples. The trailing frame may be shorter.
func FramesFromPCM16(raw []byte, frameSamples int) ([]Frame, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}

	samples, err := PCM16ToFloat(raw)
	if err != nil {
		return nil, err
	}
	return SplitFrames(samples, frameSamples), nil
}

// SplitFrames slices samples into frames of frameSamples samples
func SplitFrames(samples []float32, frameSamples int) []Frame {
	if frameSamples <= 0 || len(samples) == 0 {
		return nil
	}

	frames := make([]Frame, 0, (len(samples)+frameSamples-1)/frameSamples)
	for start := 0; start < len(samples); start += frameSamples {
		end := start + frameSamples
		if end > len(samples) {
			end = len(samples)
		}
		frames = append(frames, Frame{Samples: samples[start:end]})
	}
	return frames
}
