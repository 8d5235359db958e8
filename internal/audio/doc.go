// Package audio segments a continuous stream of PCM frames into chunks for
// transcription. The Segmenter buffers frames, returns an advisory decision
// per frame using silence, duration and content heuristics, adapts its
// thresholds to recent speech density, and materializes chunks on demand.
// The package also converts between PCM-16 and float samples and encodes
// chunks as WAV.
package audio
