// Package vad provides energy-based voice activity primitives for PCM windows.
// It computes RMS levels, sub-frame energy profiles, speech density and energy
// variance, detects prosodic question cues such as rising intonation, and
// classifies frames as voice or silence with running statistics.
package vad
