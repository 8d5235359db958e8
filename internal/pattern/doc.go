// Package pattern holds the precompiled question-indicative text patterns,
// filler lexicons and normalization helpers shared by the streaming
// pre-detector and the question refiner. All values are read-only after
// package initialization and safe for concurrent use.
package pattern
