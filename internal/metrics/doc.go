// Package metrics exposes Prometheus metrics for sessions, segmentation,
// question detection, transcription and the HTTP API. Metrics implements the
// segmenter and extractor observer interfaces.
package metrics
