// Package transcription implements the HTTP client for the transcription API.
// Finalized chunks are encoded as WAV and posted as multipart form data with
// chunk metadata. Transient failures are retried with exponential backoff and
// concurrent requests are capped by a weighted semaphore.
package transcription
