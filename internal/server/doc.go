// Package server implements the HTTP API. It exposes health, configuration,
// session management, audio and fragment ingestion, question extraction and
// Prometheus metrics endpoints.
package server
