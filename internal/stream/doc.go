// Package stream manages live audio sessions. Each session owns a segmenter
// and a question pre-detector, finalizes chunks as the segmenter decides,
// transcribes them concurrently and passes the transcripts through the
// question extractor to a Sink. Idle sessions expire on a cleanup ticker.
package stream
