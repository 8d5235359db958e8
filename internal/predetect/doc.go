// Package predetect scans partial transcript fragments for question-like
// patterns and raises an advisory early signal before a chunk is finalized.
package predetect
