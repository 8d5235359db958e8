// Package question turns finalized transcripts into canonical question
// records. The Extractor splits a transcript into candidates, trims prefaces
// and discourse fillers, validates each candidate and refines it into a
// clean form. External collaborators can supply a span Locator and a
// per-candidate Validator.
package question
