// Package reporter frames decoded output with the mardec banner and renders
// JSON summaries of decode sessions.
package reporter
