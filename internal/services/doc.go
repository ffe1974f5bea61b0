// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the student/course pair, stage names, batch
//     run ids, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds persisted on failed certificate rows.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
