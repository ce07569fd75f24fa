// Package services defines shared utilities consumed by the pipeline
// orchestrators and the external detector integrations.
//
// Key responsibilities:
//   - Context helpers that stamp chunk IDs, stage names, modalities, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into journal outcomes (failed vs rejected).
//
// Detector adapters live in subpackages (whisperx, vision).
package services
