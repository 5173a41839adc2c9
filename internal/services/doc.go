// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, segment ordinals,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     request errors (returned synchronously) or stage errors (persisted).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
