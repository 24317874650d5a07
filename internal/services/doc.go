// Package services defines shared utilities consumed by the rotation pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and pipeline states for
//     logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent class (configuration, authentication, filesystem, ...) that the
//     CLI can report without string matching.
//
// Use these helpers when wiring new pipeline steps so failure reporting stays
// uniform.
package services
