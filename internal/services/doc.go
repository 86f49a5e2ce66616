// Package services defines shared utilities consumed by the identification
// layers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp book IDs, layer names, providers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. The markers form the
//     failure taxonomy used across the pipeline: transient lookup failures,
//     malformed observations, unsafe paths, destination conflicts, and
//     exhausted identification.
//
// Use these helpers when wiring new layers or providers so error handling and
// observability stay uniform across the pipeline.
package services
