// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so the orchestrator and CLI
//     can classify a failure (input, transient, malformed response, upload
//     readiness, local tooling) and report the stage it originated in.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
