// Package pipeline runs one pre-snap analysis end to end.
//
// An Orchestrator trims the configured window from a video, samples still
// frames, measures motion locally, uploads the media, classifies the two
// units, retrieves similar plays from the corpus and asks the final model for
// a one-paragraph breakdown. Each stage goes through stageexec.Run, so
// failures carry the stage name and only classification may degrade to a
// fallback value.
//
// Every stage output is written to the run directory as its own artifact as
// soon as the stage finishes. combined.json is written last and only for runs
// that complete.
package pipeline
