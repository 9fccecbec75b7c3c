// Package main hosts the filmroom CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the model
// gateway and vector store for the commands that need them, and hands the
// work to the internal packages: analyze runs the pipeline on one clip,
// corpus manages the similarity collection, show renders a finished run, and
// config/deps help with setup.
package main
