// Package stageexec runs one pipeline stage with uniform lifecycle logging
// and an explicit soft/hard failure policy.
package stageexec
