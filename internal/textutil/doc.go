// Package textutil provides small text helpers shared across filmroom:
// filesystem-safe slugs for run directories and canonical play-label
// normalization (unicode composition, whitespace collapse, case folding).
package textutil
