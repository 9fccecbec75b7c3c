// Package motion detects pre-snap movement from a handful of still frames.
//
// Frames are reduced to BT.601 luma, smoothed with a Gaussian kernel, and
// differenced pairwise. A pair's ratio is the fraction of pixels whose
// intensity delta exceeds the configured pixel threshold; the report flags
// motion when any ratio exceeds the ratio threshold and names the transition
// with the largest ratio (earliest wins exact ties).
//
// Everything here is pure: the same frames always yield the same Report.
package motion
