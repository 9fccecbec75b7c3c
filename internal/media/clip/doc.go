// Package clip trims the analysis window out of a source video and samples
// still frames from the trimmed clip with ffmpeg.
//
// Trimming tries a stream copy first and falls back to a libx264 re-encode
// when the copy fails or leaves an empty or unprobeable file. Frame sampling
// is all-or-nothing: one JPEG per requested offset, in request order.
package clip
