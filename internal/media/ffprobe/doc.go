// Package ffprobe runs ffprobe against a media file and decodes the streams
// and container metadata it reports.
//
// The clip extractor uses Inspect to confirm that a trimmed clip actually
// carries a decodable video stream before frames are sampled from it.
package ffprobe
