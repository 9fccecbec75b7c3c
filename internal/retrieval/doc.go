// Package retrieval finds historical plays similar to the current clip.
//
// BuildQuery serializes the classification and motion verdict into a fixed
// text layout; the text is embedded and matched against the configured
// vector collection. ExtractCandidates then walks each returned payload for
// play concept labels and produces a deduplicated candidate set that is never
// empty.
package retrieval
