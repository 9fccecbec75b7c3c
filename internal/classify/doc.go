// Package classify asks the fast vision model which side of a pre-snap frame
// is offense and which is defense.
//
// Classify returns a typed failure instead of a guess when the model cannot
// produce a decodable record; callers that prefer to continue substitute
// Fallback, an all-"unknown" record carrying the failure reason.
package classify
