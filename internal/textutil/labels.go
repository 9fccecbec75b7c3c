package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel canonicalizes a play concept label: unicode compatibility
// composition, trimmed, internal whitespace collapsed to single spaces, and
// case-folded so "Inside  Zone" and "inside zone" compare equal.
func NormalizeLabel(value string) string {
	value = norm.NFKC.String(value)
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return ""
	}
	return cases.Fold().String(value)
}

// UniqueLabels normalizes labels and drops empties and repeats, keeping the
// first-seen order.
func UniqueLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = NormalizeLabel(label)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// CollapseWhitespace joins every run of whitespace, newlines included, into a
// single space and trims the ends.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
