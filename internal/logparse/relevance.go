package logparse

import "strings"

// FilterRelevant drops the preamble before the first line containing the
// default session marker. Input without a marker is returned unchanged.
func FilterRelevant(text string) string {
	return FilterRelevantMarker(text, DefaultSessionMarker)
}

// FilterRelevantMarker is FilterRelevant with a custom session marker.
func FilterRelevantMarker(text, marker string) string {
	lines := strings.Split(text, "\n")
	start := relevantStart(lines, marker)
	if start == 0 {
		return text
	}
	return strings.Join(lines[start:], "\n")
}

// relevantStart returns the index of the first line containing marker, or 0.
func relevantStart(lines []string, marker string) int {
	if marker == "" {
		return 0
	}
	for i, l := range lines {
		if strings.Contains(l, marker) {
			return i
		}
	}
	return 0
}
