// Package logparse extracts buffer variable assignments from execution-engine
// log text and classifies their values.
package logparse

import (
	"regexp"
	"strings"
)

// Line is one newline-delimited unit of input with its 1-based position.
type Line struct {
	Number int
	Text   string
}

// maxTagLen bounds what counts as an envelope tag like [INF] or [TBox].
const maxTagLen = 16

var (
	leadingTimestampRe = regexp.MustCompile(`^\s*(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?)`)
	envelopeTimeRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|\s?[+-]\d{2}:?\d{2}|\s[A-Z]{2,5})?`)
	messageLabelRe     = regexp.MustCompile(`^Message:\s*`)
)

// SplitLines splits text into numbered lines. A trailing carriage return is
// dropped from each line.
func SplitLines(text string) []Line {
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, s := range raw {
		lines[i] = Line{Number: i + 1, Text: strings.TrimSuffix(s, "\r")}
	}
	return lines
}

// LeadingTimestamp returns the ISO-like timestamp at the start of line, or "".
func LeadingTimestamp(line string) string {
	m := leadingTimestampRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// StripEnvelope removes the outer log envelope from a trimmed line: a leading
// timestamp, contiguous bracketed tags such as [INF][TBox], and an optional
// "Message:" label. It returns the remaining content and the width of the
// whitespace that separated the tags from the content.
func StripEnvelope(line string) (content string, indent int) {
	s := line
	if loc := envelopeTimeRe.FindStringIndex(s); loc != nil {
		s = strings.TrimLeft(s[loc[1]:], " \t")
		for strings.HasPrefix(s, "[") {
			end := strings.IndexByte(s, ']')
			if end < 0 || end-1 > maxTagLen {
				break
			}
			tag := s[1:end]
			if tag == "" || isStatusTag(tag) || strings.ContainsAny(tag, " '\"") {
				break
			}
			s = s[end+1:]
		}
		rest := strings.TrimLeft(s, " \t")
		indent = len(s) - len(rest)
		s = rest
	}
	s = messageLabelRe.ReplaceAllString(s, "")
	return s, indent
}

// cleanContinuation prepares a physical line that continues a multi-line
// payload.
func cleanContinuation(raw string) string {
	content, _ := StripEnvelope(strings.TrimSpace(raw))
	return strings.TrimSpace(content)
}

func isStatusTag(tag string) bool {
	return tag == string(StatusSucceeded) || tag == string(StatusFailed)
}
