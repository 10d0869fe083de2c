package logparse

import (
	"strings"
	"unicode/utf8"
)

// Extractor reassembles a brace- or bracket-delimited payload that may span
// several physical lines. Delimiters inside double-quoted strings do not
// change the depth; a backslash inside a string escapes the next character.
type Extractor struct {
	Depth    int
	InString bool
	Escape   bool
	Opened   bool

	buf  strings.Builder
	done bool
}

// Feed consumes s one character at a time and reports whether the payload
// closed. Characters after the closing delimiter are not consumed.
func (e *Extractor) Feed(s string) bool {
	if e.done {
		return true
	}
	for _, ch := range s {
		if e.Escape {
			e.buf.WriteRune(ch)
			e.Escape = false
			continue
		}
		if ch == '\\' && e.InString {
			e.buf.WriteRune(ch)
			e.Escape = true
			continue
		}

		switch {
		case ch == '"':
			e.InString = !e.InString
		case !e.InString && (ch == '{' || ch == '['):
			e.Depth++
			e.Opened = true
		case !e.InString && (ch == '}' || ch == ']'):
			e.Depth--
		}
		e.buf.WriteRune(ch)

		if e.Opened && e.Depth == 0 {
			e.done = true
			return true
		}
	}
	return false
}

// Newline records a line break inside an open payload.
func (e *Extractor) Newline() {
	e.buf.WriteByte('\n')
}

// Done reports whether the payload closed.
func (e *Extractor) Done() bool { return e.done }

// Value returns everything accumulated so far.
func (e *Extractor) Value() string { return e.buf.String() }

// ExtractPayload extracts a structured payload that starts in first (the
// content after the assignment phrase) and may continue through rest (the
// raw physical lines that follow). ok is false when first holds no opening
// brace or bracket. When rest runs out before the payload closes, the partial
// value is returned with complete false; callers keep it as a best-effort
// value.
func ExtractPayload(first string, rest []string) (value string, complete, ok bool) {
	start := strings.IndexAny(first, "{[")
	if start < 0 {
		return "", false, false
	}

	var e Extractor
	if e.Feed(first[start:]) {
		return e.Value(), true, true
	}
	for _, raw := range rest {
		e.Newline()
		if e.Feed(cleanContinuation(raw)) {
			return e.Value(), true, true
		}
	}
	return e.Value(), false, true
}

// payloadEnd returns the byte offset just past the delimiter that closes the
// payload opening at s[0], or -1 when s ends first.
func payloadEnd(s string) int {
	var e Extractor
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if e.Feed(string(r)) {
			return i
		}
	}
	return -1
}
