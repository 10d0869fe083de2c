package logparse

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LineKind identifies the structural category of a log line.
type LineKind int

const (
	KindPlain LineKind = iota
	KindSessionStart
	KindOperationResult
	KindAssignment
)

func (k LineKind) String() string {
	switch k {
	case KindSessionStart:
		return "session-start"
	case KindOperationResult:
		return "operation-result"
	case KindAssignment:
		return "assignment"
	default:
		return "plain"
	}
}

// Status is the outcome tag of an operation result line.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// DefaultSessionMarker is the phrase that opens one test case in the log.
const DefaultSessionMarker = "Starting TestCase"

// Classified is the tagged result of classifying one line. Only the fields
// belonging to Kind are populated.
type Classified struct {
	Kind   LineKind
	Indent int

	// KindSessionStart
	Session string

	// KindOperationResult
	Status Status
	Label  string

	// KindAssignment
	Name      string
	Inline    string
	HasInline bool
	// Rest is the content following the "has been set to value" phrase.
	Rest string

	// KindPlain, and the envelope-free content for every kind.
	Text string
}

// LineRule is one entry of the ordered classification table.
type LineRule struct {
	Name  string
	Match func(content string, c *Classified) bool
}

var (
	operationRe  = regexp.MustCompile(`^\[(Succeeded|Failed)\]\s*['"]([^'"]+)['"]`)
	assignmentRe = regexp.MustCompile(`(?i)Buffer with name[:\s]*['"]([^'"]*)['"]\s*has been set to value[:\s]*`)
	quotedRunRe  = regexp.MustCompile(`['"]([^'"]*)`)
)

// Classifier applies the line rules in order; the first rule that matches
// wins and later rules are not consulted.
type Classifier struct {
	rules []LineRule
}

// NewClassifier builds a classifier that recognizes sessions by marker.
func NewClassifier(marker string) *Classifier {
	if marker == "" {
		marker = DefaultSessionMarker
	}
	sessionRe := regexp.MustCompile(regexp.QuoteMeta(marker) + `\s*['"]([^'"]+)['"]`)

	return &Classifier{rules: []LineRule{
		{Name: "session-start", Match: func(s string, c *Classified) bool {
			m := sessionRe.FindStringSubmatch(s)
			if m == nil {
				return false
			}
			c.Kind = KindSessionStart
			c.Session = m[1]
			return true
		}},
		{Name: "operation-result", Match: func(s string, c *Classified) bool {
			m := operationRe.FindStringSubmatch(s)
			if m == nil {
				return false
			}
			c.Kind = KindOperationResult
			c.Status = Status(m[1])
			c.Label = m[2]
			return true
		}},
		{Name: "assignment", Match: matchAssignment},
		{Name: "plain", Match: func(s string, c *Classified) bool {
			c.Kind = KindPlain
			return true
		}},
	}}
}

var defaultClassifier = NewClassifier(DefaultSessionMarker)

// ClassifyLine classifies a trimmed line with the default session marker.
func ClassifyLine(line string) Classified {
	return defaultClassifier.Classify(line)
}

// LineRules returns the rule names in evaluation order.
func LineRules() []string {
	names := make([]string, len(defaultClassifier.rules))
	for i, r := range defaultClassifier.rules {
		names[i] = r.Name
	}
	return names
}

// Classify strips the log envelope from line and runs the rule table.
func (cl *Classifier) Classify(line string) Classified {
	content, indent := StripEnvelope(strings.TrimSpace(line))
	c := Classified{Indent: indent, Text: content}
	for _, r := range cl.rules {
		if r.Match(content, &c) {
			break
		}
	}
	return c
}

func matchAssignment(s string, c *Classified) bool {
	loc := assignmentRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return false
	}
	c.Kind = KindAssignment
	c.Name = s[loc[2]:loc[3]]
	c.Rest = s[loc[1]:]
	c.Inline, c.HasInline = inlineValue(c.Rest)
	return true
}

// inlineValue returns the quoted scalar that completes an assignment on its
// own line. Either quote character may open or close the value. A payload led
// by a brace or bracket is left to the extractor unless it is plainly a
// quoted scalar, such as '[WARN] retry later' or '[1'.
func inlineValue(rest string) (string, bool) {
	if rest == "" || (rest[0] != '\'' && rest[0] != '"') {
		return "", false
	}
	open, payload := rest[0], rest[1:]
	lead := len(payload) - len(strings.TrimLeft(payload, " \t"))
	if lead < len(payload) && (payload[lead] == '{' || payload[lead] == '[') {
		return bracketInline(open, payload, lead)
	}
	end := closingQuote(payload, open, 0)
	if end < 0 {
		if end = strings.LastIndexAny(payload, `'"`); end < 0 {
			return "", false
		}
	}
	return payload[:end], true
}

func bracketInline(open byte, payload string, lead int) (string, bool) {
	n := payloadEnd(payload[lead:])
	if n < 0 {
		// unbalanced: a scalar only if the opening quote is the first quote
		q := strings.IndexAny(payload, `'"`)
		if q >= 0 && payload[q] == open && terminates(payload, q) {
			return payload[:q], true
		}
		return "", false
	}
	after := lead + n
	if after == len(payload) || isQuote(payload[after]) {
		return "", false
	}
	if q := closingQuote(payload, open, after); q >= 0 {
		return payload[:q], true
	}
	return "", false
}

// closingQuote finds the quote that ends a value: the first quote at or
// after from that is followed by end of line, whitespace or punctuation.
// A quote matching the opening one is preferred.
func closingQuote(s string, open byte, from int) int {
	other := -1
	for i := from; i < len(s); i++ {
		if !isQuote(s[i]) || !terminates(s, i) {
			continue
		}
		if s[i] == open {
			return i
		}
		if other < 0 {
			other = i
		}
	}
	return other
}

func terminates(s string, i int) bool {
	if i+1 >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i+1:])
	return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '"')
}

func isQuote(b byte) bool { return b == '\'' || b == '"' }

// firstQuotedRun is the last-resort value grab: everything after the first
// quote up to the next quote or end of line.
func firstQuotedRun(rest string) string {
	m := quotedRunRe.FindStringSubmatch(rest)
	if m == nil {
		return ""
	}
	return m[1]
}
