package logparse

import (
	"regexp"
	"strings"
)

// NodeKind distinguishes outline levels.
type NodeKind string

const (
	NodeTestCase  NodeKind = "testcase"
	NodeOperation NodeKind = "operation"
)

// OutlineLine is a non-structural line attached to an outline node.
type OutlineLine struct {
	Number    int      `json:"line"`
	Timestamp string   `json:"timestamp,omitempty"`
	Kind      LineKind `json:"-"`
	Text      string   `json:"text"`
}

// Node is one test case or operation in the outline tree.
type Node struct {
	Kind      NodeKind      `json:"type"`
	Name      string        `json:"name"`
	Status    Status        `json:"status,omitempty"`
	Line      int           `json:"line"`
	Timestamp string        `json:"timestamp,omitempty"`
	Duration  string        `json:"duration,omitempty"`
	Level     int           `json:"level"`
	Lines     []OutlineLine `json:"lines,omitempty"`
	Children  []*Node       `json:"children,omitempty"`
}

// durationRe matches the execution time entry the engine writes for a step.
var durationRe = regexp.MustCompile(`\[DURATION:\s*([^\]]+)\]`)

// indentWidth is the number of spaces per nesting level after the log tags.
const indentWidth = 4

// BuildOutline groups log lines into test cases and nested operations.
// Lines before the first test case are dropped.
func BuildOutline(text string) []*Node {
	return NewClassifier(DefaultSessionMarker).Outline(text)
}

// Outline builds the outline tree using this classifier's session marker.
func (cl *Classifier) Outline(text string) []*Node {
	var (
		roots []*Node
		stack []*Node
	)

	for _, l := range SplitLines(text) {
		trimmed := strings.TrimSpace(l.Text)
		if trimmed == "" {
			continue
		}
		c := cl.Classify(trimmed)
		ts := LeadingTimestamp(l.Text)

		switch c.Kind {
		case KindSessionStart:
			n := &Node{Kind: NodeTestCase, Name: c.Session, Line: l.Number, Timestamp: ts}
			roots = append(roots, n)
			stack = []*Node{n}

		case KindOperationResult:
			if len(stack) == 0 {
				continue
			}
			level := 1 + max(c.Indent-1, 0)/indentWidth
			for len(stack) > level {
				stack = stack[:len(stack)-1]
			}
			n := &Node{
				Kind:      NodeOperation,
				Name:      c.Label,
				Status:    c.Status,
				Line:      l.Number,
				Timestamp: ts,
				Duration:  lineDuration(trimmed),
				Level:     len(stack),
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)

		default:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if d := lineDuration(trimmed); d != "" && top.Duration == "" {
				top.Duration = d
			}
			top.Lines = append(top.Lines, OutlineLine{Number: l.Number, Timestamp: ts, Kind: c.Kind, Text: c.Text})
		}
	}
	return roots
}

func lineDuration(line string) string {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Walk calls fn for n and every descendant, depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
