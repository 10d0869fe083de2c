// Package dataset holds a parse result and derives grouped, filtered and
// exported views of it.
package dataset

import (
	"fmt"
	"strings"

	"github.com/ppiankov/logvars/internal/logparse"
)

// DefaultGroupName names the bucket for variables without a narrower context.
const DefaultGroupName = "Extracted Variables"

// Group is a named bucket of variables.
type Group struct {
	Name      string              `json:"name"`
	Variables []logparse.Variable `json:"variables"`
	Timestamp string              `json:"timestamp,omitempty"` // earliest non-empty member timestamp
	Expanded  bool                `json:"expanded"`
}

// Grouping selects how variables are bucketed.
type Grouping string

const (
	// GroupFlat puts every variable in a single DefaultGroupName group.
	GroupFlat Grouping = "flat"
	// GroupBySession creates one group per test case, in order of first
	// appearance. Variables before any test case go to DefaultGroupName.
	GroupBySession Grouping = "session"
)

// ParseGrouping parses a --group-by value.
func ParseGrouping(s string) (Grouping, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat", "none":
		return GroupFlat, nil
	case "session", "testcase":
		return GroupBySession, nil
	default:
		return GroupFlat, fmt.Errorf("unknown grouping %q (want flat or session)", s)
	}
}

func groupVariables(vars []logparse.Variable, g Grouping) []Group {
	groups := []Group{}
	index := make(map[string]int)

	for _, v := range vars {
		name := DefaultGroupName
		if g == GroupBySession && v.Session != "" {
			name = v.Session
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name, Expanded: true})
		}
		grp := &groups[i]
		grp.Variables = append(grp.Variables, v)
		if v.Timestamp != "" && (grp.Timestamp == "" || v.Timestamp < grp.Timestamp) {
			grp.Timestamp = v.Timestamp
		}
	}
	return groups
}

// copyGroups copies the group slice and each variable slice so the result
// can be filtered without touching the source.
func copyGroups(src []Group) []Group {
	out := make([]Group, len(src))
	for i, g := range src {
		out[i] = g
		out[i].Variables = append([]logparse.Variable(nil), g.Variables...)
	}
	return out
}
