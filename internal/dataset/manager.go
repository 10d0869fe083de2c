package dataset

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/logvars/internal/logparse"
	"github.com/ppiankov/logvars/internal/redact"
)

// Session is the result of one parse: the variables in source order, their
// grouping, and the current filtered view of that grouping.
type Session struct {
	ID        string
	Created   time.Time
	Variables []logparse.Variable
	Grouped   []Group
	Filtered  []Group
	RawText   string
}

// Stats summarizes the current session.
type Stats struct {
	Total    int            `json:"total"`
	Filtered int            `json:"filtered"`
	Types    map[string]int `json:"types"`
	Groups   int            `json:"groups"`
	MinLine  int            `json:"minLine,omitempty"`
	MaxLine  int            `json:"maxLine,omitempty"`
}

// GroupCount is a group name with its size.
type GroupCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SizeEstimate is the approximate serialized size of the parsed variables.
type SizeEstimate struct {
	Variables int   `json:"variables"`
	Bytes     int64 `json:"estimatedSizeBytes"`
	KB        int64 `json:"estimatedSizeKB"`
	MB        int64 `json:"estimatedSizeMB"`
}

// Manager owns one Session at a time and derives grouped, filtered and
// exported views of it. A Manager is not safe for concurrent use.
type Manager struct {
	log      *zap.Logger
	grouping Grouping
	redactor *redact.Redactor
	now      func() time.Time
	session  *Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithGrouping selects the grouping strategy. Default GroupFlat.
func WithGrouping(g Grouping) ManagerOption {
	return func(m *Manager) { m.grouping = g }
}

// WithRedactor masks variable values in every export.
func WithRedactor(r *redact.Redactor) ManagerOption {
	return func(m *Manager) { m.redactor = r }
}

// WithManagerLogger sets the debug logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the time source used for session and export stamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		log:      zap.NewNop(),
		grouping: GroupFlat,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetResults replaces the current session. The manager takes ownership of
// vars; the filtered view starts as a copy of the grouping.
func (m *Manager) SetResults(vars []logparse.Variable, rawText string) *Session {
	grouped := groupVariables(vars, m.grouping)
	m.session = &Session{
		ID:        uuid.NewString(),
		Created:   m.now(),
		Variables: vars,
		Grouped:   grouped,
		Filtered:  copyGroups(grouped),
		RawText:   rawText,
	}
	m.log.Debug("results set",
		zap.Int("variables", len(vars)),
		zap.Int("groups", len(grouped)),
		zap.String("grouping", string(m.grouping)))
	return m.session
}

// Session returns the current session, or nil after Clear.
func (m *Manager) Session() *Session { return m.session }

// Variables returns the parsed variables in source order.
func (m *Manager) Variables() []logparse.Variable {
	if m.session == nil {
		return nil
	}
	return m.session.Variables
}

// Grouped returns the unfiltered grouping.
func (m *Manager) Grouped() []Group {
	if m.session == nil {
		return nil
	}
	return m.session.Grouped
}

// Filtered returns the current filtered view.
func (m *Manager) Filtered() []Group {
	if m.session == nil {
		return nil
	}
	return m.session.Filtered
}

// RawText returns the text the session was parsed from.
func (m *Manager) RawText() string {
	if m.session == nil {
		return ""
	}
	return m.session.RawText
}

// ApplyFilter recomputes the filtered view from the grouping. search matches
// case-insensitively against name, value, type label and group name; an
// empty types set admits every type. Groups left empty are dropped.
func (m *Manager) ApplyFilter(search string, types []logparse.VarType) []Group {
	if m.session == nil {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(search))

	filtered := []Group{}
	for _, g := range m.session.Grouped {
		var keep []logparse.Variable
		for _, v := range g.Variables {
			if len(types) > 0 && !slices.Contains(types, v.Type) {
				continue
			}
			if needle != "" && !matchesSearch(v, g.Name, needle) {
				continue
			}
			keep = append(keep, v)
		}
		if len(keep) == 0 {
			continue
		}
		ng := g
		ng.Variables = keep
		filtered = append(filtered, ng)
	}
	m.session.Filtered = filtered
	return filtered
}

func matchesSearch(v logparse.Variable, group, needle string) bool {
	for _, field := range []string{v.Name, v.Value, v.Type.String(), group} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Statistics computes counts over the current session. Types and the line
// range cover every parsed variable; Filtered and Groups describe the
// filtered view.
func (m *Manager) Statistics() Stats {
	st := Stats{Types: map[string]int{}}
	if m.session == nil {
		return st
	}
	st.Total = len(m.session.Variables)
	st.Groups = len(m.session.Filtered)
	for _, g := range m.session.Filtered {
		st.Filtered += len(g.Variables)
	}
	for i, v := range m.session.Variables {
		st.Types[v.Type.String()]++
		if i == 0 || v.Line < st.MinLine {
			st.MinLine = v.Line
		}
		if v.Line > st.MaxLine {
			st.MaxLine = v.Line
		}
	}
	return st
}

// Clear drops the current session.
func (m *Manager) Clear() {
	m.session = nil
}

// UniqueTypes returns the sorted type labels present in the session.
func (m *Manager) UniqueTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range m.Variables() {
		label := v.Type.String()
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// UniqueGroups lists the unfiltered groups with their sizes.
func (m *Manager) UniqueGroups() []GroupCount {
	var out []GroupCount
	for _, g := range m.Grouped() {
		out = append(out, GroupCount{Name: g.Name, Count: len(g.Variables)})
	}
	return out
}

// VariablesByType returns every parsed variable of type t.
func (m *Manager) VariablesByType(t logparse.VarType) []logparse.Variable {
	var out []logparse.Variable
	for _, v := range m.Variables() {
		if v.Type == t {
			out = append(out, v)
		}
	}
	return out
}

// FindByName returns the first variable named name.
func (m *Manager) FindByName(name string) (logparse.Variable, bool) {
	for _, v := range m.Variables() {
		if v.Name == name {
			return v, true
		}
	}
	return logparse.Variable{}, false
}

// GroupVariables returns the variables of the i-th filtered group, or nil
// when i is out of range.
func (m *Manager) GroupVariables(i int) []logparse.Variable {
	f := m.Filtered()
	if i < 0 || i >= len(f) {
		return nil
	}
	return f[i].Variables
}

// EstimateSize reports the JSON-encoded size of the parsed variables.
func (m *Manager) EstimateSize() SizeEstimate {
	vars := m.Variables()
	if vars == nil {
		vars = []logparse.Variable{}
	}
	data, _ := json.Marshal(vars)
	n := int64(len(data))
	return SizeEstimate{
		Variables: len(vars),
		Bytes:     n,
		KB:        (n + 512) / 1024,
		MB:        (n + 512*1024) / (1024 * 1024),
	}
}
