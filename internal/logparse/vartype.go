package logparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// VarType is the semantic type assigned to an extracted value.
type VarType int

const (
	Generic VarType = iota
	StructuredData
	Token
	URL
	Identifier
	Timestamp
)

// AllTypes lists every type in classification order, Generic last.
var AllTypes = []VarType{StructuredData, Token, URL, Identifier, Timestamp, Generic}

// String returns the display label used in exports and search.
func (t VarType) String() string {
	switch t {
	case StructuredData:
		return "JSON"
	case Token:
		return "Token"
	case URL:
		return "URL"
	case Identifier:
		return "ID"
	case Timestamp:
		return "Timestamp"
	default:
		return "Buffer Variable"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t VarType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *VarType) UnmarshalText(b []byte) error {
	v, err := ParseVarType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseVarType accepts a display label ("JSON", "Buffer Variable") or a type
// name ("structured", "generic"), case-insensitively.
func ParseVarType(s string) (VarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "structured", "structureddata", "structured-data":
		return StructuredData, nil
	case "token":
		return Token, nil
	case "url":
		return URL, nil
	case "id", "identifier":
		return Identifier, nil
	case "timestamp":
		return Timestamp, nil
	case "buffer variable", "generic", "buffer":
		return Generic, nil
	default:
		return Generic, fmt.Errorf("unknown variable type %q", s)
	}
}

// TypeRule is one entry of the ordered value classification table.
type TypeRule struct {
	Type  VarType
	Match func(lowerName, value string) bool
}

var (
	uuidRe      = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	longTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
	isoPrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
)

var typeRules = []TypeRule{
	{StructuredData, func(_, v string) bool { return isStructured(v) }},
	{Token, func(n, _ string) bool {
		return strings.Contains(n, "token") || strings.Contains(n, "access")
	}},
	{URL, func(_, v string) bool {
		return (strings.Contains(v, "http://") || strings.Contains(v, "https://")) &&
			!strings.ContainsAny(v, `{"`)
	}},
	{Identifier, func(n, v string) bool {
		return strings.Contains(n, "id") && (uuidRe.MatchString(v) || longTokenRe.MatchString(v))
	}},
	{Timestamp, func(_, v string) bool { return isoPrefixRe.MatchString(v) }},
}

// TypeRules returns the classification order. Generic is implied last.
func TypeRules() []VarType {
	out := make([]VarType, len(typeRules))
	for i, r := range typeRules {
		out[i] = r.Type
	}
	return out
}

// ClassifyValue assigns a semantic type to a (name, value) pair. Earlier
// rules take precedence.
func ClassifyValue(name, value string) VarType {
	lower := strings.ToLower(name)
	for _, r := range typeRules {
		if r.Match(lower, value) {
			return r.Type
		}
	}
	return Generic
}

// isStructured reports whether v is JSON whose top level is an array or a
// non-empty object.
func isStructured(v string) bool {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "{") && !strings.HasPrefix(v, "[") {
		return false
	}
	var parsed any
	if err := json.Unmarshal([]byte(v), &parsed); err != nil {
		return false
	}
	switch p := parsed.(type) {
	case []any:
		return true
	case map[string]any:
		return len(p) > 0
	default:
		return false
	}
}
