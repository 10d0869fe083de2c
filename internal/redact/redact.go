// Package redact masks secrets and PII in extracted variable values before
// they leave the process.
package redact

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/logvars/internal/logparse"
)

// TokenReplacement replaces the whole value of a Token-typed variable.
const TokenReplacement = "[REDACTED:token]"

// Pattern defines a named PII pattern with its compiled regex.
type Pattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	re          *regexp.Regexp
	validate    func(string) bool // optional post-match check (e.g. Luhn)
}

// Redactor holds active patterns and masks matching content.
type Redactor struct {
	patterns []Pattern
	tokens   bool
	onHit    func(pattern string)
}

var builtinPatterns = []Pattern{
	{
		Name:        "credit_card",
		Pattern:     `\b(\d[ -]*?){13,19}\b`,
		Replacement: "[REDACTED:cc]",
	},
	{
		Name:        "email",
		Pattern:     `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		Replacement: "[REDACTED:email]",
	},
	{
		Name:        "jwt",
		Pattern:     `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		Replacement: "[REDACTED:jwt]",
	},
	{
		Name:        "bearer",
		Pattern:     `(?i)Bearer\s+[A-Za-z0-9_\-.]+`,
		Replacement: "[REDACTED:bearer]",
	},
	{
		Name:        "password",
		Pattern:     `(?i)("(?:password|passwd|pwd|secret)"\s*:\s*)"(?:[^"\\]|\\.)*"`,
		Replacement: `${1}"[REDACTED:password]"`,
	},
	{
		Name:        "ssn",
		Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
		Replacement: "[REDACTED:ssn]",
	},
}

// Builtins returns the names of the built-in patterns.
func Builtins() []string {
	names := make([]string, len(builtinPatterns))
	for i, p := range builtinPatterns {
		names[i] = p.Name
	}
	return names
}

// New creates a Redactor with the named built-in patterns enabled. If names
// is empty, all built-in patterns are enabled. Token-typed variables are
// always masked in full.
func New(names []string) (*Redactor, error) {
	var selected []Pattern
	if len(names) == 0 {
		selected = append(selected, builtinPatterns...)
	} else {
		byName := make(map[string]Pattern, len(builtinPatterns))
		for _, p := range builtinPatterns {
			byName[p.Name] = p
		}
		for _, n := range names {
			p, ok := byName[n]
			if !ok {
				return nil, fmt.Errorf("unknown redaction pattern: %s", n)
			}
			selected = append(selected, p)
		}
	}
	compiled, err := compile(selected)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: compiled, tokens: true}, nil
}

// LoadPatterns appends patterns from a YAML file holding a list of
// {name, pattern, replacement} entries.
func (r *Redactor) LoadPatterns(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read patterns file: %w", err)
	}
	var customs []Pattern
	if err := yaml.Unmarshal(data, &customs); err != nil {
		return fmt.Errorf("parse patterns file: %w", err)
	}
	compiled, err := compile(customs)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, compiled...)
	return nil
}

// OnHit sets a callback invoked once per pattern that changed a string.
func (r *Redactor) OnHit(fn func(pattern string)) {
	r.onHit = fn
}

// String masks every pattern match in s.
func (r *Redactor) String(s string) string {
	for _, p := range r.patterns {
		before := s
		if p.validate != nil {
			s = p.re.ReplaceAllStringFunc(s, func(match string) string {
				if p.validate(match) {
					return p.Replacement
				}
				return match
			})
		} else {
			s = p.re.ReplaceAllString(s, p.Replacement)
		}
		if s != before && r.onHit != nil {
			r.onHit(p.Name)
		}
	}
	return s
}

// Variable returns a copy of v with its value and source line masked. A
// Token-typed value is replaced entirely.
func (r *Redactor) Variable(v logparse.Variable) logparse.Variable {
	if r.tokens && v.Type == logparse.Token {
		if v.Value != "" && r.onHit != nil {
			r.onHit("token")
		}
		if v.Value != "" {
			v.OriginalLine = strings.ReplaceAll(v.OriginalLine, v.Value, TokenReplacement)
		}
		v.Value = TokenReplacement
	} else {
		v.Value = r.String(v.Value)
	}
	v.OriginalLine = r.String(v.OriginalLine)
	return v
}

// Names returns the names of active patterns.
func (r *Redactor) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}
	return names
}

func compile(patterns []Pattern) ([]Pattern, error) {
	compiled := make([]Pattern, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", p.Name, err)
		}
		compiled[i] = p
		compiled[i].re = re
		if p.Name == "credit_card" {
			compiled[i].validate = luhnValid
		}
	}
	return compiled, nil
}

// luhnValid checks a card-number candidate, ignoring spaces and dashes.
func luhnValid(s string) bool {
	var digits []int
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, int(c-'0'))
		case c != ' ' && c != '-':
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// ParseFlag parses the --redact flag value.
// "" means disabled, "true" means all patterns, "a,b" means a subset.
func ParseFlag(val string) (enabled bool, names []string) {
	switch val {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	}
	parts := strings.Split(val, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return true, parts
}
