package extract

import (
	"regexp"
	"strings"
)

// Span is a half-open byte range [Start, End) of the searched text.
type Span struct {
	Start int
	End   int
}

// Match is a successful Field search: the trimmed value and the span of the
// whole match, label included.
type Match struct {
	Field string
	Value string
	Span  Span
}

// Field is a named single-match search over canonical text. The first match
// wins and the value is capture group 1.
type Field struct {
	Name       string
	re         *regexp.Regexp
	allowEmpty bool
}

// NewField compiles pattern, which must contain one capture group.
func NewField(name, pattern string) Field {
	return Field{Name: name, re: regexp.MustCompile(pattern)}
}

// AllowEmpty returns a copy of f that matches even when the captured value is blank.
func (f Field) AllowEmpty() Field {
	f.allowEmpty = true
	return f
}

// Find returns the first match of f in text.
func (f Field) Find(text string) (Match, bool) {
	loc := f.re.FindStringSubmatchIndex(text)
	if loc == nil || len(loc) < 4 || loc[2] < 0 {
		return Match{}, false
	}
	v := strings.TrimSpace(text[loc[2]:loc[3]])
	if v == "" && !f.allowEmpty {
		return Match{}, false
	}
	return Match{Field: f.Name, Value: v, Span: Span{Start: loc[0], End: loc[1]}}, true
}

// Matches holds the result of a Grammar run keyed by field name.
type Matches map[string]Match

// Value returns the matched value of field, or "".
func (m Matches) Value(field string) string {
	return m[field].Value
}

// Grammar is an ordered list of required fields.
type Grammar []Field

// Apply runs the fields left to right and stops at the first one that does
// not match, reporting it as a *MissingFieldError.
func (g Grammar) Apply(text string) (Matches, error) {
	out := make(Matches, len(g))
	for _, f := range g {
		m, ok := f.Find(text)
		if !ok {
			return nil, &MissingFieldError{Field: f.Name}
		}
		out[f.Name] = m
	}
	return out, nil
}
