package grok

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCast is wrapped by every CastError.
var ErrCast = errors.New("capture cast failed")

// CastError reports a named capture that does not parse as its declared type.
// The capture shape is constrained by the rule, so this points at a rule table
// bug rather than bad input.
type CastError struct {
	Field string
	Type  CastType
	Text  string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast %s=%q to %s: %v", e.Field, e.Text, e.Type, e.Err)
}

func (e *CastError) Unwrap() []error {
	return []error{ErrCast, e.Err}
}

// Value is a typed field value.
type Value struct {
	Type  CastType
	Text  string
	Int   int64
	Float float64
}

// TextValue returns a text Value.
func TextValue(s string) Value { return Value{Type: CastText, Text: s} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{Type: CastInteger, Int: i} }

// FloatValue returns a floating-point Value.
func FloatValue(f float64) Value { return Value{Type: CastFloat, Float: f} }

func (v Value) String() string {
	switch v.Type {
	case CastInteger:
		return strconv.FormatInt(v.Int, 10)
	case CastFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Text
	}
}

// Field is one extracted key/value pair.
type Field struct {
	Key   string
	Value Value
}

// Capture is the raw text of one named group.
type Capture struct {
	Name string
	Text string
}

// Extraction is the result of running a Ruleset over one message.
type Extraction struct {
	// Rule is the index of the matching rule, -1 when none matched
	Rule int
	// Fields come from the matching rule in group order
	Fields []Field
	// Label is the prefix table label, empty when no prefix matched
	Label string
}

// Empty reports whether neither the rules nor the prefix table produced anything.
func (e Extraction) Empty() bool {
	return len(e.Fields) == 0 && e.Label == ""
}

// Match finds the first rule matching text and returns its named captures.
// Groups that did not take part in the match are left out.
func (rs *Ruleset) Match(text string) (int, []Capture, bool) {
	for i, rule := range rs.rules {
		loc := rule.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}

		captures := make([]Capture, 0, len(rule.names))
		for g, name := range rule.names {
			start, end := loc[2*(g+1)], loc[2*(g+1)+1]
			if name == "" || start < 0 {
				continue
			}
			captures = append(captures, Capture{Name: name, Text: text[start:end]})
		}
		return i, captures, true
	}
	return -1, nil, false
}

// Label returns the label of the first prefix text starts with.
func (rs *Ruleset) Label(text string) (string, bool) {
	for _, p := range rs.prefixes {
		if strings.HasPrefix(text, p.Prefix) {
			return p.Label, true
		}
	}
	return "", false
}

// Extract runs the rules and the prefix table over text. A CastError aborts
// the whole extraction.
func (rs *Ruleset) Extract(text string) (Extraction, error) {
	ex := Extraction{Rule: -1}

	if i, captures, ok := rs.Match(text); ok {
		ex.Rule = i
		ex.Fields = make([]Field, 0, len(captures))
		for _, c := range captures {
			v, err := rs.cast(c)
			if err != nil {
				return Extraction{Rule: -1}, err
			}
			ex.Fields = append(ex.Fields, Field{Key: c.Name, Value: v})
		}
	}

	if label, ok := rs.Label(text); ok {
		ex.Label = label
	}

	return ex, nil
}

func (rs *Ruleset) cast(c Capture) (Value, error) {
	typ := rs.TypeOf(c.Name)
	if typ == CastText {
		return TextValue(c.Text), nil
	}

	clean := strings.ReplaceAll(c.Text, ",", "")
	switch typ {
	case CastInteger:
		i, err := strconv.ParseInt(clean, 10, 64)
		if err != nil {
			return Value{}, &CastError{Field: c.Name, Type: typ, Text: c.Text, Err: err}
		}
		return IntValue(i), nil
	default:
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return Value{}, &CastError{Field: c.Name, Type: typ, Text: c.Text, Err: err}
		}
		return FloatValue(f), nil
	}
}
