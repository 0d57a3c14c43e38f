// Package grok extracts typed fields from free-text log messages with an
// ordered list of regular expressions and a literal prefix table.
package grok

import (
	"errors"
	"fmt"
	"regexp"
)

// CastType is the declared type of a named capture.
type CastType int

const (
	// CastText keeps the captured text as is. Names absent from the type table get it.
	CastText CastType = iota
	CastInteger
	CastFloat
)

func (c CastType) String() string {
	switch c {
	case CastInteger:
		return "integer"
	case CastFloat:
		return "float"
	default:
		return "text"
	}
}

// Rule is one uncompiled pattern.
type Rule struct {
	Pattern string
}

// PrefixLabel maps a literal message prefix to an operational event label.
type PrefixLabel struct {
	Prefix string
	Label  string
}

// Ruleset errors
var (
	ErrNoNamedGroups = errors.New("rule has no named capture groups")
	ErrEmptyPrefix   = errors.New("prefix cannot be empty")
	ErrEmptyLabel    = errors.New("label cannot be empty")
)

type compiledRule struct {
	re *regexp.Regexp
	// names[i] is the group name of submatch i+1, empty for unnamed groups
	names []string
}

// Ruleset is the compiled, read-only rule table. A single Ruleset is built
// at startup and shared by every file and stream worker without locking.
type Ruleset struct {
	rules    []compiledRule
	types    map[string]CastType
	prefixes []PrefixLabel
}

// NewRuleset compiles rules in order. The type and prefix tables are copied.
func NewRuleset(rules []Rule, types map[string]CastType, prefixes []PrefixLabel) (*Ruleset, error) {
	rs := &Ruleset{
		rules:    make([]compiledRule, 0, len(rules)),
		types:    make(map[string]CastType, len(types)),
		prefixes: make([]PrefixLabel, 0, len(prefixes)),
	}

	for i, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		names := re.SubexpNames()[1:]
		named := false
		for _, name := range names {
			if name != "" {
				named = true
				break
			}
		}
		if !named {
			return nil, fmt.Errorf("rule %d %q: %w", i, rule.Pattern, ErrNoNamedGroups)
		}
		rs.rules = append(rs.rules, compiledRule{re: re, names: names})
	}

	for name, typ := range types {
		rs.types[name] = typ
	}

	for i, p := range prefixes {
		if p.Prefix == "" {
			return nil, fmt.Errorf("prefix %d: %w", i, ErrEmptyPrefix)
		}
		if p.Label == "" {
			return nil, fmt.Errorf("prefix %d %q: %w", i, p.Prefix, ErrEmptyLabel)
		}
		rs.prefixes = append(rs.prefixes, p)
	}

	return rs, nil
}

// MustNewRuleset is NewRuleset for compiled-in tables.
func MustNewRuleset(rules []Rule, types map[string]CastType, prefixes []PrefixLabel) *Ruleset {
	rs, err := NewRuleset(rules, types, prefixes)
	if err != nil {
		panic(err)
	}
	return rs
}

// Len returns the number of rules.
func (rs *Ruleset) Len() int {
	return len(rs.rules)
}

// TypeOf returns the cast type declared for a capture name.
func (rs *Ruleset) TypeOf(name string) CastType {
	return rs.types[name]
}
