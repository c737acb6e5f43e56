// Package rules evaluates architecture rules over a type hierarchy. A rule
// selects types, collects one category of members across each selected
// type's hierarchy and checks them against a member selector.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semarch/hierarchy"
)

// ErrInvalidRule is returned when a rule file cannot be compiled.
var ErrInvalidRule = errors.New("invalid rule")

// Expectation states what a rule requires of the collected members.
type Expectation string

const (
	// ExpectNone flags every member accepted by the member selector.
	ExpectNone Expectation = "none"

	// ExpectAll flags every member rejected by the member selector.
	ExpectAll Expectation = "all"
)

// File is the on-disk rule file.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// Rule is one architecture rule as written in a rule file.
type Rule struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Types       Selector    `yaml:"types,omitempty"`
	Category    string      `yaml:"category"`
	Members     Selector    `yaml:"members,omitempty"`
	Expect      Expectation `yaml:"expect,omitempty"`
}

// Selector is a set of criteria that must all hold. Some criteria only
// apply to types and some only to members.
type Selector struct {
	Name       string    `yaml:"name,omitempty"`
	Modifier   string    `yaml:"modifier,omitempty"`
	Annotation string    `yaml:"annotation,omitempty"`
	Not        *Selector `yaml:"not,omitempty"`

	// Types only
	Package    string `yaml:"package,omitempty"`
	Implements string `yaml:"implements,omitempty"`
	Kind       string `yaml:"kind,omitempty"`

	// Members only
	Type       string `yaml:"type,omitempty"`
	DeclaredIn string `yaml:"declared_in,omitempty"`
}

// IsZero reports whether the selector has no criteria.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// LoadFile reads and compiles a rule file.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse compiles rules from YAML.
func Parse(data []byte) (*RuleSet, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return Compile(file.Rules)
}

// Compile validates rules and builds their predicates.
func Compile(rules []Rule) (*RuleSet, error) {
	set := &RuleSet{}
	seen := make(map[string]bool)

	for i, rule := range rules {
		rule.Name = strings.TrimSpace(rule.Name)
		if rule.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required: %w", i+1, ErrInvalidRule)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("rule %s: duplicate name: %w", rule.Name, ErrInvalidRule)
		}
		seen[rule.Name] = true

		compiled, err := compile(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w: %w", rule.Name, err, ErrInvalidRule)
		}
		set.rules = append(set.rules, compiled)
	}
	return set, nil
}

func compile(rule Rule) (*CompiledRule, error) {
	category, err := hierarchy.ParseMemberCategory(rule.Category)
	if err != nil {
		return nil, err
	}

	switch rule.Expect {
	case "":
		rule.Expect = ExpectNone
	case ExpectNone, ExpectAll:
	default:
		return nil, fmt.Errorf("unknown expectation %q", rule.Expect)
	}

	types, err := typePredicate(rule.Types)
	if err != nil {
		return nil, fmt.Errorf("types: %w", err)
	}
	members, err := memberPredicate(rule.Members)
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}

	return &CompiledRule{
		rule:     rule,
		category: category,
		types:    types,
		members:  members,
	}, nil
}
