package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semarch/hierarchy"
)

// RuleSet is an ordered set of compiled rules.
type RuleSet struct {
	rules []*CompiledRule
}

// Rules returns the compiled rules in file order.
func (s *RuleSet) Rules() []*CompiledRule {
	return append([]*CompiledRule(nil), s.rules...)
}

// Len returns the number of rules.
func (s *RuleSet) Len() int { return len(s.rules) }

// CompiledRule is a validated rule with its predicates built.
type CompiledRule struct {
	rule     Rule
	category hierarchy.MemberCategory
	types    typePred
	members  memberPred
}

func (r *CompiledRule) Name() string                       { return r.rule.Name }
func (r *CompiledRule) Category() hierarchy.MemberCategory { return r.category }
func (r *CompiledRule) Expect() Expectation                { return r.rule.Expect }

// Description returns the rule's own description, or one generated from
// its selectors.
func (r *CompiledRule) Description() string {
	if r.rule.Description != "" {
		return r.rule.Description
	}

	types := "any type"
	if !r.rule.Types.IsZero() {
		types = "types " + r.types.String()
	}
	if r.rule.Members.IsZero() {
		if r.rule.Expect == ExpectAll {
			return fmt.Sprintf("%s may have any %ss", types, r.category)
		}
		return fmt.Sprintf("%s should not have %ss", types, r.category)
	}
	quantifier := "no"
	if r.rule.Expect == ExpectAll {
		quantifier = "all"
	}
	return fmt.Sprintf("%s %ss of %s should be %s", quantifier, r.category, types, r.members)
}

// Evaluate checks every declared type selected by the rule.
func (r *CompiledRule) Evaluate(registry *hierarchy.Registry) []Violation {
	flagged := r.members
	if r.rule.Expect == ExpectAll {
		flagged = r.members.Negate()
	}
	reason, ok := flagged.Description()
	switch {
	case r.rule.Members.IsZero():
		reason = "not allowed"
	case !ok:
		reason = "in violation of " + r.rule.Name
	}

	var violations []Violation
	for _, t := range registry.Types() {
		if !r.types.Apply(t) {
			continue
		}
		for _, m := range hierarchy.Query(t, r.category, flagged) {
			violations = append(violations, Violation{
				Rule:     r.rule.Name,
				Type:     t.Name(),
				Member:   m.String(),
				Category: r.category,
				Source:   m.Owner().Source(),
				Line:     m.Line(),
				Message:  fmt.Sprintf("%s %s of %s is %s", r.category, m, t.Name(), reason),
			})
		}
	}
	return violations
}

// Violation is one member that breaks a rule, reported against the type
// whose hierarchy it was collected from.
type Violation struct {
	Rule     string                   `json:"rule"`
	Type     string                   `json:"type"`
	Member   string                   `json:"member"`
	Category hierarchy.MemberCategory `json:"category"`
	Source   string                   `json:"source,omitempty"`
	Line     int                      `json:"line,omitempty"`
	Message  string                   `json:"message"`
}

// Result is the outcome of one check run.
type Result struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Rules      int           `json:"rules"`
	Types      int           `json:"types"`
	Violations []Violation   `json:"violations"`
}

// Passed reports whether the run found no violations.
func (r *Result) Passed() bool { return len(r.Violations) == 0 }

// Checker runs a rule set against type hierarchies.
type Checker struct {
	rules  *RuleSet
	logger *slog.Logger
}

// NewChecker creates a checker. A nil logger means slog.Default().
func NewChecker(rules *RuleSet, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{rules: rules, logger: logger}
}

// Check evaluates every rule. It stops between rules when ctx is done.
func (c *Checker) Check(ctx context.Context, registry *hierarchy.Registry) (*Result, error) {
	result := &Result{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now(),
		Rules:      c.rules.Len(),
		Types:      registry.Len(),
		Violations: make([]Violation, 0),
	}

	for _, rule := range c.rules.rules {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("check %s: %w", rule.Name(), err)
		}

		violations := rule.Evaluate(registry)
		c.logger.Debug("Evaluated rule",
			"run_id", result.RunID,
			"rule", rule.Name(),
			"violations", len(violations))
		result.Violations = append(result.Violations, violations...)
	}

	result.Duration = time.Since(result.StartedAt)
	c.logger.Info("Check complete",
		"run_id", result.RunID,
		"rules", result.Rules,
		"types", result.Types,
		"violations", len(result.Violations),
		"duration", result.Duration)

	return result, nil
}
