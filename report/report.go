// Package report renders check results for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/c360studio/semarch/rules"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text or json)", s)
}

// Options configures rendering.
type Options struct {
	Format Format

	// NoColor disables ANSI colors in text output. Color is otherwise
	// enabled only when the output is a terminal.
	NoColor bool
}

// Render writes result in the requested format. Rules without violations
// are listed as passing in text output.
func Render(w io.Writer, result *rules.Result, set *rules.RuleSet, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatText, "":
		return renderText(w, result, set, opts)
	}
	return fmt.Errorf("render report: unknown format %q", opts.Format)
}

func renderJSON(w io.Writer, result *rules.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

type palette struct {
	pass, fail, location, summary *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		pass:     color.New(color.FgGreen),
		fail:     color.New(color.FgRed, color.Bold),
		location: color.New(color.Faint),
		summary:  color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.pass, p.fail, p.location, p.summary} {
			c.DisableColor()
		}
	}
	return p
}

// renderText writes one line per rule followed by its violations:
//
//	✗ no-public-fields: no fields of any type should be public
//	    src/Foo.java:12  field Foo.x of Foo is public
//	✓ getters-named
//
//	1 violation in 1 of 2 rules (run 6f1c...)
func renderText(w io.Writer, result *rules.Result, set *rules.RuleSet, opts Options) error {
	p := newPalette(opts.NoColor)

	byRule := make(map[string][]rules.Violation)
	for _, v := range result.Violations {
		byRule[v.Rule] = append(byRule[v.Rule], v)
	}

	var b strings.Builder
	failed := 0
	for _, rule := range set.Rules() {
		violations := byRule[rule.Name()]
		if len(violations) == 0 {
			p.pass.Fprintf(&b, "✓ %s\n", rule.Name())
			continue
		}

		failed++
		p.fail.Fprintf(&b, "✗ %s", rule.Name())
		fmt.Fprintf(&b, ": %s\n", rule.Description())
		for _, v := range violations {
			b.WriteString("    ")
			if v.Source != "" {
				p.location.Fprintf(&b, "%s  ", location(v))
			}
			b.WriteString(v.Message)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if result.Passed() {
		p.pass.Fprintf(&b, "%s passed", plural(result.Rules, "rule"))
	} else {
		p.summary.Fprintf(&b, "%s in %d of %s",
			plural(len(result.Violations), "violation"), failed, plural(result.Rules, "rule"))
	}
	fmt.Fprintf(&b, " (%s checked, run %s)\n", plural(result.Types, "type"), result.RunID)

	_, err := io.WriteString(w, b.String())
	return err
}

func location(v rules.Violation) string {
	if v.Line > 0 {
		return fmt.Sprintf("%s:%d", v.Source, v.Line)
	}
	return v.Source
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
