package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semarch/hierarchy"
	"github.com/c360studio/semarch/rules"
)

func fixture(t *testing.T) (*rules.Result, *rules.RuleSet) {
	t.Helper()

	set, err := rules.Compile([]rules.Rule{
		{Name: "no-public-fields", Category: "field", Members: rules.Selector{Modifier: "public"}},
		{Name: "no-static-methods", Category: "method", Members: rules.Selector{Modifier: "static"}},
	})
	require.NoError(t, err)

	result := &rules.Result{
		RunID: "run-1",
		Rules: 2,
		Types: 3,
		Violations: []rules.Violation{
			{
				Rule:     "no-public-fields",
				Type:     "zoo.Animal",
				Member:   "zoo.Animal.id",
				Category: hierarchy.CategoryField,
				Source:   "zoo/Animal.java",
				Line:     4,
				Message:  "field zoo.Animal.id of zoo.Animal is public",
			},
			{
				Rule:     "no-public-fields",
				Type:     "zoo.Mammal",
				Member:   "zoo.Animal.id",
				Category: hierarchy.CategoryField,
				Message:  "field zoo.Animal.id of zoo.Mammal is public",
			},
		},
	}
	return result, set
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{" JSON ", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tc := range tests {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestRender_Text(t *testing.T) {
	result, set := fixture(t)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, result, set, Options{Format: FormatText, NoColor: true}))

	want := "✗ no-public-fields: no fields of any type should be public\n" +
		"    zoo/Animal.java:4  field zoo.Animal.id of zoo.Animal is public\n" +
		"    field zoo.Animal.id of zoo.Mammal is public\n" +
		"✓ no-static-methods\n" +
		"\n" +
		"2 violations in 1 of 2 rules (3 types checked, run run-1)\n"
	assert.Equal(t, want, buf.String())
}

func TestRender_TextPassed(t *testing.T) {
	_, set := fixture(t)
	result := &rules.Result{RunID: "run-2", Rules: 2, Types: 1}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, result, set, Options{NoColor: true}))
	assert.Contains(t, buf.String(), "✓ no-public-fields\n✓ no-static-methods\n")
	assert.Contains(t, buf.String(), "2 rules passed (1 type checked, run run-2)")
}

func TestRender_JSON(t *testing.T) {
	result, set := fixture(t)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, result, set, Options{Format: FormatJSON}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.EqualValues(t, 2, decoded["rules"])

	violations, ok := decoded["violations"].([]any)
	require.True(t, ok)
	require.Len(t, violations, 2)
	first := violations[0].(map[string]any)
	assert.Equal(t, "field", first["category"])
	assert.Equal(t, "zoo/Animal.java", first["source"])
	_, hasSource := violations[1].(map[string]any)["source"]
	assert.False(t, hasSource)
}

func TestRender_UnknownFormat(t *testing.T) {
	result, set := fixture(t)
	err := Render(&bytes.Buffer{}, result, set, Options{Format: "xml"})
	assert.ErrorContains(t, err, "unknown format")
}
