package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semarch/hierarchy"
)

// serviceRegistry builds
//
//	svc.Service (interface) <- svc.BaseService <- svc.OrderService
func serviceRegistry(t *testing.T) *hierarchy.Registry {
	t.Helper()

	specs := []hierarchy.TypeSpec{
		{
			Name: "svc.Service",
			Kind: hierarchy.KindInterface,
			Members: []hierarchy.MemberSpec{
				{Category: hierarchy.CategoryMethod, Name: "handle", Type: "void", Modifiers: []string{"public", "abstract"}, Line: 3},
			},
		},
		{
			Name:       "svc.BaseService",
			Interfaces: []string{"svc.Service"},
			Source:     "svc/BaseService.java",
			Members: []hierarchy.MemberSpec{
				{Category: hierarchy.CategoryField, Name: "counter", Type: "int", Modifiers: []string{"public"}, Line: 4},
				{Category: hierarchy.CategoryMethod, Name: "handle", Type: "void", Modifiers: []string{"public"}, Line: 6},
			},
		},
		{
			Name:       "svc.OrderService",
			Superclass: "svc.BaseService",
			Source:     "svc/OrderService.java",
			Members: []hierarchy.MemberSpec{
				{Category: hierarchy.CategoryField, Name: "repo", Type: "repo.OrderRepo", Modifiers: []string{"private", "final"}, Line: 5},
				{Category: hierarchy.CategoryMethod, Name: "place", Type: "void", Modifiers: []string{"public"}, Annotations: []string{"tx.Transactional"}, Line: 8},
				{Category: hierarchy.CategoryMethod, Name: "helper", Type: "void", Modifiers: []string{"private"}, Line: 12},
			},
		},
		{Name: "repo.OrderRepo", Kind: hierarchy.KindInterface},
	}

	b := hierarchy.NewBuilder()
	for _, spec := range specs {
		require.NoError(t, b.Add(spec))
	}
	registry, err := b.Build()
	require.NoError(t, err)
	return registry
}

func compileOne(t *testing.T, rule Rule) *CompiledRule {
	t.Helper()
	set, err := Compile([]Rule{rule})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	return set.Rules()[0]
}

func messages(violations []Violation) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Message
	}
	return out
}

func TestCompile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr string
	}{
		{
			name:    "missing name",
			rules:   []Rule{{Category: "field"}},
			wantErr: "name is required",
		},
		{
			name:    "duplicate name",
			rules:   []Rule{{Name: "a", Category: "field"}, {Name: "a", Category: "method"}},
			wantErr: "duplicate name",
		},
		{
			name:    "unknown category",
			rules:   []Rule{{Name: "a", Category: "property"}},
			wantErr: "unknown member category",
		},
		{
			name:    "unknown expectation",
			rules:   []Rule{{Name: "a", Category: "field", Expect: "some"}},
			wantErr: "unknown expectation",
		},
		{
			name:    "member criterion on types",
			rules:   []Rule{{Name: "a", Category: "field", Types: Selector{Type: "int"}}},
			wantErr: "only apply to members",
		},
		{
			name:    "type criterion on members",
			rules:   []Rule{{Name: "a", Category: "field", Members: Selector{Not: &Selector{Package: "p"}}}},
			wantErr: "only apply to types",
		},
		{
			name:    "unknown kind",
			rules:   []Rule{{Name: "a", Category: "field", Types: Selector{Kind: "struct"}}},
			wantErr: "unknown kind",
		},
		{
			name:    "bad pattern",
			rules:   []Rule{{Name: "a", Category: "method", Members: Selector{Name: "get["}}},
			wantErr: "invalid pattern",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.rules)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRule)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestCompile_Defaults(t *testing.T) {
	rule := compileOne(t, Rule{Name: " spaced ", Category: "Fields"})
	assert.Equal(t, "spaced", rule.Name())
	assert.Equal(t, hierarchy.CategoryField, rule.Category())
	assert.Equal(t, ExpectNone, rule.Expect())
	assert.Equal(t, "any type should not have fields", rule.Description())
}

func TestCompiledRule_Description(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "no-public-fields",
		Types:    Selector{Implements: "svc.Service"},
		Category: "field",
		Members:  Selector{Modifier: "public"},
	})
	assert.Equal(t, "no fields of types assignable to svc.Service should be public", rule.Description())

	rule = compileOne(t, Rule{
		Name:     "getters",
		Category: "method",
		Members:  Selector{Modifier: "public", Not: &Selector{Name: "get*"}},
		Expect:   ExpectAll,
	})
	assert.Equal(t, "all methods of any type should be public and not matching 'get*'", rule.Description())

	rule = compileOne(t, Rule{Name: "explicit", Description: "says so", Category: "method"})
	assert.Equal(t, "says so", rule.Description())
}

func TestEvaluate_ExpectNone(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "no-public-fields",
		Types:    Selector{Implements: "svc.Service"},
		Category: "field",
		Members:  Selector{Modifier: "public"},
	})

	violations := rule.Evaluate(serviceRegistry(t))
	assert.Equal(t, []string{
		"field svc.BaseService.counter of svc.BaseService is public",
		"field svc.BaseService.counter of svc.OrderService is public",
	}, messages(violations))

	v := violations[1]
	assert.Equal(t, "no-public-fields", v.Rule)
	assert.Equal(t, "svc.OrderService", v.Type)
	assert.Equal(t, "svc.BaseService.counter", v.Member)
	assert.Equal(t, hierarchy.CategoryField, v.Category)
	assert.Equal(t, "svc/BaseService.java", v.Source)
	assert.Equal(t, 4, v.Line)
}

func TestEvaluate_EmptyMemberSelector(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "no-fields",
		Types:    Selector{Name: "svc.Order*"},
		Category: "field",
	})
	assert.Equal(t, "types matching 'svc.Order*' should not have fields", rule.Description())
	assert.Equal(t, []string{
		"field svc.OrderService.repo of svc.OrderService is not allowed",
		"field svc.BaseService.counter of svc.OrderService is not allowed",
	}, messages(rule.Evaluate(serviceRegistry(t))))

	rule = compileOne(t, Rule{Name: "anything-goes", Category: "method", Expect: ExpectAll})
	assert.Equal(t, "any type may have any methods", rule.Description())
	assert.Empty(t, rule.Evaluate(serviceRegistry(t)))
}

func TestEvaluate_ExpectAll(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "transactional",
		Types:    Selector{Name: "svc.Order*"},
		Category: "methods",
		Members:  Selector{Annotation: "Transactional"},
		Expect:   ExpectAll,
	})

	assert.Equal(t, []string{
		"method svc.OrderService.helper() of svc.OrderService is not annotated with @Transactional",
		"method svc.BaseService.handle() of svc.OrderService is not annotated with @Transactional",
		"method svc.Service.handle() of svc.OrderService is not annotated with @Transactional",
	}, messages(rule.Evaluate(serviceRegistry(t))))
}

func TestEvaluate_NestedNot(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "interfaces-only-abstract",
		Types:    Selector{Not: &Selector{Kind: "interface"}},
		Category: "method",
		Members:  Selector{Modifier: "public", Not: &Selector{DeclaredIn: "svc.Service"}},
	})

	assert.Equal(t, []string{
		"method svc.BaseService.handle() of svc.BaseService is public and not declared in svc.Service",
		"method svc.OrderService.place() of svc.OrderService is public and not declared in svc.Service",
		"method svc.BaseService.handle() of svc.OrderService is public and not declared in svc.Service",
	}, messages(rule.Evaluate(serviceRegistry(t))))
}

func TestEvaluate_MemberType(t *testing.T) {
	rule := compileOne(t, Rule{
		Name:     "repo-fields",
		Category: "field",
		Members:  Selector{Type: "OrderRepo", Not: &Selector{Modifier: "final"}},
	})
	assert.Empty(t, rule.Evaluate(serviceRegistry(t)))
}

func TestParse(t *testing.T) {
	data := []byte(`
rules:
  - name: no-public-fields
    description: services keep their state private
    types: { implements: svc.Service }
    category: field
    members: { modifier: public }
  - name: transactional
    types:
      name: "svc.Order*"
    category: methods
    members:
      annotation: Transactional
      not:
        modifier: private
    expect: all
`)

	set, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	rules := set.Rules()
	assert.Equal(t, "services keep their state private", rules[0].Description())
	assert.Equal(t, ExpectAll, rules[1].Expect())
	assert.Equal(t, "all methods of types matching 'svc.Order*' should be annotated with @Transactional and not private",
		rules[1].Description())

	_, err = Parse([]byte("rules: [unterminated"))
	assert.ErrorContains(t, err, "parse rules")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: r\n    category: field\n    expect: maybe\n"), 0644))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.ErrorContains(t, err, path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChecker_Check(t *testing.T) {
	set, err := Compile([]Rule{
		{Name: "no-public-fields", Types: Selector{Implements: "svc.Service"}, Category: "field", Members: Selector{Modifier: "public"}},
		{Name: "no-private-methods", Category: "method", Members: Selector{Modifier: "private"}},
	})
	require.NoError(t, err)

	result, err := NewChecker(set, nil).Check(context.Background(), serviceRegistry(t))
	require.NoError(t, err)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Rules)
	assert.Equal(t, 4, result.Types)
	assert.False(t, result.Passed())
	require.Len(t, result.Violations, 3)
	assert.Equal(t, "no-private-methods", result.Violations[2].Rule)

	// Each run gets its own ID.
	again, err := NewChecker(set, nil).Check(context.Background(), serviceRegistry(t))
	require.NoError(t, err)
	assert.NotEqual(t, result.RunID, again.RunID)
}

func TestChecker_Passed(t *testing.T) {
	set, err := Compile(nil)
	require.NoError(t, err)

	result, err := NewChecker(set, nil).Check(context.Background(), serviceRegistry(t))
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.NotNil(t, result.Violations)
}

func TestChecker_Cancelled(t *testing.T) {
	set, err := Compile([]Rule{{Name: "r", Category: "field"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewChecker(set, nil).Check(ctx, serviceRegistry(t))
	assert.ErrorIs(t, err, context.Canceled)
}
