package loader

import (
	"fmt"
	"strings"

	"github.com/c360studio/semarch/hierarchy"
	"github.com/c360studio/semarch/processor/ast"
)

var typeKinds = map[ast.CodeEntityType]hierarchy.TypeKind{
	ast.TypeClass:     hierarchy.KindClass,
	ast.TypeInterface: hierarchy.KindInterface,
	ast.TypeEnum:      hierarchy.KindEnum,
	ast.TypeRecord:    hierarchy.KindRecord,
}

var memberCategories = map[ast.CodeEntityType]hierarchy.MemberCategory{
	ast.TypeConstructor: hierarchy.CategoryConstructor,
	ast.TypeField:       hierarchy.CategoryField,
	ast.TypeMethod:      hierarchy.CategoryMethod,
}

// Link resolves the type declarations of the given parse results into a
// registry. Results are processed in the order given.
//
// Parsers qualify a name they cannot resolve into the file's own package.
// When no such type is declared, Link retries the name through the file's
// on-demand imports ("com.acme.api.*") against the declared types.
func Link(results []*ast.ParseResult) (*hierarchy.Registry, error) {
	declared := make(map[string]bool)
	for _, result := range results {
		for _, entity := range result.Types() {
			declared[entity.ID] = true
		}
	}

	b := hierarchy.NewBuilder()
	for _, result := range results {
		qualify := onDemandResolver(result, declared)
		for _, entity := range result.Types() {
			spec := TypeSpec(result, entity)
			requalify(&spec, qualify)
			if err := b.Add(spec); err != nil {
				return nil, fmt.Errorf("link %s: %w", result.Path, err)
			}
		}
	}

	registry, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("link hierarchy: %w", err)
	}
	return registry, nil
}

// TypeSpec converts a type entity and its members into a hierarchy.TypeSpec.
func TypeSpec(result *ast.ParseResult, entity *ast.CodeEntity) hierarchy.TypeSpec {
	spec := hierarchy.TypeSpec{
		Name:        entity.ID,
		Package:     entity.Package,
		Kind:        typeKinds[entity.Type],
		Modifiers:   entity.Modifiers,
		Annotations: entity.Annotations,
		Source:      entity.Path,
	}

	switch entity.Type {
	case ast.TypeInterface:
		spec.Interfaces = entity.Extends
	default:
		if len(entity.Extends) > 0 {
			spec.Superclass = entity.Extends[0]
		}
		spec.Interfaces = entity.Implements
	}

	for _, member := range result.Members(entity.ID) {
		spec.Members = append(spec.Members, hierarchy.MemberSpec{
			Category:    memberCategories[member.Type],
			Name:        member.Name,
			Type:        member.ValueType,
			Parameters:  member.Parameters,
			Modifiers:   member.Modifiers,
			Annotations: member.Annotations,
			Line:        member.StartLine,
		})
	}
	return spec
}

// onDemandResolver returns a function that maps a name qualified into the
// file's package onto a declared type reachable through one of the file's
// on-demand imports. Declared and unmatched names are returned unchanged.
func onDemandResolver(result *ast.ParseResult, declared map[string]bool) func(string) string {
	var prefixes []string
	for _, imp := range result.Imports {
		if prefix, ok := strings.CutSuffix(imp, ".*"); ok {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) == 0 {
		return func(name string) string { return name }
	}

	return func(name string) string {
		base := strings.TrimRight(name, "[]")
		if base == "" || declared[base] {
			return name
		}
		simple := base
		if result.Package != "" {
			rest, ok := strings.CutPrefix(base, result.Package+".")
			if !ok {
				return name
			}
			simple = rest
		}
		for _, prefix := range prefixes {
			if candidate := prefix + "." + simple; declared[candidate] {
				return candidate + name[len(base):]
			}
		}
		return name
	}
}

// requalify applies qualify to every type name in spec.
func requalify(spec *hierarchy.TypeSpec, qualify func(string) string) {
	spec.Superclass = qualify(spec.Superclass)
	spec.Interfaces = qualifyAll(spec.Interfaces, qualify)
	spec.Annotations = qualifyAll(spec.Annotations, qualify)
	for i := range spec.Members {
		m := &spec.Members[i]
		m.Type = qualify(m.Type)
		m.Parameters = qualifyAll(m.Parameters, qualify)
		m.Annotations = qualifyAll(m.Annotations, qualify)
	}
}

func qualifyAll(names []string, qualify func(string) string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = qualify(name)
	}
	return out
}
