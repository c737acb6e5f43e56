// Package hierarchy models types and their declared members as an immutable
// descriptor graph, and computes inheritance closures over it.
//
// Descriptors are produced by a Builder, which resolves supertype names into
// links and rejects cyclic graphs. Once built, a descriptor never changes, so
// every function in this package is safe for concurrent use.
package hierarchy

import (
	"fmt"
	"slices"
	"strings"
)

// TypeKind classifies a type descriptor.
type TypeKind string

const (
	KindClass     TypeKind = "class"
	KindInterface TypeKind = "interface"
	KindEnum      TypeKind = "enum"
	KindRecord    TypeKind = "record"

	// KindExternal marks a type that is referenced but was not loaded. It has
	// no supertypes and no members.
	KindExternal TypeKind = "external"
)

// MemberCategory selects constructors, fields or methods.
type MemberCategory string

const (
	CategoryConstructor MemberCategory = "constructor"
	CategoryField       MemberCategory = "field"
	CategoryMethod      MemberCategory = "method"
)

// Categories returns every member category in a fixed order.
func Categories() []MemberCategory {
	return []MemberCategory{CategoryConstructor, CategoryField, CategoryMethod}
}

// ParseMemberCategory parses a category name. Plural forms are accepted.
func ParseMemberCategory(s string) (MemberCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constructor", "constructors":
		return CategoryConstructor, nil
	case "field", "fields":
		return CategoryField, nil
	case "method", "methods":
		return CategoryMethod, nil
	}
	return "", fmt.Errorf("unknown member category %q", s)
}

// TypeDescriptor describes one class or interface and its direct supertypes.
// Identity is the fully qualified name.
type TypeDescriptor struct {
	name        string
	pkg         string
	kind        TypeKind
	superclass  *TypeDescriptor
	interfaces  []*TypeDescriptor
	modifiers   []string
	annotations []string
	source      string
	members     map[MemberCategory][]*MemberDescriptor
}

// Name returns the fully qualified name.
func (t *TypeDescriptor) Name() string { return t.name }

// SimpleName returns the name without its package.
func (t *TypeDescriptor) SimpleName() string {
	if i := strings.LastIndex(t.name, "."); i >= 0 {
		return t.name[i+1:]
	}
	return t.name
}

// Package returns the declaring package, or "" for the default package.
// Nested types report the package of their outermost type.
func (t *TypeDescriptor) Package() string { return t.pkg }

// packageOf guesses the package of a qualified name for types whose loader
// did not say, taking everything before the last dot.
func packageOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}

func (t *TypeDescriptor) Kind() TypeKind { return t.kind }

// IsExternal reports whether the type was referenced but never loaded.
func (t *TypeDescriptor) IsExternal() bool { return t.kind == KindExternal }

// Superclass returns the direct superclass, or nil for root types and
// interfaces.
func (t *TypeDescriptor) Superclass() *TypeDescriptor { return t.superclass }

// Interfaces returns the directly declared interfaces in declaration order.
func (t *TypeDescriptor) Interfaces() []*TypeDescriptor { return slices.Clone(t.interfaces) }

func (t *TypeDescriptor) Modifiers() []string { return slices.Clone(t.modifiers) }

func (t *TypeDescriptor) Annotations() []string { return slices.Clone(t.annotations) }

// Source returns the path the type was loaded from, if known.
func (t *TypeDescriptor) Source() string { return t.source }

// HasModifier reports whether the type declares the given modifier.
func (t *TypeDescriptor) HasModifier(modifier string) bool {
	return slices.Contains(t.modifiers, modifier)
}

// DeclaredMembers returns the members of category declared directly on t,
// in declaration order.
func (t *TypeDescriptor) DeclaredMembers(category MemberCategory) []*MemberDescriptor {
	return slices.Clone(t.members[category])
}

func (t *TypeDescriptor) String() string { return t.name }

// MemberDescriptor describes a constructor, field or method declared directly
// on its owner.
type MemberDescriptor struct {
	category    MemberCategory
	name        string
	owner       *TypeDescriptor
	typeName    string
	parameters  []string
	modifiers   []string
	annotations []string
	line        int
}

func (m *MemberDescriptor) Category() MemberCategory { return m.category }

func (m *MemberDescriptor) Name() string { return m.name }

// Owner returns the declaring type.
func (m *MemberDescriptor) Owner() *TypeDescriptor { return m.owner }

// TypeName returns the field type or method return type. It is empty for
// constructors.
func (m *MemberDescriptor) TypeName() string { return m.typeName }

// Parameters returns the parameter type names of a method or constructor.
func (m *MemberDescriptor) Parameters() []string { return slices.Clone(m.parameters) }

func (m *MemberDescriptor) Modifiers() []string { return slices.Clone(m.modifiers) }

func (m *MemberDescriptor) Annotations() []string { return slices.Clone(m.annotations) }

// Line returns the 1-based source line, or 0 when unknown.
func (m *MemberDescriptor) Line() int { return m.line }

func (m *MemberDescriptor) HasModifier(modifier string) bool {
	return slices.Contains(m.modifiers, modifier)
}

// String renders the member as Owner.name, with a parameter list for
// constructors and methods.
func (m *MemberDescriptor) String() string {
	owner := ""
	if m.owner != nil {
		owner = m.owner.name
	}
	if m.category == CategoryField {
		return owner + "." + m.name
	}
	return fmt.Sprintf("%s.%s(%s)", owner, m.name, strings.Join(m.parameters, ", "))
}
