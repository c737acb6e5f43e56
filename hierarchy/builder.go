package hierarchy

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrDuplicateType is returned when a qualified name is declared twice.
	ErrDuplicateType = errors.New("duplicate type")

	// ErrCyclicHierarchy is returned when resolved supertype links form a cycle.
	ErrCyclicHierarchy = errors.New("cyclic type hierarchy")

	// ErrUnknownType is returned when a name is not present in a Registry.
	ErrUnknownType = errors.New("unknown type")
)

// MemberSpec is the plain-data form of a member, as supplied by a loader.
type MemberSpec struct {
	Category    MemberCategory
	Name        string
	Type        string
	Parameters  []string
	Modifiers   []string
	Annotations []string
	Line        int
}

// TypeSpec is the plain-data form of a type. Supertypes are referenced by
// qualified name; names that are never declared resolve to external types.
// An empty Package is derived from Name, which is wrong for nested types, so
// loaders that know the package should set it.
type TypeSpec struct {
	Name        string
	Package     string
	Kind        TypeKind
	Superclass  string
	Interfaces  []string
	Modifiers   []string
	Annotations []string
	Source      string
	Members     []MemberSpec
}

// Builder collects type specs and links them into a Registry.
// A Builder is not safe for concurrent use.
type Builder struct {
	specs map[string]TypeSpec
	order []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{specs: make(map[string]TypeSpec)}
}

// Add records a type spec. Declaring the same name twice returns
// ErrDuplicateType.
func (b *Builder) Add(spec TypeSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("add type: empty name")
	}
	if _, exists := b.specs[spec.Name]; exists {
		return fmt.Errorf("add type %s: %w", spec.Name, ErrDuplicateType)
	}
	if spec.Kind == "" {
		spec.Kind = KindClass
	}
	b.specs[spec.Name] = spec
	b.order = append(b.order, spec.Name)
	return nil
}

// Len returns the number of specs added so far.
func (b *Builder) Len() int { return len(b.order) }

// Build resolves all supertype names and returns the linked registry.
// An interface's Superclass, if set, is treated as an extended interface.
func (b *Builder) Build() (*Registry, error) {
	r := &Registry{types: make(map[string]*TypeDescriptor, len(b.specs))}

	for _, name := range b.order {
		spec := b.specs[name]
		pkg := strings.TrimSpace(spec.Package)
		if pkg == "" {
			pkg = packageOf(spec.Name)
		}
		t := &TypeDescriptor{
			name:        spec.Name,
			pkg:         pkg,
			kind:        spec.Kind,
			modifiers:   slices.Clone(spec.Modifiers),
			annotations: slices.Clone(spec.Annotations),
			source:      spec.Source,
			members:     make(map[MemberCategory][]*MemberDescriptor),
		}
		for _, ms := range spec.Members {
			t.members[ms.Category] = append(t.members[ms.Category], &MemberDescriptor{
				category:    ms.Category,
				name:        ms.Name,
				owner:       t,
				typeName:    ms.Type,
				parameters:  slices.Clone(ms.Parameters),
				modifiers:   slices.Clone(ms.Modifiers),
				annotations: slices.Clone(ms.Annotations),
				line:        ms.Line,
			})
		}
		r.types[name] = t
		r.declared = append(r.declared, name)
	}

	for _, name := range b.order {
		spec := b.specs[name]
		t := r.types[name]

		interfaces := spec.Interfaces
		if spec.Superclass != "" {
			if spec.Kind == KindInterface {
				interfaces = append([]string{spec.Superclass}, interfaces...)
			} else {
				t.superclass = r.resolve(spec.Superclass)
			}
		}
		for _, iface := range interfaces {
			if iface = strings.TrimSpace(iface); iface != "" {
				t.interfaces = append(t.interfaces, r.resolve(iface))
			}
		}
	}

	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}
	sort.Strings(r.declared)
	return r, nil
}

// Registry holds a linked, acyclic descriptor graph.
type Registry struct {
	types    map[string]*TypeDescriptor
	declared []string
}

// resolve returns the descriptor for name, creating an external one on first
// reference.
func (r *Registry) resolve(name string) *TypeDescriptor {
	name = strings.TrimSpace(name)
	if t, ok := r.types[name]; ok {
		return t
	}
	t := &TypeDescriptor{name: name, pkg: packageOf(name), kind: KindExternal}
	r.types[name] = t
	return t
}

func (r *Registry) checkAcyclic() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*TypeDescriptor]int, len(r.types))
	var path []string

	var visit func(t *TypeDescriptor) error
	visit = func(t *TypeDescriptor) error {
		switch state[t] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrCyclicHierarchy, strings.Join(append(path, t.name), " -> "))
		}
		state[t] = visiting
		path = append(path, t.name)

		supers := t.interfaces
		if t.superclass != nil {
			supers = append([]*TypeDescriptor{t.superclass}, supers...)
		}
		for _, s := range supers {
			if err := visit(s); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[t] = done
		return nil
	}

	for _, name := range r.declared {
		if err := visit(r.types[name]); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor for a qualified name. External types are
// included.
func (r *Registry) Lookup(name string) (*TypeDescriptor, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Resolve is like Lookup but returns ErrUnknownType when name is absent. A
// unique simple name is accepted as well.
func (r *Registry) Resolve(name string) (*TypeDescriptor, error) {
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	var match *TypeDescriptor
	for _, qualified := range r.declared {
		t := r.types[qualified]
		if t.SimpleName() != name {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("resolve %s: ambiguous between %s and %s", name, match.name, t.name)
		}
		match = t
	}
	if match == nil {
		return nil, fmt.Errorf("resolve %s: %w", name, ErrUnknownType)
	}
	return match, nil
}

// Types returns the declared (non-external) types sorted by name.
func (r *Registry) Types() []*TypeDescriptor {
	types := make([]*TypeDescriptor, len(r.declared))
	for i, name := range r.declared {
		types[i] = r.types[name]
	}
	return types
}

// Externals returns the referenced but undeclared types sorted by name.
func (r *Registry) Externals() []*TypeDescriptor {
	var externals []*TypeDescriptor
	for _, t := range r.types {
		if t.IsExternal() {
			externals = append(externals, t)
		}
	}
	sort.Slice(externals, func(i, j int) bool { return externals[i].name < externals[j].name })
	return externals
}

// Len returns the number of declared types.
func (r *Registry) Len() int { return len(r.declared) }

// Subtypes returns the declared types, other than name itself, whose closure
// contains name.
func (r *Registry) Subtypes(name string) []*TypeDescriptor {
	var subtypes []*TypeDescriptor
	for _, t := range r.Types() {
		if t.name != name && ClosureOf(t).Contains(name) {
			subtypes = append(subtypes, t)
		}
	}
	return subtypes
}
